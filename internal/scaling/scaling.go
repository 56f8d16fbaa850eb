// Package scaling computes effective serving sizes and per-ingredient
// scaled quantities. Everything here is pure; unit conversion happens
// later, during shopping-list consolidation.
package scaling

import (
	"fmt"

	"mealsync/internal/measure"
	"mealsync/internal/plan"
)

// InvalidServingsError reports a non-positive serving count at the API
// boundary.
type InvalidServingsError struct {
	Original  int
	Effective int
}

func (e *InvalidServingsError) Error() string {
	return fmt.Sprintf("invalid servings: original=%d effective=%d, both must be greater than zero", e.Original, e.Effective)
}

// Factor returns effectiveServings / originalServings. Both arguments
// must be positive.
func Factor(originalServings, effectiveServings int) (float64, error) {
	if originalServings <= 0 || effectiveServings <= 0 {
		return 0, &InvalidServingsError{Original: originalServings, Effective: effectiveServings}
	}
	return float64(effectiveServings) / float64(originalServings), nil
}

// EffectiveServingSize applies the single precedence rule governing
// every scaling decision: a valid manual override always wins, and is
// never silently replaced by a household-size change.
func EffectiveServingSize(householdSize, manualOverride int, hasOverride bool) int {
	if hasOverride && manualOverride > 0 {
		return manualOverride
	}
	return householdSize
}

// SlotServings resolves a slot's effective servings against the
// household size, honoring any manual override stored on the slot.
func SlotServings(slot plan.MealSlot, householdSize int) int {
	return EffectiveServingSize(householdSize, slot.Servings, slot.ManualOverride)
}

// ScaledIngredient is an ingredient quantity after multiplication by a
// scaling factor. The unit is carried through unchanged.
type ScaledIngredient struct {
	Name     string
	Quantity float64
	Unit     string
	Category string
	Unparsed bool
}

// ScaleIngredient parses the ingredient quantity and multiplies it by
// factor. Unparsable quantities fall back to 1 and are flagged.
func ScaleIngredient(ing plan.Ingredient, factor float64) ScaledIngredient {
	parsed := measure.ParseQuantity(ing.Quantity)
	return ScaledIngredient{
		Name:     ing.Name,
		Quantity: parsed.Value * factor,
		Unit:     ing.Unit,
		Category: ing.Category,
		Unparsed: parsed.Unparsed,
	}
}

// ScaleRecipe scales every ingredient of a slot's recipe to the
// slot's effective servings.
func ScaleRecipe(slot plan.MealSlot, householdSize int) ([]ScaledIngredient, error) {
	effective := SlotServings(slot, householdSize)
	factor, err := Factor(slot.Recipe.Servings, effective)
	if err != nil {
		return nil, fmt.Errorf("failed to scale recipe %q: %w", slot.Recipe.Name, err)
	}
	out := make([]ScaledIngredient, 0, len(slot.Recipe.Ingredients))
	for _, ing := range slot.Recipe.Ingredients {
		out = append(out, ScaleIngredient(ing, factor))
	}
	return out, nil
}
