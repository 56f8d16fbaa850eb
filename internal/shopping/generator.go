package shopping

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"mealsync/internal/measure"
	"mealsync/internal/plan"
	"mealsync/internal/scaling"
)

// Generator consolidates scaled ingredients across a meal plan's
// recipes into a categorized shopping list.
type Generator struct {
	aisles []string
}

// NewGenerator creates a Generator. A nil or empty aisle order falls
// back to DefaultAisleOrder.
func NewGenerator(aisles []string) *Generator {
	if len(aisles) == 0 {
		aisles = DefaultAisleOrder
	}
	return &Generator{aisles: aisles}
}

// Aisles returns the generator's category priority order.
func (g *Generator) Aisles() []string {
	return g.aisles
}

// entry accumulates quantity for one (ingredient name, unit family)
// pairing before practical rounding.
type entry struct {
	name      string // first-seen casing, for display
	unit      string // normalized unit of the first contribution
	category  string
	total     float64
	recipes   []string
	recipeSet map[string]bool
}

func (e *entry) addRecipe(name string) {
	if name == "" || e.recipeSet[name] {
		return
	}
	e.recipeSet[name] = true
	e.recipes = append(e.recipes, name)
}

// GenerateFromMealPlan scales every assigned meal to its effective
// servings and consolidates the resulting ingredients.
//
// Two contributions merge only when their normalized names match and
// their units share a family; the incoming quantity is converted into
// the existing entry's unit before summing. A same-name ingredient in
// an incompatible unit becomes a second, separate line instead of a
// bogus merge. An empty plan yields an empty list.
func (g *Generator) GenerateFromMealPlan(p *plan.MealPlan, householdSize int) (List, error) {
	list := List{}
	if p == nil || p.IsEmpty() {
		return list, nil
	}

	var entries []*entry

	// Walk days and meal types in fixed order so consolidation is
	// deterministic: the first contribution's unit wins.
	for offset := 0; offset < 7; offset++ {
		day := time.Weekday((int(time.Monday) + offset) % 7)
		for _, mt := range plan.MealTypes {
			slot, ok := p.Slot(day, mt)
			if !ok {
				continue
			}
			scaled, err := scaling.ScaleRecipe(slot, householdSize)
			if err != nil {
				return nil, fmt.Errorf("failed to generate shopping list: %w", err)
			}
			for _, ing := range scaled {
				g.consolidate(&entries, ing, slot.Recipe.Name)
			}
		}
	}

	for _, e := range entries {
		practical := measure.RoundToPracticalMeasurement(e.total, e.unit)
		cat := normalizeCategory(e.category)
		list[cat] = append(list[cat], Item{
			Name:     e.name,
			Quantity: practical.DisplayText,
			Amount:   practical.Quantity,
			Unit:     practical.Unit,
			Category: cat,
			Recipes:  e.recipes,
		})
	}
	for _, items := range list {
		sort.Slice(items, func(i, j int) bool {
			return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
		})
	}
	return list, nil
}

func (g *Generator) consolidate(entries *[]*entry, ing scaling.ScaledIngredient, recipeName string) {
	name := strings.ToLower(strings.TrimSpace(ing.Name))
	unit := measure.NormalizeUnit(ing.Unit)

	for _, e := range *entries {
		if strings.ToLower(e.name) != name {
			continue
		}
		if !measure.Compatible(e.unit, unit) {
			continue
		}
		e.total += measure.ConvertBetweenSystems(ing.Quantity, unit, e.unit)
		e.addRecipe(recipeName)
		return
	}

	e := &entry{
		name:      strings.TrimSpace(ing.Name),
		unit:      unit,
		category:  ing.Category,
		total:     ing.Quantity,
		recipeSet: map[string]bool{},
	}
	e.addRecipe(recipeName)
	*entries = append(*entries, e)
}

func normalizeCategory(cat string) string {
	c := strings.ToLower(strings.TrimSpace(cat))
	if c == "" {
		return "other"
	}
	return c
}
