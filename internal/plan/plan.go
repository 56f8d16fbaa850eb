package plan

import (
	"time"

	"github.com/google/uuid"
)

// MealType identifies one of the three daily meal slots.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
)

// MealTypes lists the slot types in day order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner}

// Ingredient is a single recipe line. Quantity stays a string as it
// came from the catalog ("1 1/2", "¾"); parsing happens at scaling
// time.
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
	Category string `json:"category"`
}

// Recipe is an immutable snapshot from the recipe catalog.
type Recipe struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Servings    int          `json:"servings"`
	Ingredients []Ingredient `json:"ingredients"`
}

// MealSlot is a recipe assigned to a day and meal type within a plan.
// Servings is the effective count after scaling; when ManualOverride
// is set it was chosen by the user and must survive household-size
// changes.
type MealSlot struct {
	ID             string    `json:"id"`
	RecipeID       string    `json:"recipe_id"`
	Recipe         Recipe    `json:"recipe"`
	Servings       int       `json:"servings"`
	ScheduledFor   time.Time `json:"scheduled_for"`
	MealType       MealType  `json:"meal_type"`
	ManualOverride bool      `json:"manual_override"`
	Notes          string    `json:"notes,omitempty"`
}

// MealPlan is one user's plan for one Monday-aligned week. All updates
// go through the With* methods, which return a fresh copy; plans are
// never mutated in place, which is what keeps rollback and undo/redo
// honest.
type MealPlan struct {
	ID        string                                 `json:"id"`
	UserID    string                                 `json:"user_id"`
	WeekStart time.Time                              `json:"week_start"`
	Meals     map[time.Weekday]map[MealType]MealSlot `json:"meals"`
	CreatedAt time.Time                              `json:"created_at"`
	UpdatedAt time.Time                              `json:"updated_at"`
}

// New creates an empty plan for the week containing t.
func New(userID string, t time.Time) *MealPlan {
	now := time.Now().UTC()
	return &MealPlan{
		ID:        uuid.New().String(),
		UserID:    userID,
		WeekStart: MondayOf(t),
		Meals:     map[time.Weekday]map[MealType]MealSlot{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MondayOf truncates t to midnight UTC of its week's Monday.
func MondayOf(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

// Clone deep-copies the plan, including every slot's embedded recipe.
func (p *MealPlan) Clone() *MealPlan {
	c := *p
	c.Meals = make(map[time.Weekday]map[MealType]MealSlot, len(p.Meals))
	for day, slots := range p.Meals {
		dayCopy := make(map[MealType]MealSlot, len(slots))
		for mt, slot := range slots {
			slot.Recipe.Ingredients = append([]Ingredient(nil), slot.Recipe.Ingredients...)
			dayCopy[mt] = slot
		}
		c.Meals[day] = dayCopy
	}
	return &c
}

// Slot returns the meal at (day, mealType), if assigned.
func (p *MealPlan) Slot(day time.Weekday, mt MealType) (MealSlot, bool) {
	slots, ok := p.Meals[day]
	if !ok {
		return MealSlot{}, false
	}
	slot, ok := slots[mt]
	return slot, ok
}

// Slots returns every assigned slot, in no particular order.
func (p *MealPlan) Slots() []MealSlot {
	var out []MealSlot
	for _, day := range p.Meals {
		for _, slot := range day {
			out = append(out, slot)
		}
	}
	return out
}

// IsEmpty reports whether no meals are assigned.
func (p *MealPlan) IsEmpty() bool {
	for _, day := range p.Meals {
		if len(day) > 0 {
			return false
		}
	}
	return true
}

func (p *MealPlan) touch() *MealPlan {
	p.UpdatedAt = time.Now().UTC()
	return p
}

// WithMeal returns a copy with slot assigned at (day, mealType),
// replacing any existing assignment.
func (p *MealPlan) WithMeal(day time.Weekday, mt MealType, slot MealSlot) *MealPlan {
	c := p.Clone()
	if slot.ID == "" {
		slot.ID = uuid.New().String()
	}
	slot.MealType = mt
	slot.ScheduledFor = c.WeekStart.AddDate(0, 0, (int(day)+6)%7)
	if c.Meals[day] == nil {
		c.Meals[day] = map[MealType]MealSlot{}
	}
	c.Meals[day][mt] = slot
	return c.touch()
}

// WithoutMeal returns a copy with the slot at (day, mealType) removed.
func (p *MealPlan) WithoutMeal(day time.Weekday, mt MealType) *MealPlan {
	c := p.Clone()
	if slots, ok := c.Meals[day]; ok {
		delete(slots, mt)
		if len(slots) == 0 {
			delete(c.Meals, day)
		}
	}
	return c.touch()
}

// WithSwappedMeals returns a copy with the two slots exchanged. Either
// side may be empty; swapping into an empty slot moves the meal.
func (p *MealPlan) WithSwappedMeals(day1 time.Weekday, mt1 MealType, day2 time.Weekday, mt2 MealType) *MealPlan {
	c := p.Clone()
	s1, ok1 := c.Slot(day1, mt1)
	s2, ok2 := c.Slot(day2, mt2)
	c = c.WithoutMeal(day1, mt1).WithoutMeal(day2, mt2)
	if ok1 {
		c = c.WithMeal(day2, mt2, s1)
	}
	if ok2 {
		c = c.WithMeal(day1, mt1, s2)
	}
	return c
}

// WithCopiedMeal returns a copy where the source slot is duplicated
// into the destination under a new slot id.
func (p *MealPlan) WithCopiedMeal(srcDay time.Weekday, srcMT MealType, dstDay time.Weekday, dstMT MealType) *MealPlan {
	src, ok := p.Slot(srcDay, srcMT)
	if !ok {
		return p.Clone().touch()
	}
	src.ID = uuid.New().String()
	return p.WithMeal(dstDay, dstMT, src)
}

// Cleared returns a copy with every meal removed.
func (p *MealPlan) Cleared() *MealPlan {
	c := p.Clone()
	c.Meals = map[time.Weekday]map[MealType]MealSlot{}
	return c.touch()
}

// WithServings returns a copy where the slot at (day, mealType) has
// its effective servings replaced. manual marks the change as a user
// override, which takes precedence over household-size recalculation.
func (p *MealPlan) WithServings(day time.Weekday, mt MealType, servings int, manual bool) *MealPlan {
	c := p.Clone()
	slots, ok := c.Meals[day]
	if !ok {
		return c.touch()
	}
	slot, ok := slots[mt]
	if !ok {
		return c.touch()
	}
	slot.Servings = servings
	slot.ManualOverride = manual
	slots[mt] = slot
	return c.touch()
}
