// Package coordinator applies meal-plan mutations optimistically:
// changes become visible immediately, then reconcile with the server's
// canonical response, rolling back to the pre-mutation snapshot on
// failure.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mealsync/internal/history"
	"mealsync/internal/plan"
	"mealsync/internal/remote"
)

// PlanAPI is the remote meal-plan service. Implemented by
// remote.Client.
type PlanAPI interface {
	GetMealPlan(ctx context.Context, userID string, weekStart time.Time) (*plan.MealPlan, error)
	CreateMealPlan(ctx context.Context, p *plan.MealPlan) (*plan.MealPlan, error)
	PutMealPlan(ctx context.Context, p *plan.MealPlan) (*plan.MealPlan, error)
}

// PlanStore persists local plan snapshots. Implemented by
// offline.Store.
type PlanStore interface {
	SavePlan(ctx context.Context, p *plan.MealPlan) error
	GetPlan(ctx context.Context, id string) (*plan.MealPlan, error)
}

// ErrConflict wraps remote conflicts after canonical state has been
// refetched; callers re-read Current and decide how to reapply.
var ErrConflict = errors.New("meal plan changed on server, local state refreshed")

// Mutation transforms a plan copy into its successor. It must not
// touch the input's shared state; plan.MealPlan's With* methods
// already return fresh copies.
type Mutation func(p *plan.MealPlan) (*plan.MealPlan, error)

// planState guards one plan under coordination. applyMu serializes
// mutations end to end; mu guards only the current pointer, so readers
// observe the optimistic state while a push is still in flight.
type planState struct {
	applyMu sync.Mutex

	mu      sync.Mutex
	current *plan.MealPlan
}

func (st *planState) get() *plan.MealPlan {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current
}

func (st *planState) set(p *plan.MealPlan) {
	st.mu.Lock()
	st.current = p
	st.mu.Unlock()
}

// Coordinator serializes mutations per plan id so a second mutation
// never applies against a snapshot missing the first one's optimistic
// result.
type Coordinator struct {
	api   PlanAPI
	store PlanStore
	hist  *history.History
	log   *slog.Logger

	mu    sync.Mutex
	plans map[string]*planState
}

// New creates a Coordinator. hist may be nil to disable undo capture.
func New(api PlanAPI, store PlanStore, hist *history.History, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		api:   api,
		store: store,
		hist:  hist,
		log:   log,
		plans: map[string]*planState{},
	}
}

func (c *Coordinator) state(planID string) *planState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.plans[planID]
	if !ok {
		st = &planState{}
		c.plans[planID] = st
	}
	return st
}

// Load brings a plan under coordination: the server copy wins, then
// the local store, then a fresh empty plan for the week.
func (c *Coordinator) Load(ctx context.Context, userID string, weekStart time.Time) (*plan.MealPlan, error) {
	p, err := c.api.GetMealPlan(ctx, userID, weekStart)
	switch {
	case err == nil:
	case errors.Is(err, remote.ErrNotFound):
		p = plan.New(userID, weekStart)
		c.log.Info("no remote plan for week, starting fresh",
			"user", userID, "week_start", weekStart.Format("2006-01-02"))
	default:
		return nil, fmt.Errorf("failed to load meal plan: %w", err)
	}

	c.state(p.ID).set(p)

	if c.hist != nil {
		_ = c.hist.Initialize(p)
	}
	if c.store != nil {
		_ = c.store.SavePlan(ctx, p)
	}
	return p.Clone(), nil
}

// Current returns the latest (possibly optimistic) state of a plan. It
// never waits on an in-flight push.
func (c *Coordinator) Current(planID string) *plan.MealPlan {
	p := c.state(planID).get()
	if p == nil {
		return nil
	}
	return p.Clone()
}

// Apply runs one mutation through the optimistic update path:
// snapshot, apply locally, push to the server, then reconcile with the
// canonical response or roll back. Mutations on the same plan are
// serialized; each one starts from the previous one's result. The
// optimistic state is readable through Current for the whole duration
// of the push.
func (c *Coordinator) Apply(ctx context.Context, planID, action string, mutate Mutation) (*plan.MealPlan, error) {
	st := c.state(planID)
	st.applyMu.Lock()
	defer st.applyMu.Unlock()

	snapshot := st.get()
	if snapshot == nil {
		return nil, fmt.Errorf("meal plan %s is not loaded", planID)
	}

	next, err := mutate(snapshot.Clone())
	if err != nil {
		return nil, fmt.Errorf("failed to apply %s: %w", action, err)
	}

	// Optimistic: visible before the server confirms.
	st.set(next)

	canonical, err := c.push(ctx, next)
	switch {
	case err == nil:
		st.set(canonical)
		if c.store != nil {
			_ = c.store.SavePlan(ctx, canonical)
		}
		if c.hist != nil {
			_ = c.hist.Push(canonical, action)
		}
		return canonical.Clone(), nil

	case errors.Is(err, remote.ErrConflict):
		// Refetch canonical state rather than blind retry.
		fresh, ferr := c.api.GetMealPlan(ctx, next.UserID, next.WeekStart)
		if ferr != nil {
			st.set(snapshot)
			return nil, fmt.Errorf("failed to refetch after conflict: %w", ferr)
		}
		st.set(fresh)
		if c.store != nil {
			_ = c.store.SavePlan(ctx, fresh)
		}
		c.log.Warn("meal plan conflict, refetched canonical state", "plan", planID, "action", action)
		return fresh.Clone(), fmt.Errorf("%s: %w", action, ErrConflict)

	default:
		st.set(snapshot)
		c.log.Error("meal plan update failed, rolled back", "plan", planID, "action", action, "error", err)
		return nil, fmt.Errorf("failed to save %s: %w", action, err)
	}
}

// push sends the plan update, creating the plan first when the server
// has never seen it.
func (c *Coordinator) push(ctx context.Context, p *plan.MealPlan) (*plan.MealPlan, error) {
	canonical, err := c.api.PutMealPlan(ctx, p)
	if err == nil {
		return canonical, nil
	}
	if !errors.Is(err, remote.ErrNotFound) {
		return nil, err
	}
	if _, cerr := c.api.CreateMealPlan(ctx, p); cerr != nil {
		return nil, fmt.Errorf("failed to create missing meal plan: %w", cerr)
	}
	return c.api.PutMealPlan(ctx, p)
}

// AssignMeal places a recipe into a day's meal slot.
func (c *Coordinator) AssignMeal(ctx context.Context, planID string, day time.Weekday, mt plan.MealType, recipe plan.Recipe, servings int) (*plan.MealPlan, error) {
	return c.Apply(ctx, planID, fmt.Sprintf("assign %s", recipe.Name), func(p *plan.MealPlan) (*plan.MealPlan, error) {
		return p.WithMeal(day, mt, plan.MealSlot{
			RecipeID: recipe.ID,
			Recipe:   recipe,
			Servings: servings,
		}), nil
	})
}

// RemoveMeal clears a day's meal slot.
func (c *Coordinator) RemoveMeal(ctx context.Context, planID string, day time.Weekday, mt plan.MealType) (*plan.MealPlan, error) {
	return c.Apply(ctx, planID, "remove meal", func(p *plan.MealPlan) (*plan.MealPlan, error) {
		return p.WithoutMeal(day, mt), nil
	})
}

// SwapMeals exchanges two slots.
func (c *Coordinator) SwapMeals(ctx context.Context, planID string, day1 time.Weekday, mt1 plan.MealType, day2 time.Weekday, mt2 plan.MealType) (*plan.MealPlan, error) {
	return c.Apply(ctx, planID, "swap meals", func(p *plan.MealPlan) (*plan.MealPlan, error) {
		return p.WithSwappedMeals(day1, mt1, day2, mt2), nil
	})
}

// CopyMeal duplicates a slot into another position.
func (c *Coordinator) CopyMeal(ctx context.Context, planID string, srcDay time.Weekday, srcMT plan.MealType, dstDay time.Weekday, dstMT plan.MealType) (*plan.MealPlan, error) {
	return c.Apply(ctx, planID, "copy meal", func(p *plan.MealPlan) (*plan.MealPlan, error) {
		return p.WithCopiedMeal(srcDay, srcMT, dstDay, dstMT), nil
	})
}

// ClearWeek removes every assigned meal.
func (c *Coordinator) ClearWeek(ctx context.Context, planID string) (*plan.MealPlan, error) {
	return c.Apply(ctx, planID, "clear week", func(p *plan.MealPlan) (*plan.MealPlan, error) {
		return p.Cleared(), nil
	})
}

// UpdateServings sets a slot's effective servings. manual marks a user
// override, which scaling never overwrites with household size.
func (c *Coordinator) UpdateServings(ctx context.Context, planID string, day time.Weekday, mt plan.MealType, servings int, manual bool) (*plan.MealPlan, error) {
	if servings <= 0 {
		return nil, fmt.Errorf("servings must be greater than zero, got %d", servings)
	}
	return c.Apply(ctx, planID, "update servings", func(p *plan.MealPlan) (*plan.MealPlan, error) {
		return p.WithServings(day, mt, servings, manual), nil
	})
}
