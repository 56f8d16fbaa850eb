package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealsync/internal/history"
	"mealsync/internal/plan"
	"mealsync/internal/remote"
)

// fakeAPI is an in-memory meal-plan service keyed by (userID, week).
type fakeAPI struct {
	mu      sync.Mutex
	plans   map[string]*plan.MealPlan
	putErrs []error // scripted PutMealPlan failures, consumed in order
	puts    int
	creates int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{plans: map[string]*plan.MealPlan{}}
}

func key(userID string, week time.Time) string {
	return userID + "|" + week.Format("2006-01-02")
}

func (f *fakeAPI) GetMealPlan(_ context.Context, userID string, weekStart time.Time) (*plan.MealPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plans[key(userID, weekStart)]
	if !ok {
		return nil, fmt.Errorf("%w: no plan for week", remote.ErrNotFound)
	}
	return p.Clone(), nil
}

func (f *fakeAPI) CreateMealPlan(_ context.Context, p *plan.MealPlan) (*plan.MealPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.plans[key(p.UserID, p.WeekStart)] = p.Clone()
	return p.Clone(), nil
}

func (f *fakeAPI) PutMealPlan(_ context.Context, p *plan.MealPlan) (*plan.MealPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if _, ok := f.plans[key(p.UserID, p.WeekStart)]; !ok {
		return nil, fmt.Errorf("%w: plan does not exist", remote.ErrNotFound)
	}
	f.plans[key(p.UserID, p.WeekStart)] = p.Clone()
	return p.Clone(), nil
}

// fakeStore records local snapshots.
type fakeStore struct {
	mu    sync.Mutex
	saved []*plan.MealPlan
}

func (f *fakeStore) SavePlan(_ context.Context, p *plan.MealPlan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, p.Clone())
	return nil
}

func (f *fakeStore) GetPlan(_ context.Context, id string) (*plan.MealPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.saved) - 1; i >= 0; i-- {
		if f.saved[i].ID == id {
			return f.saved[i].Clone(), nil
		}
	}
	return nil, nil
}

var week = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func testRecipe() plan.Recipe {
	return plan.Recipe{ID: "r1", Name: "Chili", Servings: 4, Ingredients: []plan.Ingredient{
		{Name: "beans", Quantity: "2", Unit: "cups", Category: "pantry"},
	}}
}

func TestLoadStartsFreshWhenMissing(t *testing.T) {
	api := newFakeAPI()
	c := New(api, &fakeStore{}, nil, nil)

	p, err := c.Load(context.Background(), "user-1", week)
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())
	assert.True(t, p.WeekStart.Equal(week))
	assert.NotNil(t, c.Current(p.ID))
}

func TestLoadPrefersServerCopy(t *testing.T) {
	api := newFakeAPI()
	remotePlan := plan.New("user-1", week).WithMeal(time.Monday, plan.Dinner, plan.MealSlot{Recipe: testRecipe()})
	api.plans[key("user-1", week)] = remotePlan

	c := New(api, &fakeStore{}, nil, nil)
	p, err := c.Load(context.Background(), "user-1", week)
	require.NoError(t, err)
	_, ok := p.Slot(time.Monday, plan.Dinner)
	assert.True(t, ok, "server copy must win on load")
}

func TestAssignMealImplicitlyCreatesPlan(t *testing.T) {
	api := newFakeAPI()
	store := &fakeStore{}
	c := New(api, store, nil, nil)
	ctx := context.Background()

	p, err := c.Load(ctx, "user-1", week)
	require.NoError(t, err)

	// The server has never seen this plan; the first Put 404s and the
	// coordinator creates it before retrying.
	updated, err := c.AssignMeal(ctx, p.ID, time.Monday, plan.Dinner, testRecipe(), 4)
	require.NoError(t, err)
	assert.Equal(t, 1, api.creates)
	assert.Equal(t, 2, api.puts)

	slot, ok := updated.Slot(time.Monday, plan.Dinner)
	require.True(t, ok)
	assert.Equal(t, "Chili", slot.Recipe.Name)
	assert.Equal(t, 4, slot.Servings)

	// Server, coordinator and store all agree.
	srv, err := api.GetMealPlan(ctx, "user-1", week)
	require.NoError(t, err)
	_, ok = srv.Slot(time.Monday, plan.Dinner)
	assert.True(t, ok)
	local, err := store.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, local)
	_, ok = local.Slot(time.Monday, plan.Dinner)
	assert.True(t, ok)
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	api := newFakeAPI()
	c := New(api, &fakeStore{}, nil, nil)
	ctx := context.Background()

	p, err := c.Load(ctx, "user-1", week)
	require.NoError(t, err)
	p, err = c.AssignMeal(ctx, p.ID, time.Monday, plan.Dinner, testRecipe(), 4)
	require.NoError(t, err)

	api.putErrs = []error{&remote.APIError{StatusCode: 500, Message: "boom"}}
	_, err = c.RemoveMeal(ctx, p.ID, time.Monday, plan.Dinner)
	require.Error(t, err)

	// The optimistic removal must have been undone.
	current := c.Current(p.ID)
	_, ok := current.Slot(time.Monday, plan.Dinner)
	assert.True(t, ok, "rollback must restore the pre-mutation snapshot")
}

func TestApplyConflictRefetchesCanonical(t *testing.T) {
	api := newFakeAPI()
	c := New(api, &fakeStore{}, nil, nil)
	ctx := context.Background()

	p, err := c.Load(ctx, "user-1", week)
	require.NoError(t, err)
	p, err = c.AssignMeal(ctx, p.ID, time.Monday, plan.Dinner, testRecipe(), 4)
	require.NoError(t, err)

	// Another device moved the meal to Tuesday on the server.
	other := c.Current(p.ID).WithSwappedMeals(time.Monday, plan.Dinner, time.Tuesday, plan.Dinner)
	api.plans[key("user-1", week)] = other
	api.putErrs = []error{fmt.Errorf("%w: stale version", remote.ErrConflict)}

	got, err := c.RemoveMeal(ctx, p.ID, time.Monday, plan.Dinner)
	require.ErrorIs(t, err, ErrConflict)
	require.NotNil(t, got, "conflict returns the refetched canonical plan")

	_, ok := got.Slot(time.Tuesday, plan.Dinner)
	assert.True(t, ok, "canonical state from the server must replace local state")
	current := c.Current(p.ID)
	_, ok = current.Slot(time.Tuesday, plan.Dinner)
	assert.True(t, ok)
}

func TestApplyRecordsHistory(t *testing.T) {
	api := newFakeAPI()
	hist := history.New(0)
	c := New(api, &fakeStore{}, hist, nil)
	ctx := context.Background()

	p, err := c.Load(ctx, "user-1", week)
	require.NoError(t, err)
	_, err = c.AssignMeal(ctx, p.ID, time.Monday, plan.Dinner, testRecipe(), 4)
	require.NoError(t, err)
	_, err = c.UpdateServings(ctx, p.ID, time.Monday, plan.Dinner, 6, true)
	require.NoError(t, err)

	require.True(t, hist.CanUndo())
	back, err := hist.Undo()
	require.NoError(t, err)
	slot, ok := back.Slot(time.Monday, plan.Dinner)
	require.True(t, ok)
	assert.Equal(t, 4, slot.Servings, "undo must return the pre-servings-change state")
}

func TestUpdateServingsRejectsNonPositive(t *testing.T) {
	c := New(newFakeAPI(), &fakeStore{}, nil, nil)
	_, err := c.UpdateServings(context.Background(), "any", time.Monday, plan.Dinner, 0, true)
	assert.Error(t, err)
	_, err = c.UpdateServings(context.Background(), "any", time.Monday, plan.Dinner, -2, false)
	assert.Error(t, err)
}

func TestApplyOnUnloadedPlan(t *testing.T) {
	c := New(newFakeAPI(), &fakeStore{}, nil, nil)
	_, err := c.RemoveMeal(context.Background(), "ghost", time.Monday, plan.Dinner)
	assert.Error(t, err)
}

// blockingAPI parks PutMealPlan until released, signalling entry, so
// tests can observe coordinator state mid-push.
type blockingAPI struct {
	*fakeAPI
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAPI) PutMealPlan(ctx context.Context, p *plan.MealPlan) (*plan.MealPlan, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return b.fakeAPI.PutMealPlan(ctx, p)
}

func TestOptimisticStateVisibleDuringPush(t *testing.T) {
	api := &blockingAPI{
		fakeAPI: newFakeAPI(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := New(api, &fakeStore{}, nil, nil)
	ctx := context.Background()

	p, err := c.Load(ctx, "user-1", week)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.AssignMeal(ctx, p.ID, time.Monday, plan.Dinner, testRecipe(), 4)
		done <- err
	}()

	select {
	case <-api.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("push never started")
	}

	// The push is parked; a reader must still see the optimistic
	// assignment without waiting for the server.
	got := make(chan *plan.MealPlan, 1)
	go func() { got <- c.Current(p.ID) }()
	select {
	case current := <-got:
		_, ok := current.Slot(time.Monday, plan.Dinner)
		assert.True(t, ok, "optimistic assignment must be visible while the push is in flight")
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Current blocked on an in-flight push")
	}

	close(api.release)
	require.NoError(t, <-done)
}

func TestConcurrentMutationsSerialize(t *testing.T) {
	api := newFakeAPI()
	c := New(api, &fakeStore{}, nil, nil)
	ctx := context.Background()

	p, err := c.Load(ctx, "user-1", week)
	require.NoError(t, err)

	days := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	var wg sync.WaitGroup
	for _, day := range days {
		wg.Add(1)
		go func(d time.Weekday) {
			defer wg.Done()
			_, err := c.AssignMeal(ctx, p.ID, d, plan.Dinner, testRecipe(), 2)
			assert.NoError(t, err)
		}(day)
	}
	wg.Wait()

	// Every assignment survives: no mutation was based on a snapshot
	// missing another's result.
	current := c.Current(p.ID)
	for _, day := range days {
		_, ok := current.Slot(day, plan.Dinner)
		assert.True(t, ok, "assignment for %v lost", day)
	}
}

func TestClearWeekAndSwap(t *testing.T) {
	api := newFakeAPI()
	c := New(api, &fakeStore{}, nil, nil)
	ctx := context.Background()

	p, err := c.Load(ctx, "user-1", week)
	require.NoError(t, err)
	_, err = c.AssignMeal(ctx, p.ID, time.Monday, plan.Dinner, testRecipe(), 4)
	require.NoError(t, err)
	swapped, err := c.SwapMeals(ctx, p.ID, time.Monday, plan.Dinner, time.Friday, plan.Lunch)
	require.NoError(t, err)
	_, ok := swapped.Slot(time.Friday, plan.Lunch)
	assert.True(t, ok)

	copied, err := c.CopyMeal(ctx, p.ID, time.Friday, plan.Lunch, time.Saturday, plan.Lunch)
	require.NoError(t, err)
	_, ok = copied.Slot(time.Saturday, plan.Lunch)
	assert.True(t, ok)

	cleared, err := c.ClearWeek(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, cleared.IsEmpty())
}
