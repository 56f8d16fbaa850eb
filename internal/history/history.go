// Package history keeps a bounded undo/redo stack of meal-plan
// snapshots. Purely in-memory; snapshots are serialized so undo
// restores a deep copy, never a shared pointer.
package history

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mealsync/internal/plan"
)

// DefaultMaxSize bounds the stack when no explicit size is given.
const DefaultMaxSize = 50

// Entry is one recorded state with its action label.
type Entry struct {
	ID        string    `json:"id"`
	Snapshot  []byte    `json:"snapshot"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
}

// Summary is the display form of an entry.
type Summary struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Current   bool      `json:"current"`
}

// History is a bounded snapshot stack. Pushing after an undo discards
// the forward (redo) branch; exceeding capacity evicts oldest-first.
type History struct {
	mu      sync.Mutex
	entries []Entry
	current int
	max     int
}

// New creates a History bounded to max entries; max <= 0 uses
// DefaultMaxSize.
func New(max int) *History {
	if max <= 0 {
		max = DefaultMaxSize
	}
	return &History{current: -1, max: max}
}

// Initialize seeds the stack with the starting state. A no-op when the
// stack already has entries.
func (h *History) Initialize(p *plan.MealPlan) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) > 0 {
		return nil
	}
	return h.pushLocked(p, "initial state")
}

// Push records a new state, truncating any redo branch and evicting
// the oldest entry once over capacity.
func (h *History) Push(p *plan.MealPlan, action string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pushLocked(p, action)
}

func (h *History) pushLocked(p *plan.MealPlan, action string) error {
	snapshot, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to snapshot meal plan: %w", err)
	}

	h.entries = h.entries[:h.current+1]
	h.entries = append(h.entries, Entry{
		ID:        uuid.New().String(),
		Snapshot:  snapshot,
		Timestamp: time.Now().UTC(),
		Action:    action,
	})
	if len(h.entries) > h.max {
		over := len(h.entries) - h.max
		h.entries = append([]Entry(nil), h.entries[over:]...)
	}
	h.current = len(h.entries) - 1
	return nil
}

// Undo steps back one state and returns a deep-restored plan, or nil
// at the bottom of the stack.
func (h *History) Undo() (*plan.MealPlan, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current <= 0 {
		return nil, nil
	}
	h.current--
	return restore(h.entries[h.current])
}

// Redo steps forward one state, or returns nil at the top.
func (h *History) Redo() (*plan.MealPlan, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current < 0 || h.current >= len(h.entries)-1 {
		return nil, nil
	}
	h.current++
	return restore(h.entries[h.current])
}

func restore(e Entry) (*plan.MealPlan, error) {
	var p plan.MealPlan
	if err := json.Unmarshal(e.Snapshot, &p); err != nil {
		return nil, fmt.Errorf("failed to restore meal plan snapshot: %w", err)
	}
	return &p, nil
}

// CanUndo reports whether Undo would return a state.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current > 0
}

// CanRedo reports whether Redo would return a state.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current >= 0 && h.current < len(h.entries)-1
}

// Len returns the number of recorded states.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// GetSummary lists the recorded actions oldest-first, flagging the
// current position.
func (h *History) GetSummary() []Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Summary, len(h.entries))
	for i, e := range h.entries {
		out[i] = Summary{Action: e.Action, Timestamp: e.Timestamp, Current: i == h.current}
	}
	return out
}
