// Package offline holds the locally durable, eventually consistent
// state: persisted shopping lists, the pending sync-operation queue,
// and the device profile.
package offline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mealsync/internal/shopping"
)

// SyncStatus tracks where a record stands against the remote service.
type SyncStatus string

const (
	StatusSynced   SyncStatus = "synced"
	StatusPending  SyncStatus = "pending"
	StatusConflict SyncStatus = "conflict"
)

// OpType is the kind of mutation a queued sync operation replays.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// ItemState is a shopping-list item with per-item sync bookkeeping.
type ItemState struct {
	shopping.Item
	ID           string     `json:"id"`
	LastModified time.Time  `json:"last_modified"`
	SyncStatus   SyncStatus `json:"sync_status"`
}

// ListState mirrors shopping.List with tracked items.
type ListState map[string][]ItemState

// Metadata describes a persisted shopping list. Version is monotonic
// and increments by exactly one per accepted local mutation.
type Metadata struct {
	ID           string     `json:"id"`
	MealPlanID   string     `json:"meal_plan_id"`
	WeekStart    time.Time  `json:"week_start"`
	GeneratedAt  time.Time  `json:"generated_at"`
	LastModified time.Time  `json:"last_modified"`
	SyncStatus   SyncStatus `json:"sync_status"`
	DeviceID     string     `json:"device_id"`
	Version      int64      `json:"version"`
}

// Entry is one offline shopping list: metadata plus tracked items.
type Entry struct {
	Metadata Metadata  `json:"metadata"`
	List     ListState `json:"shopping_list"`
}

// NewEntry wraps a freshly generated shopping list for offline
// storage, assigning ids and pending status throughout.
func NewEntry(list shopping.List, mealPlanID string, weekStart time.Time, deviceID string) Entry {
	now := time.Now().UTC()
	state := make(ListState, len(list))
	for cat, items := range list {
		tracked := make([]ItemState, 0, len(items))
		for _, item := range items {
			tracked = append(tracked, ItemState{
				Item:         item,
				ID:           uuid.New().String(),
				LastModified: now,
				SyncStatus:   StatusPending,
			})
		}
		state[cat] = tracked
	}
	return Entry{
		Metadata: Metadata{
			ID:           uuid.New().String(),
			MealPlanID:   mealPlanID,
			WeekStart:    weekStart,
			GeneratedAt:  now,
			LastModified: now,
			SyncStatus:   StatusPending,
			DeviceID:     deviceID,
			Version:      1,
		},
		List: state,
	}
}

// clone deep-copies the entry so callers can never reach the store's
// internal state through a returned or retained list.
func (e Entry) clone() Entry {
	out := e
	out.List = make(ListState, len(e.List))
	for cat, items := range e.List {
		copied := append([]ItemState(nil), items...)
		for i := range copied {
			copied[i].Recipes = append([]string(nil), copied[i].Recipes...)
		}
		out.List[cat] = copied
	}
	return out
}

// fingerprintItem is the id- and timestamp-free projection of an item
// used for structural duplicate detection.
type fingerprintItem struct {
	Name     string   `json:"name"`
	Quantity string   `json:"quantity"`
	Unit     string   `json:"unit"`
	Category string   `json:"category"`
	Recipes  []string `json:"recipes"`
}

// Fingerprint hashes the entry's content, ignoring ids, timestamps and
// checked flags. Name, quantity, unit and category are compared
// case-insensitively and recipe lists order-insensitively, so two
// independent generations of the same list collide.
func (e Entry) Fingerprint() string {
	var flat []fingerprintItem
	for _, items := range e.List {
		for _, it := range items {
			recipes := append([]string(nil), it.Recipes...)
			for i := range recipes {
				recipes[i] = strings.ToLower(recipes[i])
			}
			sort.Strings(recipes)
			flat = append(flat, fingerprintItem{
				Name:     strings.ToLower(it.Name),
				Quantity: strings.ToLower(it.Quantity),
				Unit:     strings.ToLower(it.Unit),
				Category: strings.ToLower(it.Category),
				Recipes:  recipes,
			})
		}
	}
	sort.Slice(flat, func(i, j int) bool {
		if flat[i].Name != flat[j].Name {
			return flat[i].Name < flat[j].Name
		}
		return flat[i].Unit < flat[j].Unit
	})
	data, _ := json.Marshal(flat)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Operation is one queued mutation awaiting replay against the remote
// service. Operations are processed in enqueue order.
type Operation struct {
	ID             string          `json:"id"`
	Type           OpType          `json:"type"`
	ShoppingListID string          `json:"shopping_list_id"`
	Payload        json.RawMessage `json:"payload"`
	Timestamp      time.Time       `json:"timestamp"`
	RetryCount     int             `json:"retry_count"`
	MaxRetries     int             `json:"max_retries"`
}

// SyncSummary reports the outcome of one queue drain.
type SyncSummary struct {
	SuccessfulOperations int `json:"successful_operations"`
	TotalOperations      int `json:"total_operations"`
	Conflicts            int `json:"conflicts"`
}

// SyncRunner drains the pending operation queue. Implemented by the
// sync queue manager; an interface here keeps the dependency pointing
// one way.
type SyncRunner interface {
	ProcessQueue(ctx context.Context) (SyncSummary, error)
}
