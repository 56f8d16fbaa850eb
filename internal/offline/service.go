package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mealsync/internal/shopping"
)

// Options tunes offline behavior.
type Options struct {
	// MaxRetries bounds attempts per queued operation.
	MaxRetries int
	// KeepRecentOnCleanup is how many synced entries survive a
	// high-water cleanup.
	KeepRecentOnCleanup int
}

// DefaultOptions are used until Configure is called.
var DefaultOptions = Options{
	MaxRetries:          3,
	KeepRecentOnCleanup: 5,
}

// Service is the offline surface handed to the UI layer: it stores
// generated shopping lists durably, queues their mutations for sync,
// and reports sync and storage state.
type Service struct {
	store *Store
	sync  SyncRunner
	log   *slog.Logger

	mu          sync.Mutex
	initialized bool
	opts        Options
	deviceID    string
}

// NewService wires the facade. runner may be nil when sync is
// disabled; manual sync then reports an error.
func NewService(store *Store, runner SyncRunner, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, sync: runner, log: log, opts: DefaultOptions}
}

// Initialize loads the device identity and runs a duplicate sweep.
// Safe to call more than once.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	id, err := s.store.DeviceID(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize offline service: %w", err)
	}
	s.deviceID = id
	if _, err := s.store.RemoveDuplicates(ctx); err != nil {
		s.log.Warn("duplicate sweep failed during initialization", "error", err)
	}
	s.initialized = true
	return nil
}

// Configure replaces the service options.
func (s *Service) Configure(opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultOptions.MaxRetries
	}
	if opts.KeepRecentOnCleanup <= 0 {
		opts.KeepRecentOnCleanup = DefaultOptions.KeepRecentOnCleanup
	}
	s.opts = opts
}

func (s *Service) options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

func (s *Service) device() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

// StoreShoppingList persists a generated list and queues a create
// operation. Structurally identical existing content suppresses the
// insert and returns the existing entry.
func (s *Service) StoreShoppingList(ctx context.Context, list shopping.List, mealPlanID string, weekStart time.Time) (*Entry, error) {
	entry := NewEntry(list, mealPlanID, weekStart, s.device())
	id, err := s.store.Put(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to store shopping list: %w", err)
	}
	stored, err := s.store.Get(ctx, id)
	if err != nil || stored == nil {
		return nil, fmt.Errorf("failed to load stored shopping list %s: %w", id, err)
	}
	if id == entry.Metadata.ID {
		// Fresh insert: queue its creation for the next drain.
		s.enqueue(ctx, OpCreate, stored)
	}
	s.maybeCleanup(ctx)
	return stored, nil
}

// GetShoppingList fetches one stored entry, or nil when absent.
func (s *Service) GetShoppingList(ctx context.Context, id string) (*Entry, error) {
	return s.store.Get(ctx, id)
}

// GetAllShoppingLists returns every stored entry, oldest first.
func (s *Service) GetAllShoppingLists(ctx context.Context) ([]Entry, error) {
	return s.store.GetAll(ctx)
}

// UpdateItemStatus flips one item's checked state and queues the
// update for sync.
func (s *Service) UpdateItemStatus(ctx context.Context, listID, category, itemID string, checked bool) (*Entry, error) {
	entry, err := s.store.UpdateItemStatus(ctx, listID, category, itemID, checked)
	if err != nil {
		return nil, fmt.Errorf("failed to update item status: %w", err)
	}
	s.enqueue(ctx, OpUpdate, entry)
	return entry, nil
}

// DeleteShoppingList removes an entry locally and queues the deletion.
func (s *Service) DeleteShoppingList(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	_, err := s.store.Enqueue(ctx, Operation{
		Type:           OpDelete,
		ShoppingListID: id,
		Payload:        json.RawMessage(`{}`),
		MaxRetries:     s.options().MaxRetries,
	})
	if err != nil {
		s.log.Warn("failed to queue delete operation", "shopping_list", id, "error", err)
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, typ OpType, entry *Entry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		s.log.Error("failed to marshal sync payload", "error", err)
		return
	}
	if _, err := s.store.Enqueue(ctx, Operation{
		Type:           typ,
		ShoppingListID: entry.Metadata.ID,
		Payload:        payload,
		MaxRetries:     s.options().MaxRetries,
	}); err != nil {
		s.log.Warn("failed to queue sync operation", "shopping_list", entry.Metadata.ID, "error", err)
	}
}

func (s *Service) maybeCleanup(ctx context.Context) {
	usage, err := s.store.Usage(ctx)
	if err != nil || !usage.NeedsCleanup() {
		return
	}
	s.log.Warn("storage usage over high-water mark, cleaning up", "percent", usage.Percent)
	if _, err := s.store.Cleanup(ctx, s.options().KeepRecentOnCleanup); err != nil {
		s.log.Warn("storage cleanup failed", "error", err)
	}
}

// TriggerManualSync drains the queue on demand and returns a summary.
func (s *Service) TriggerManualSync(ctx context.Context) (SyncSummary, error) {
	if s.sync == nil {
		return SyncSummary{}, fmt.Errorf("sync is not configured")
	}
	return s.sync.ProcessQueue(ctx)
}

// SyncState summarizes per-entry sync standing plus queue depth.
type SyncState struct {
	DeviceID  string `json:"device_id"`
	Pending   int    `json:"pending"`
	Synced    int    `json:"synced"`
	Conflicts int    `json:"conflicts"`
	Queued    int    `json:"queued"`
}

// GetSyncStatus reports how many entries sit in each sync state and
// how deep the operation queue is.
func (s *Service) GetSyncStatus(ctx context.Context) (SyncState, error) {
	entries, err := s.store.GetAll(ctx)
	if err != nil {
		return SyncState{}, err
	}
	st := SyncState{DeviceID: s.device(), Queued: s.store.QueueLength(ctx)}
	for _, e := range entries {
		switch e.Metadata.SyncStatus {
		case StatusSynced:
			st.Synced++
		case StatusConflict:
			st.Conflicts++
		default:
			st.Pending++
		}
	}
	return st, nil
}

// GetStorageUsage reports durable-store consumption.
func (s *Service) GetStorageUsage(ctx context.Context) (Usage, error) {
	return s.store.Usage(ctx)
}
