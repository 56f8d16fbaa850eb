package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"mealsync/internal/database"
	"mealsync/internal/plan"
)

// cleanupHighWater is the storage-usage fraction above which consumers
// should trigger Cleanup.
const cleanupHighWater = 0.80

const deviceIDKey = "device_id"

// Store is the single shared mutable resource of the system: every
// writer goes through it, and it alone enforces duplicate suppression
// and version increments.
//
// Storage failures degrade rather than propagate: when the database is
// missing or starts erroring, the store logs and carries on against an
// in-memory mirror, so callers keep working in a memory-only mode.
type Store struct {
	db       *database.DB
	log      *slog.Logger
	maxBytes int64

	mu       sync.Mutex
	degraded bool
	mem      *memoryState
}

type memoryState struct {
	entries map[string]Entry
	queue   []Operation
	profile map[string]string
	plans   map[string]*plan.MealPlan
}

func newMemoryState() *memoryState {
	return &memoryState{
		entries: map[string]Entry{},
		profile: map[string]string{},
		plans:   map[string]*plan.MealPlan{},
	}
}

// NewStore creates a Store over db. A nil db starts the store directly
// in memory-only mode. maxBytes caps reported storage capacity; zero
// means a 50 MB default.
func NewStore(db *database.DB, log *slog.Logger, maxBytes int64) *Store {
	if log == nil {
		log = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	s := &Store{db: db, log: log, maxBytes: maxBytes, mem: newMemoryState()}
	if db == nil {
		s.degraded = true
		log.Warn("durable store starting without a database, running memory-only")
	}
	return s
}

// degrade switches the store to memory-only mode after a storage
// failure. It never returns the error to the caller.
func (s *Store) degrade(op string, err error) {
	if !s.degraded {
		s.log.Error("storage unavailable, degrading to memory-only mode", "op", op, "error", err)
		s.degraded = true
	} else {
		s.log.Debug("storage operation skipped in memory-only mode", "op", op)
	}
}

// Put persists a new shopping list entry. If a structurally identical
// entry already exists (same fingerprint, ids and timestamps ignored)
// the insert is suppressed and the existing id is returned.
func (s *Store) Put(ctx context.Context, e Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := e.Fingerprint()
	if existing := s.findByFingerprint(ctx, fp); existing != "" {
		s.log.Debug("duplicate shopping list suppressed", "existing_id", existing)
		return existing, nil
	}

	if s.degraded {
		s.mem.entries[e.Metadata.ID] = e.clone()
		return e.Metadata.ID, nil
	}

	content, err := json.Marshal(e.List)
	if err != nil {
		return "", fmt.Errorf("failed to marshal shopping list content: %w", err)
	}
	_, err = s.db.SQL.ExecContext(ctx, `
		INSERT INTO offline_shopping_lists
			(id, meal_plan_id, week_start, generated_at, last_modified, sync_status, device_id, version, fingerprint, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Metadata.ID, e.Metadata.MealPlanID, e.Metadata.WeekStart.Format(time.RFC3339),
		e.Metadata.GeneratedAt, e.Metadata.LastModified, string(e.Metadata.SyncStatus),
		e.Metadata.DeviceID, e.Metadata.Version, fp, string(content))
	if err != nil {
		s.degrade("put", err)
		s.mem.entries[e.Metadata.ID] = e.clone()
	}
	return e.Metadata.ID, nil
}

func (s *Store) findByFingerprint(ctx context.Context, fp string) string {
	if s.degraded {
		for id, e := range s.mem.entries {
			if e.Fingerprint() == fp {
				return id
			}
		}
		return ""
	}
	var id string
	err := s.db.SQL.QueryRowContext(ctx,
		`SELECT id FROM offline_shopping_lists WHERE fingerprint = ? LIMIT 1`, fp).Scan(&id)
	if err != nil {
		return ""
	}
	return id
}

// Get retrieves one entry by id. A missing entry returns (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, id)
}

func (s *Store) getLocked(ctx context.Context, id string) (*Entry, error) {
	if s.degraded {
		if e, ok := s.mem.entries[id]; ok {
			out := e.clone()
			return &out, nil
		}
		return nil, nil
	}
	row := s.db.SQL.QueryRowContext(ctx, `
		SELECT id, meal_plan_id, week_start, generated_at, last_modified, sync_status, device_id, version, content
		FROM offline_shopping_lists WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		s.degrade("get", err)
		if m, ok := s.mem.entries[id]; ok {
			out := m.clone()
			return &out, nil
		}
		return nil, nil
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var weekStart, status, content string
	err := row.Scan(&e.Metadata.ID, &e.Metadata.MealPlanID, &weekStart,
		&e.Metadata.GeneratedAt, &e.Metadata.LastModified, &status,
		&e.Metadata.DeviceID, &e.Metadata.Version, &content)
	if err != nil {
		return nil, err
	}
	e.Metadata.SyncStatus = SyncStatus(status)
	if e.Metadata.WeekStart, err = time.Parse(time.RFC3339, weekStart); err != nil {
		return nil, fmt.Errorf("failed to parse week_start: %w", err)
	}
	if err := json.Unmarshal([]byte(content), &e.List); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shopping list content: %w", err)
	}
	return &e, nil
}

// GetAll returns every persisted entry, oldest first.
func (s *Store) GetAll(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAllLocked(ctx)
}

func (s *Store) getAllLocked(ctx context.Context) ([]Entry, error) {
	if s.degraded {
		out := make([]Entry, 0, len(s.mem.entries))
		for _, e := range s.mem.entries {
			out = append(out, e.clone())
		}
		return out, nil
	}
	rows, err := s.db.SQL.QueryContext(ctx, `
		SELECT id, meal_plan_id, week_start, generated_at, last_modified, sync_status, device_id, version, content
		FROM offline_shopping_lists ORDER BY generated_at ASC`)
	if err != nil {
		s.degrade("get_all", err)
		return nil, nil
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Update replaces an entry's content and metadata. The version is
// bumped by exactly one and the entry returns to pending status; this
// is the only code path that advances versions.
func (s *Store) Update(ctx context.Context, e Entry) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(ctx, e)
}

func (s *Store) updateLocked(ctx context.Context, e Entry) (*Entry, error) {
	e.Metadata.Version++
	e.Metadata.LastModified = time.Now().UTC()
	e.Metadata.SyncStatus = StatusPending

	if s.degraded {
		s.mem.entries[e.Metadata.ID] = e.clone()
		return &e, nil
	}

	content, err := json.Marshal(e.List)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shopping list content: %w", err)
	}
	_, err = s.db.SQL.ExecContext(ctx, `
		UPDATE offline_shopping_lists
		SET last_modified = ?, sync_status = ?, version = ?, fingerprint = ?, content = ?
		WHERE id = ?`,
		e.Metadata.LastModified, string(e.Metadata.SyncStatus), e.Metadata.Version,
		e.Fingerprint(), string(content), e.Metadata.ID)
	if err != nil {
		s.degrade("update", err)
		s.mem.entries[e.Metadata.ID] = e.clone()
	}
	return &e, nil
}

// Delete removes an entry by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.mem.entries, id)
	if s.degraded {
		return nil
	}
	if _, err := s.db.SQL.ExecContext(ctx,
		`DELETE FROM offline_shopping_lists WHERE id = ?`, id); err != nil {
		s.degrade("delete", err)
	}
	return nil
}

// SetStatus updates an entry's sync status without advancing its
// version; sync-state transitions are not content mutations.
func (s *Store) SetStatus(ctx context.Context, id string, status SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		if e, ok := s.mem.entries[id]; ok {
			e.Metadata.SyncStatus = status
			s.mem.entries[id] = e
		}
		return nil
	}
	if _, err := s.db.SQL.ExecContext(ctx,
		`UPDATE offline_shopping_lists SET sync_status = ? WHERE id = ?`,
		string(status), id); err != nil {
		s.degrade("set_status", err)
	}
	return nil
}

// UpdateItemStatus flips one item's checked flag, advancing the entry
// version through the usual update path.
func (s *Store) UpdateItemStatus(ctx context.Context, listID, category, itemID string, checked bool) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.getLocked(ctx, listID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("shopping list %s not found", listID)
	}
	items, ok := e.List[category]
	if !ok {
		return nil, fmt.Errorf("category %q not found in shopping list %s", category, listID)
	}
	found := false
	for i := range items {
		if items[i].ID == itemID {
			items[i].Checked = checked
			items[i].LastModified = time.Now().UTC()
			items[i].SyncStatus = StatusPending
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("item %s not found in category %q", itemID, category)
	}
	return s.updateLocked(ctx, *e)
}

// RemoveDuplicates collapses content-identical entries down to the
// earliest one and reports how many were removed. Independent code
// paths (page load, generation, background sync) all attempt inserts;
// this is the safety net for copies that slipped past Put.
func (s *Store) RemoveDuplicates(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.getAllLocked(ctx)
	if err != nil {
		return 0, err
	}
	seen := map[string]struct{}{}
	removed := 0
	for _, e := range entries {
		fp := e.Fingerprint()
		if _, dup := seen[fp]; !dup {
			seen[fp] = struct{}{}
			continue
		}
		delete(s.mem.entries, e.Metadata.ID)
		if !s.degraded {
			if _, err := s.db.SQL.ExecContext(ctx,
				`DELETE FROM offline_shopping_lists WHERE id = ?`, e.Metadata.ID); err != nil {
				s.degrade("remove_duplicates", err)
			}
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("removed duplicate shopping lists", "count", removed)
	}
	return removed, nil
}

// Usage reports storage consumption against the configured cap.
type Usage struct {
	UsedBytes      int64   `json:"used_bytes"`
	AvailableBytes int64   `json:"available_bytes"`
	Percent        float64 `json:"percent"`
	Display        string  `json:"display"`
}

// NeedsCleanup reports whether usage crossed the 80% high-water mark.
func (u Usage) NeedsCleanup() bool {
	return u.Percent >= cleanupHighWater*100
}

// Usage returns current storage usage. Memory-only mode reports zero.
func (s *Store) Usage(ctx context.Context) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return Usage{AvailableBytes: s.maxBytes, Display: "memory-only"}, nil
	}
	used, err := s.db.SizeBytes()
	if err != nil {
		s.degrade("usage", err)
		return Usage{AvailableBytes: s.maxBytes, Display: "memory-only"}, nil
	}
	avail := s.maxBytes - used
	if avail < 0 {
		avail = 0
	}
	return Usage{
		UsedBytes:      used,
		AvailableBytes: avail,
		Percent:        float64(used) / float64(s.maxBytes) * 100,
		Display:        fmt.Sprintf("%s of %s", humanize.Bytes(uint64(used)), humanize.Bytes(uint64(s.maxBytes))),
	}, nil
}

// Cleanup evicts already-synced entries, oldest first, keeping the
// most recent few. Intended to run when Usage crosses the high-water
// mark.
func (s *Store) Cleanup(ctx context.Context, keepRecent int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keepRecent < 0 {
		keepRecent = 0
	}
	entries, err := s.getAllLocked(ctx)
	if err != nil {
		return 0, err
	}
	var synced []Entry
	for _, e := range entries {
		if e.Metadata.SyncStatus == StatusSynced {
			synced = append(synced, e)
		}
	}
	if len(synced) <= keepRecent {
		return 0, nil
	}
	evict := synced[:len(synced)-keepRecent]
	for _, e := range evict {
		delete(s.mem.entries, e.Metadata.ID)
		if !s.degraded {
			if _, err := s.db.SQL.ExecContext(ctx,
				`DELETE FROM offline_shopping_lists WHERE id = ?`, e.Metadata.ID); err != nil {
				s.degrade("cleanup", err)
			}
		}
	}
	s.log.Info("storage cleanup evicted synced shopping lists", "count", len(evict))
	return len(evict), nil
}

// DeviceID returns the stable device identifier, generating and
// persisting one on first use. Format: device_<timestamp>_<random>.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.mem.profile[deviceIDKey]; ok {
		return id, nil
	}
	if !s.degraded {
		var id string
		err := s.db.SQL.QueryRowContext(ctx,
			`SELECT value FROM device_profile WHERE key = ?`, deviceIDKey).Scan(&id)
		if err == nil {
			s.mem.profile[deviceIDKey] = id
			return id, nil
		}
		if err != sql.ErrNoRows {
			s.degrade("device_id", err)
		}
	}

	id := fmt.Sprintf("device_%d_%09d", time.Now().UnixMilli(), rand.Intn(1_000_000_000))
	s.mem.profile[deviceIDKey] = id
	if !s.degraded {
		if _, err := s.db.SQL.ExecContext(ctx,
			`INSERT INTO device_profile (key, value) VALUES (?, ?)`, deviceIDKey, id); err != nil {
			s.degrade("device_id", err)
		}
	}
	s.log.Info("generated device identifier", "device_id", id)
	return id, nil
}
