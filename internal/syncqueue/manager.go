// Package syncqueue replays queued local mutations against the remote
// service when connectivity allows, with retry, backoff and conflict
// classification.
package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mealsync/internal/offline"
	"mealsync/internal/remote"
)

// ErrOffline is returned when a drain is requested without
// connectivity.
var ErrOffline = errors.New("sync unavailable while offline")

// Sender pushes one operation to the remote service. Implemented by
// remote.Client.
type Sender interface {
	SendOperation(ctx context.Context, op offline.Operation) error
}

// Status is a point-in-time view of the sync state.
type Status struct {
	Online    bool      `json:"online"`
	Queued    int       `json:"queued"`
	LastSync  time.Time `json:"last_sync,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Manager drains the durable operation queue in FIFO order. One drain
// runs at a time; operations for a given shopping list are therefore
// replayed in enqueue order, preserving causal mutation order.
type Manager struct {
	store   *offline.Store
	sender  Sender
	backoff Backoff
	log     *slog.Logger

	// wait is swappable so tests don't sleep.
	wait func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	online    bool
	lastSync  time.Time
	lastError string
}

// NewManager creates a Manager. The manager starts offline; call
// SetOnline once connectivity is known.
func NewManager(store *offline.Store, sender Sender, backoff Backoff, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:   store,
		sender:  sender,
		backoff: backoff,
		log:     log,
		wait:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SetOnline records a connectivity transition. Coming back online
// automatically kicks off a drain.
func (m *Manager) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	m.mu.Unlock()

	if online && !wasOnline {
		m.log.Info("connectivity restored, draining sync queue")
		go func() {
			if _, err := m.ProcessQueue(ctx); err != nil {
				m.log.Warn("automatic queue drain failed", "error", err)
			}
		}()
	}
}

// Online reports current connectivity.
func (m *Manager) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// ProcessQueue drains pending operations FIFO while online.
//
// Per operation: success removes it from the queue and marks the local
// entry synced; a version conflict marks the entry conflict and stops
// auto-retrying it; a transient failure waits out the backoff and
// retries the same operation in place, so queue order is preserved
// without dead sleeps. Operations that exhaust maxRetries are removed
// as permanently failed.
func (m *Manager) ProcessQueue(ctx context.Context) (offline.SyncSummary, error) {
	if !m.Online() {
		return offline.SyncSummary{}, ErrOffline
	}

	ops, err := m.store.PendingOperations(ctx)
	if err != nil {
		return offline.SyncSummary{}, fmt.Errorf("failed to read sync queue: %w", err)
	}
	summary := offline.SyncSummary{TotalOperations: len(ops)}

	for _, op := range ops {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		err := m.sender.SendOperation(ctx, op)
		for remote.IsRetryable(err) {
			retries, _ := m.store.IncrementRetry(ctx, op.ID)
			if retries >= op.MaxRetries {
				m.log.Error("sync operation permanently failed",
					"operation", op.ID, "retries", retries, "error", err)
				_ = m.store.RemoveOperation(ctx, op.ID)
				m.recordError(fmt.Errorf("operation %s failed after %d retries: %w", op.ID, retries, err))
				break
			}
			m.log.Warn("transient sync failure, retrying",
				"operation", op.ID, "attempt", retries, "error", err)
			m.recordError(err)
			if werr := m.wait(ctx, m.backoff.Delay(retries)); werr != nil {
				return summary, werr
			}
			err = m.sender.SendOperation(ctx, op)
		}

		switch {
		case err == nil:
			_ = m.store.RemoveOperation(ctx, op.ID)
			_ = m.store.SetStatus(ctx, op.ShoppingListID, offline.StatusSynced)
			summary.SuccessfulOperations++

		case errors.Is(err, remote.ErrConflict):
			// Conflicts need explicit resolution; never auto-retry.
			m.log.Warn("sync conflict, surfacing to user",
				"operation", op.ID, "shopping_list", op.ShoppingListID)
			_ = m.store.SetStatus(ctx, op.ShoppingListID, offline.StatusConflict)
			_ = m.store.RemoveOperation(ctx, op.ID)
			summary.Conflicts++
			m.recordError(err)

		case remote.IsRetryable(err):
			// Exhausted; already removed and recorded above.

		default:
			m.log.Error("sync operation rejected", "operation", op.ID, "error", err)
			_ = m.store.RemoveOperation(ctx, op.ID)
			m.recordError(err)
		}
	}

	m.mu.Lock()
	m.lastSync = time.Now().UTC()
	m.mu.Unlock()
	return summary, nil
}

func (m *Manager) recordError(err error) {
	m.mu.Lock()
	m.lastError = err.Error()
	m.mu.Unlock()
}

// Status reports connectivity, queue depth and the last drain outcome.
func (m *Manager) Status(ctx context.Context) Status {
	m.mu.Lock()
	st := Status{Online: m.online, LastSync: m.lastSync, LastError: m.lastError}
	m.mu.Unlock()
	st.Queued = m.store.QueueLength(ctx)
	return st
}
