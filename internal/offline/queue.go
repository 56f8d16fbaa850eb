package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enqueue appends a sync operation to the durable queue. Missing ids
// and timestamps are filled in.
func (s *Store) Enqueue(ctx context.Context, op Operation) (Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = time.Now().UTC()
	}
	if op.MaxRetries <= 0 {
		op.MaxRetries = 3
	}

	if s.degraded {
		s.mem.queue = append(s.mem.queue, op)
		return op, nil
	}
	_, err := s.db.SQL.ExecContext(ctx, `
		INSERT INTO sync_operations (id, op_type, shopping_list_id, payload, created_at, retry_count, max_retries)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		op.ID, string(op.Type), op.ShoppingListID, string(op.Payload),
		op.Timestamp, op.RetryCount, op.MaxRetries)
	if err != nil {
		s.degrade("enqueue", err)
		s.mem.queue = append(s.mem.queue, op)
	}
	return op, nil
}

// PendingOperations returns the queue in enqueue (FIFO) order.
func (s *Store) PendingOperations(ctx context.Context) ([]Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return append([]Operation(nil), s.mem.queue...), nil
	}
	rows, err := s.db.SQL.QueryContext(ctx, `
		SELECT id, op_type, shopping_list_id, payload, created_at, retry_count, max_retries
		FROM sync_operations ORDER BY seq ASC`)
	if err != nil {
		s.degrade("pending_operations", err)
		return append([]Operation(nil), s.mem.queue...), nil
	}
	defer rows.Close()

	var out []Operation
	for rows.Next() {
		var op Operation
		var opType, payload string
		if err := rows.Scan(&op.ID, &opType, &op.ShoppingListID, &payload,
			&op.Timestamp, &op.RetryCount, &op.MaxRetries); err != nil {
			return nil, fmt.Errorf("failed to scan sync operation: %w", err)
		}
		op.Type = OpType(opType)
		op.Payload = json.RawMessage(payload)
		out = append(out, op)
	}
	return out, rows.Err()
}

// QueueLength returns the number of queued operations.
func (s *Store) QueueLength(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return len(s.mem.queue)
	}
	var n int
	if err := s.db.SQL.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_operations`).Scan(&n); err != nil {
		s.degrade("queue_length", err)
		return len(s.mem.queue)
	}
	return n
}

// RemoveOperation deletes a queued operation, after success or after
// permanent failure.
func (s *Store) RemoveOperation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, op := range s.mem.queue {
		if op.ID == id {
			s.mem.queue = append(s.mem.queue[:i], s.mem.queue[i+1:]...)
			break
		}
	}
	if s.degraded {
		return nil
	}
	if _, err := s.db.SQL.ExecContext(ctx,
		`DELETE FROM sync_operations WHERE id = ?`, id); err != nil {
		s.degrade("remove_operation", err)
	}
	return nil
}

// IncrementRetry bumps an operation's retry count and returns the new
// value.
func (s *Store) IncrementRetry(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		for i := range s.mem.queue {
			if s.mem.queue[i].ID == id {
				s.mem.queue[i].RetryCount++
				return s.mem.queue[i].RetryCount, nil
			}
		}
		return 0, fmt.Errorf("sync operation %s not found", id)
	}
	if _, err := s.db.SQL.ExecContext(ctx,
		`UPDATE sync_operations SET retry_count = retry_count + 1 WHERE id = ?`, id); err != nil {
		s.degrade("increment_retry", err)
		return 0, nil
	}
	var n int
	if err := s.db.SQL.QueryRowContext(ctx,
		`SELECT retry_count FROM sync_operations WHERE id = ?`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read retry count: %w", err)
	}
	return n, nil
}
