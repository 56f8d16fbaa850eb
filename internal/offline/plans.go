package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mealsync/internal/plan"
)

// SavePlan upserts a meal plan snapshot, keyed by (user, week).
func (s *Store) SavePlan(ctx context.Context, p *plan.MealPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem.plans[p.ID] = p.Clone()
	if s.degraded {
		return nil
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal meal plan: %w", err)
	}
	_, err = s.db.SQL.ExecContext(ctx, `
		INSERT INTO meal_plans (id, user_id, week_start, plan_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, week_start) DO UPDATE SET
			plan_data = excluded.plan_data,
			updated_at = excluded.updated_at`,
		p.ID, p.UserID, p.WeekStart.Format(time.RFC3339), string(data), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		s.degrade("save_plan", err)
	}
	return nil
}

// GetPlan retrieves a meal plan snapshot by id. Missing plans return
// (nil, nil).
func (s *Store) GetPlan(ctx context.Context, id string) (*plan.MealPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		if p, ok := s.mem.plans[id]; ok {
			return p.Clone(), nil
		}
		return nil, nil
	}
	var data string
	err := s.db.SQL.QueryRowContext(ctx,
		`SELECT plan_data FROM meal_plans WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		s.degrade("get_plan", err)
		if p, ok := s.mem.plans[id]; ok {
			return p.Clone(), nil
		}
		return nil, nil
	}
	var p plan.MealPlan
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meal plan: %w", err)
	}
	return &p, nil
}

// GetPlanByWeek retrieves the plan for one user's week, if stored.
func (s *Store) GetPlanByWeek(ctx context.Context, userID string, weekStart time.Time) (*plan.MealPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		for _, p := range s.mem.plans {
			if p.UserID == userID && p.WeekStart.Equal(weekStart) {
				return p.Clone(), nil
			}
		}
		return nil, nil
	}
	var data string
	err := s.db.SQL.QueryRowContext(ctx,
		`SELECT plan_data FROM meal_plans WHERE user_id = ? AND week_start = ?`,
		userID, weekStart.Format(time.RFC3339)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		s.degrade("get_plan_by_week", err)
		return nil, nil
	}
	var p plan.MealPlan
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meal plan: %w", err)
	}
	return &p, nil
}
