package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mealsync/internal/offline"
	"mealsync/internal/plan"
)

var signingKey = []byte("test-signing-key")

func TestGetMealPlanSendsSignedDeviceToken(t *testing.T) {
	week := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meal-plans/user-1/2026-03-02" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Device-ID"); got != "device_1_000000001" {
			t.Errorf("X-Device-ID = %q", got)
		}

		auth := r.Header.Get("Authorization")
		if len(auth) < 8 || auth[:7] != "Bearer " {
			t.Fatalf("Missing bearer token, got %q", auth)
		}
		token, err := jwt.Parse(auth[7:], func(tok *jwt.Token) (any, error) {
			return signingKey, nil
		}, jwt.WithAudience("mealsync-sync"))
		if err != nil || !token.Valid {
			t.Errorf("Device token failed verification: %v", err)
		}
		if sub, _ := token.Claims.GetSubject(); sub != "device_1_000000001" {
			t.Errorf("Token subject = %q", sub)
		}

		_ = json.NewEncoder(w).Encode(planPayload{
			ID:        "plan-1",
			UserID:    "user-1",
			WeekStart: "2026-03-02",
			Days: map[int]map[string]slotPayload{
				1: {"dinner": {ID: "s1", RecipeID: "r1", Servings: 2, ScheduledFor: "2026-03-02"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, signingKey, "device_1_000000001")
	p, err := c.GetMealPlan(context.Background(), "user-1", week)
	if err != nil {
		t.Fatalf("GetMealPlan failed: %v", err)
	}
	if !p.WeekStart.Equal(week) {
		t.Errorf("WeekStart = %v", p.WeekStart)
	}
	slot, ok := p.Slot(time.Monday, plan.Dinner)
	if !ok {
		t.Fatal("Expected Monday dinner from wire payload")
	}
	if slot.MealType != plan.Dinner || slot.Servings != 2 {
		t.Errorf("Slot drifted: %+v", slot)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
		name   string
	}{
		{http.StatusConflict, func(err error) bool { return errors.Is(err, ErrConflict) }, "conflict"},
		{http.StatusNotFound, func(err error) bool { return errors.Is(err, ErrNotFound) }, "not found"},
		{http.StatusInternalServerError, IsRetryable, "server error retryable"},
		{http.StatusTooManyRequests, IsRetryable, "throttling retryable"},
		{http.StatusBadRequest, func(err error) bool { return err != nil && !IsRetryable(err) }, "bad request terminal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
			}))
			defer srv.Close()

			c := NewClient(srv.URL, signingKey, "device_1_000000001")
			_, err := c.GetMealPlan(context.Background(), "user-1", time.Now())
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !tt.check(err) {
				t.Errorf("Error %v failed classification", err)
			}
		})
	}
}

func TestConflictAndNotFoundAreNeverRetryable(t *testing.T) {
	if IsRetryable(ErrConflict) || IsRetryable(ErrNotFound) {
		t.Error("Conflict and not-found must never be retryable")
	}
	if !IsRetryable(context.DeadlineExceeded) {
		t.Error("Deadline exceeded must be retryable")
	}
	if !IsRetryable(&APIError{StatusCode: 503}) {
		t.Error("5xx must be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestPlanPayloadRoundTrip(t *testing.T) {
	week := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	p := plan.New("user-1", week).
		WithMeal(time.Wednesday, plan.Lunch, plan.MealSlot{
			RecipeID: "r2",
			Recipe:   plan.Recipe{ID: "r2", Name: "Wrap", Servings: 1},
			Servings: 3,
		})

	back, err := fromPlanPayload(toPlanPayload(p))
	if err != nil {
		t.Fatalf("fromPlanPayload failed: %v", err)
	}
	slot, ok := back.Slot(time.Wednesday, plan.Lunch)
	if !ok {
		t.Fatal("Wednesday lunch lost on the wire")
	}
	if slot.Servings != 3 || slot.Recipe.Name != "Wrap" {
		t.Errorf("Slot drifted: %+v", slot)
	}
	if !back.WeekStart.Equal(week) {
		t.Errorf("WeekStart = %v", back.WeekStart)
	}
}

func TestFromPlanPayloadRejectsBadDates(t *testing.T) {
	_, err := fromPlanPayload(planPayload{
		ID:        "plan-1",
		UserID:    "user-1",
		WeekStart: "2026-03-02",
		Days: map[int]map[string]slotPayload{
			1: {"dinner": {ID: "s1", ScheduledFor: "not-a-date"}},
		},
	})
	if err == nil {
		t.Fatal("Expected error for malformed scheduled_for")
	}
	if !strings.Contains(err.Error(), "scheduled_for") {
		t.Errorf("Error should name the bad field, got %v", err)
	}
}

func TestSendOperationRoutes(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, signingKey, "device_1_000000001")
	ctx := context.Background()

	op := offline.Operation{ID: "op-1", Type: offline.OpCreate, ShoppingListID: "list-1", Payload: json.RawMessage(`{}`)}
	if err := c.SendOperation(ctx, op); err != nil {
		t.Fatalf("SendOperation(create) failed: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/shopping-lists/sync" {
		t.Errorf("create routed to %s %s", gotMethod, gotPath)
	}

	op.Type = offline.OpDelete
	if err := c.SendOperation(ctx, op); err != nil {
		t.Fatalf("SendOperation(delete) failed: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/shopping-lists/list-1" {
		t.Errorf("delete routed to %s %s", gotMethod, gotPath)
	}
}
