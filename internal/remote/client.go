package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mealsync/internal/offline"
	"mealsync/internal/plan"
)

// Remote calls carry fixed timeouts; a timeout counts as a retryable
// failure. There is no mid-flight cancellation beyond these.
const (
	readTimeout  = 10 * time.Second
	writeTimeout = 15 * time.Second
)

// Client talks to the remote meal-plan and shopping-list APIs.
type Client struct {
	baseURL     string
	signingKey  []byte
	deviceID    string
	readClient  *http.Client
	writeClient *http.Client
}

// NewClient creates a Client for the given API base URL. signingKey
// signs the per-request device token; deviceID identifies this
// installation to the server.
func NewClient(baseURL string, signingKey []byte, deviceID string) *Client {
	return &Client{
		baseURL:     baseURL,
		signingKey:  signingKey,
		deviceID:    deviceID,
		readClient:  &http.Client{Timeout: readTimeout},
		writeClient: &http.Client{Timeout: writeTimeout},
	}
}

// deviceToken signs a short-lived token identifying this device.
func (c *Client) deviceToken() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": c.deviceID,
		"aud": "mealsync-sync",
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	})
	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign device token: %w", err)
	}
	return signed, nil
}

func (c *Client) do(ctx context.Context, httpClient *http.Client, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	token, err := c.deviceToken()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Device-ID", c.deviceID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return classifyStatus(resp.StatusCode, errBody.Message)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// slotPayload is the wire shape of one assigned meal.
type slotPayload struct {
	ID             string      `json:"id"`
	RecipeID       string      `json:"recipe_id"`
	Recipe         plan.Recipe `json:"recipe"`
	Servings       int         `json:"servings"`
	ScheduledFor   string      `json:"scheduled_for"`
	ManualOverride bool        `json:"manual_override"`
	Notes          string      `json:"notes,omitempty"`
}

// planPayload is the wire shape of a meal plan: day-of-week integers
// (0 = Sunday) mapping to meal-type strings.
type planPayload struct {
	ID        string                         `json:"id"`
	UserID    string                         `json:"user_id"`
	WeekStart string                         `json:"week_start"`
	Days      map[int]map[string]slotPayload `json:"days"`
	CreatedAt time.Time                      `json:"created_at"`
	UpdatedAt time.Time                      `json:"updated_at"`
	Version   int64                          `json:"version,omitempty"`
}

func toPlanPayload(p *plan.MealPlan) planPayload {
	out := planPayload{
		ID:        p.ID,
		UserID:    p.UserID,
		WeekStart: p.WeekStart.Format("2006-01-02"),
		Days:      map[int]map[string]slotPayload{},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	for day, slots := range p.Meals {
		d := map[string]slotPayload{}
		for mt, slot := range slots {
			d[string(mt)] = slotPayload{
				ID:             slot.ID,
				RecipeID:       slot.RecipeID,
				Recipe:         slot.Recipe,
				Servings:       slot.Servings,
				ScheduledFor:   slot.ScheduledFor.Format("2006-01-02"),
				ManualOverride: slot.ManualOverride,
				Notes:          slot.Notes,
			}
		}
		out.Days[int(day)] = d
	}
	return out
}

func fromPlanPayload(pp planPayload) (*plan.MealPlan, error) {
	weekStart, err := time.ParseInLocation("2006-01-02", pp.WeekStart, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("failed to parse week start %q: %w", pp.WeekStart, err)
	}
	p := &plan.MealPlan{
		ID:        pp.ID,
		UserID:    pp.UserID,
		WeekStart: weekStart,
		Meals:     map[time.Weekday]map[plan.MealType]plan.MealSlot{},
		CreatedAt: pp.CreatedAt,
		UpdatedAt: pp.UpdatedAt,
	}
	for day, slots := range pp.Days {
		if day < 0 || day > 6 {
			continue
		}
		d := map[plan.MealType]plan.MealSlot{}
		for mt, sp := range slots {
			scheduled, err := time.ParseInLocation("2006-01-02", sp.ScheduledFor, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("failed to parse scheduled_for %q: %w", sp.ScheduledFor, err)
			}
			d[plan.MealType(mt)] = plan.MealSlot{
				ID:             sp.ID,
				RecipeID:       sp.RecipeID,
				Recipe:         sp.Recipe,
				Servings:       sp.Servings,
				ScheduledFor:   scheduled,
				MealType:       plan.MealType(mt),
				ManualOverride: sp.ManualOverride,
				Notes:          sp.Notes,
			}
		}
		p.Meals[time.Weekday(day)] = d
	}
	return p, nil
}

// GetMealPlan fetches the canonical plan for one user's week.
func (c *Client) GetMealPlan(ctx context.Context, userID string, weekStart time.Time) (*plan.MealPlan, error) {
	path := fmt.Sprintf("/meal-plans/%s/%s", userID, weekStart.Format("2006-01-02"))
	var pp planPayload
	if err := c.do(ctx, c.readClient, http.MethodGet, path, nil, &pp); err != nil {
		return nil, err
	}
	return fromPlanPayload(pp)
}

// CreateMealPlan registers a new plan and returns the server's
// canonical representation.
func (c *Client) CreateMealPlan(ctx context.Context, p *plan.MealPlan) (*plan.MealPlan, error) {
	var pp planPayload
	if err := c.do(ctx, c.writeClient, http.MethodPost, "/meal-plans", toPlanPayload(p), &pp); err != nil {
		return nil, err
	}
	return fromPlanPayload(pp)
}

// PutMealPlan replaces a plan and returns the server's canonical
// representation. A version mismatch comes back as ErrConflict.
func (c *Client) PutMealPlan(ctx context.Context, p *plan.MealPlan) (*plan.MealPlan, error) {
	path := fmt.Sprintf("/meal-plans/%s/%s", p.UserID, p.WeekStart.Format("2006-01-02"))
	var pp planPayload
	if err := c.do(ctx, c.writeClient, http.MethodPut, path, toPlanPayload(p), &pp); err != nil {
		return nil, err
	}
	return fromPlanPayload(pp)
}

// SendOperation replays one queued shopping-list mutation against the
// remote shopping-list API.
func (c *Client) SendOperation(ctx context.Context, op offline.Operation) error {
	switch op.Type {
	case offline.OpDelete:
		return c.do(ctx, c.writeClient, http.MethodDelete, "/shopping-lists/"+op.ShoppingListID, nil, nil)
	default:
		body := map[string]any{
			"operation":        string(op.Type),
			"shopping_list_id": op.ShoppingListID,
			"payload":          op.Payload,
			"timestamp":        op.Timestamp,
		}
		return c.do(ctx, c.writeClient, http.MethodPost, "/shopping-lists/sync", body, nil)
	}
}
