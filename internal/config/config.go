package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the application.
type Config struct {
	// Remote API
	APIBaseURL     string
	SyncSigningKey string
	UserID         string

	// Local storage
	DatabasePath    string
	MaxStorageBytes int64

	// Scaling
	HouseholdSize int

	// Optional aisle-order override file (YAML list of categories).
	AisleOrderPath string
}

// NewFromEnv creates a Config from environment variables. A local
// .env file is loaded first when present.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	apiBaseURL := os.Getenv("MEALSYNC_API_URL")
	if apiBaseURL == "" {
		return nil, fmt.Errorf("MEALSYNC_API_URL environment variable not set")
	}

	signingKey := os.Getenv("MEALSYNC_SYNC_KEY")
	if signingKey == "" {
		return nil, fmt.Errorf("MEALSYNC_SYNC_KEY environment variable not set")
	}

	userID := os.Getenv("MEALSYNC_USER_ID")
	if userID == "" {
		return nil, fmt.Errorf("MEALSYNC_USER_ID environment variable not set")
	}

	dbPath := os.Getenv("MEALSYNC_DB_PATH")
	if dbPath == "" {
		dbPath = "data/mealsync.db"
	}

	var maxBytes int64
	if raw := os.Getenv("MEALSYNC_MAX_STORAGE_BYTES"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("MEALSYNC_MAX_STORAGE_BYTES must be a positive integer, got %q", raw)
		}
		maxBytes = parsed
	}

	householdSize := 0
	if raw := os.Getenv("MEALSYNC_HOUSEHOLD_SIZE"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("MEALSYNC_HOUSEHOLD_SIZE must be an integer, got %q", raw)
		}
		householdSize = parsed
	}

	return &Config{
		APIBaseURL:      apiBaseURL,
		SyncSigningKey:  signingKey,
		UserID:          userID,
		DatabasePath:    dbPath,
		MaxStorageBytes: maxBytes,
		HouseholdSize:   householdSize,
		AisleOrderPath:  os.Getenv("MEALSYNC_AISLE_ORDER_PATH"),
	}, nil
}

// LoadAisleOrder reads a YAML category priority list. An empty path
// returns nil, letting callers fall back to the built-in order.
func LoadAisleOrder(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read aisle order file: %w", err)
	}
	var aisles []string
	if err := yaml.Unmarshal(data, &aisles); err != nil {
		return nil, fmt.Errorf("failed to parse aisle order file: %w", err)
	}
	return aisles, nil
}
