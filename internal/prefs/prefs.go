// Package prefs validates user preferences consumed by the scaling
// and shopping-list engines.
package prefs

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// DefaultHouseholdSize is used when the preferences service has no
// stored value.
const DefaultHouseholdSize = 2

// Preferences holds the per-user knobs that drive scaling.
type Preferences struct {
	HouseholdSize int `json:"household_size" validate:"required,min=1,max=20"`
}

// Validator checks preference payloads at the API boundary.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a preferences validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate rejects out-of-range preferences with a human-readable
// message.
func (v *Validator) Validate(p Preferences) error {
	if err := v.validate.Struct(p); err != nil {
		return fmt.Errorf("household size must be between 1 and 20, got %d: %w", p.HouseholdSize, err)
	}
	return nil
}

// Normalize fills defaults for unset preferences. Invalid values are
// not corrected here; callers validate first.
func Normalize(p Preferences) Preferences {
	if p.HouseholdSize == 0 {
		p.HouseholdSize = DefaultHouseholdSize
	}
	return p
}
