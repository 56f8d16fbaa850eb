package prefs

import "testing"

func TestValidate(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"minimum", 1, false},
		{"typical", 4, false},
		{"maximum", 20, false},
		{"zero", 0, true},
		{"negative", -3, true},
		{"too large", 21, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(Preferences{HouseholdSize: tt.size})
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize(Preferences{}).HouseholdSize; got != DefaultHouseholdSize {
		t.Errorf("Normalize default = %d, want %d", got, DefaultHouseholdSize)
	}
	if got := Normalize(Preferences{HouseholdSize: 6}).HouseholdSize; got != 6 {
		t.Errorf("Normalize must keep explicit value, got %d", got)
	}
}
