package measure

import (
	"math"
	"testing"
)

func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Cups", "cup"},
		{"tsp", "teaspoon"},
		{"Tbsp.", "tablespoon"},
		{"fl oz", "fluid ounce"},
		{"LBS", "pound"},
		{"ml", "milliliter"},
		{"grams", "gram"},
		{"pinches", "pinch"},
		{"cloves", "clove"},
		{"widgets", "widgets"},
	}
	for _, tt := range tests {
		if got := NormalizeUnit(tt.input); got != tt.want {
			t.Errorf("NormalizeUnit(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestUnitFamily(t *testing.T) {
	if UnitFamily("cup") != FamilyVolume {
		t.Error("Expected cup to be volume")
	}
	if UnitFamily("kg") != FamilyWeight {
		t.Error("Expected kg to be weight")
	}
	if UnitFamily("clove") != FamilyCount {
		t.Error("Expected clove to be count")
	}
	// Unknown units degrade to count so they pass through untouched.
	if UnitFamily("smidgen") != FamilyCount {
		t.Error("Expected unknown unit to fall into count family")
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"cup", "ml", true},
		{"teaspoon", "gallon", true},
		{"gram", "pound", true},
		{"cup", "gram", false},
		{"clove", "clove", true},
		{"cloves", "clove", true},
		{"clove", "piece", false},
		{"smidgen", "smidgen", true},
		{"smidgen", "cup", false},
	}
	for _, tt := range tests {
		if got := Compatible(tt.a, tt.b); got != tt.want {
			t.Errorf("Compatible(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestConvertToCommonUnit(t *testing.T) {
	m := ConvertToCommonUnit(2, "cups")
	if m.Unit != "milliliter" {
		t.Errorf("Expected milliliter, got %q", m.Unit)
	}
	if math.Abs(m.Quantity-473.176) > 0.01 {
		t.Errorf("Expected 2 cups = 473.176 ml, got %v", m.Quantity)
	}

	w := ConvertToCommonUnit(1, "lb")
	if w.Unit != "gram" || math.Abs(w.Quantity-453.592) > 0.01 {
		t.Errorf("Expected 1 lb = 453.592 g, got %v %s", w.Quantity, w.Unit)
	}

	c := ConvertToCommonUnit(3, "cloves")
	if c.Unit != "clove" || c.Quantity != 3 || c.System != SystemImperial {
		t.Errorf("Expected count unit to pass through, got %+v", c)
	}
}

func TestConvertBetweenSystems(t *testing.T) {
	got := ConvertBetweenSystems(3, "teaspoon", "tablespoon")
	if math.Abs(got-1) > 0.01 {
		t.Errorf("Expected 3 tsp = 1 tbsp, got %v", got)
	}

	// Incompatible families return the quantity unchanged by design.
	if got := ConvertBetweenSystems(2, "cup", "gram"); got != 2 {
		t.Errorf("Expected cross-family conversion to pass through, got %v", got)
	}
}

// Round-trip conversion between any two compatible units must recover
// the original quantity within 5% relative error.
func TestRoundTripAccuracy(t *testing.T) {
	volume := []string{"teaspoon", "tablespoon", "fluid ounce", "cup", "pint", "quart", "gallon", "milliliter", "liter"}
	weight := []string{"ounce", "pound", "gram", "kilogram"}
	quantities := []float64{0.25, 1, 2.5, 17, 100}

	check := func(units []string) {
		for _, u1 := range units {
			for _, u2 := range units {
				for _, q := range quantities {
					there := ConvertBetweenSystems(q, u1, u2)
					back := ConvertBetweenSystems(there, u2, u1)
					if rel := math.Abs(back-q) / q; rel > 0.05 {
						t.Errorf("Round trip %v %s -> %s -> %s drifted %.2f%%", q, u1, u2, u1, rel*100)
					}
				}
			}
		}
	}
	check(volume)
	check(weight)
}
