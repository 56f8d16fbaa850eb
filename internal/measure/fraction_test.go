package measure

import (
	"math"
	"testing"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		input    string
		want     float64
		unparsed bool
	}{
		{"2", 2, false},
		{"1.5", 1.5, false},
		{"3/4", 0.75, false},
		{"1 1/2", 1.5, false},
		{"2 2/3", 2 + 2.0/3.0, false},
		{"½", 0.5, false},
		{"1½", 1.5, false},
		{"⅓", 1.0 / 3.0, false},
		{"  2  ", 2, false},
		{"", 1, true},
		{"a pinch", 1, true},
		{"1/0", 1, true},
		{"-3", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseQuantity(tt.input)
			if math.Abs(got.Value-tt.want) > 1e-9 {
				t.Errorf("ParseQuantity(%q).Value = %v, want %v", tt.input, got.Value, tt.want)
			}
			if got.Unparsed != tt.unparsed {
				t.Errorf("ParseQuantity(%q).Unparsed = %v, want %v", tt.input, got.Unparsed, tt.unparsed)
			}
		})
	}
}

func TestToPracticalFraction(t *testing.T) {
	tests := []struct {
		decimal float64
		want    Fraction
	}{
		{0.33, Fraction{1, 3}},
		{0.25, Fraction{1, 4}},
		{0.5, Fraction{1, 2}},
		{0.66, Fraction{2, 3}},
		{0.75, Fraction{3, 4}},
		{0.125, Fraction{1, 8}},
		{0.375, Fraction{3, 8}},
		{0.01, Fraction{0, 1}},
		{0.99, Fraction{1, 1}},
	}
	for _, tt := range tests {
		got := ToPracticalFraction(tt.decimal)
		if got != tt.want {
			t.Errorf("ToPracticalFraction(%v) = %v/%v, want %v/%v",
				tt.decimal, got.Numerator, got.Denominator, tt.want.Numerator, tt.want.Denominator)
		}
	}
}

func TestRoundToPracticalMeasurement(t *testing.T) {
	t.Run("ThirdOfACup", func(t *testing.T) {
		m := RoundToPracticalMeasurement(1.0/3.0, "cup")
		if m.DisplayText != "⅓ cup" {
			t.Errorf("Expected display '⅓ cup', got %q", m.DisplayText)
		}
		if m.Fraction == nil || *m.Fraction != (Fraction{1, 3}) {
			t.Errorf("Expected fraction 1/3, got %v", m.Fraction)
		}
	})

	t.Run("FourCups", func(t *testing.T) {
		m := RoundToPracticalMeasurement(4, "cups")
		if m.DisplayText != "4 cup" {
			t.Errorf("Expected display '4 cup', got %q", m.DisplayText)
		}
		if m.MixedNumber != nil {
			t.Errorf("Expected no mixed number for a whole quantity, got %v", m.MixedNumber)
		}
	})

	t.Run("MixedNumber", func(t *testing.T) {
		m := RoundToPracticalMeasurement(1.5, "cup")
		if m.DisplayText != "1 ½ cup" {
			t.Errorf("Expected display '1 ½ cup', got %q", m.DisplayText)
		}
		if m.MixedNumber == nil || m.MixedNumber.Whole != 1 || m.MixedNumber.Fraction != (Fraction{1, 2}) {
			t.Errorf("Expected mixed number 1 1/2, got %v", m.MixedNumber)
		}
	})

	t.Run("InsignificantRemainder", func(t *testing.T) {
		m := RoundToPracticalMeasurement(3.02, "cup")
		if m.DisplayText != "3 cup" {
			t.Errorf("Expected remainder under threshold to drop, got %q", m.DisplayText)
		}
	})

	t.Run("TeaspoonFloor", func(t *testing.T) {
		m := RoundToPracticalMeasurement(0.001, "tsp")
		if m.Quantity < 1.0/32.0-1e-9 {
			t.Errorf("Expected floor of 1/32 teaspoon, got %v", m.Quantity)
		}
	})

	t.Run("TeaspoonPromotion", func(t *testing.T) {
		m := RoundToPracticalMeasurement(12, "teaspoons")
		if m.Unit != "tablespoon" {
			t.Errorf("Expected promotion to tablespoon, got %q", m.Unit)
		}
		if m.DisplayText != "4 tablespoon" {
			t.Errorf("Expected display '4 tablespoon', got %q", m.DisplayText)
		}
	})

	t.Run("CoarsePrecisionAboveTen", func(t *testing.T) {
		m := RoundToPracticalMeasurement(12.3, "gram")
		if m.Quantity != 12.25 {
			t.Errorf("Expected quarter precision below 100, got %v", m.Quantity)
		}
	})

	t.Run("WholeAboveHundred", func(t *testing.T) {
		m := RoundToPracticalMeasurement(250.6, "gram")
		if m.Quantity != 251 {
			t.Errorf("Expected whole-integer rounding above 100, got %v", m.Quantity)
		}
	})
}
