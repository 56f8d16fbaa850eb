package measure

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParsedQuantity is the numeric reading of an ingredient quantity
// string. Unparsed marks inputs the parser could not understand; the
// value still defaults to 1 so downstream totals stay usable.
type ParsedQuantity struct {
	Value    float64
	Unparsed bool
}

// vulgarFractions maps unicode fraction glyphs to their decimal value,
// both for parsing recipe text and for rendering display quantities.
var vulgarFractions = map[string]float64{
	"½": 0.5,
	"⅓": 1.0 / 3.0,
	"⅔": 2.0 / 3.0,
	"¼": 0.25,
	"¾": 0.75,
	"⅛": 0.125,
	"⅜": 0.375,
	"⅝": 0.625,
	"⅞": 0.875,
}

// ParseQuantity reads integers ("2"), decimals ("1.5"), simple
// fractions ("3/4"), mixed numbers ("1 1/2") and unicode fraction
// glyphs ("1½"). Anything else yields {1, Unparsed: true}.
func ParseQuantity(text string) ParsedQuantity {
	s := strings.TrimSpace(text)
	if s == "" {
		return ParsedQuantity{Value: 1, Unparsed: true}
	}

	// Split off a unicode glyph suffix, e.g. "1½" or "½".
	for glyph, val := range vulgarFractions {
		if strings.Contains(s, glyph) {
			whole := strings.TrimSpace(strings.Replace(s, glyph, "", 1))
			if whole == "" {
				return ParsedQuantity{Value: val}
			}
			if w, err := strconv.ParseFloat(whole, 64); err == nil && w >= 0 {
				return ParsedQuantity{Value: w + val}
			}
			return ParsedQuantity{Value: 1, Unparsed: true}
		}
	}

	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		if v, ok := parseNumberOrFraction(fields[0]); ok {
			return ParsedQuantity{Value: v}
		}
	case 2:
		// Mixed number: whole part followed by a fraction.
		whole, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || whole < 0 {
			break
		}
		if frac, ok := parseFraction(fields[1]); ok {
			return ParsedQuantity{Value: whole + frac}
		}
	}
	return ParsedQuantity{Value: 1, Unparsed: true}
}

func parseNumberOrFraction(s string) (float64, bool) {
	if v, err := strconv.ParseFloat(s, 64); err == nil && v >= 0 {
		return v, true
	}
	return parseFraction(s)
}

func parseFraction(s string) (float64, bool) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return 0, false
	}
	n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
	d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err1 != nil || err2 != nil || d == 0 || n < 0 {
		return 0, false
	}
	return n / d, true
}

// Fraction is a cooking-practical fraction with a denominator from the
// fixed set {2, 3, 4, 8}.
type Fraction struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

func (f Fraction) String() string {
	if glyph, ok := fractionGlyphs[f]; ok {
		return glyph
	}
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

var fractionGlyphs = map[Fraction]string{
	{1, 2}: "½",
	{1, 3}: "⅓",
	{2, 3}: "⅔",
	{1, 4}: "¼",
	{3, 4}: "¾",
	{1, 8}: "⅛",
	{3, 8}: "⅜",
	{5, 8}: "⅝",
	{7, 8}: "⅞",
}

// practicalDenominators is ordered smallest-first so that ties resolve
// to the smallest denominator.
var practicalDenominators = []int{2, 3, 4, 8}

// ToPracticalFraction maps a decimal in [0, 1) to the nearest fraction
// over the practical denominator set. 0.33 becomes 1/3, 0.25 becomes
// 1/4. Values nearest to zero or one collapse to 0/1 or 1/1.
func ToPracticalFraction(decimal float64) Fraction {
	best := Fraction{0, 1}
	bestDist := math.Abs(decimal)
	if d := math.Abs(decimal - 1); d < bestDist {
		best = Fraction{1, 1}
		bestDist = d
	}
	for _, den := range practicalDenominators {
		for num := 1; num < den; num++ {
			d := math.Abs(decimal - float64(num)/float64(den))
			if d < bestDist-1e-9 {
				best = Fraction{num, den}
				bestDist = d
			}
		}
	}
	return reduceFraction(best)
}

func reduceFraction(f Fraction) Fraction {
	g := gcd(f.Numerator, f.Denominator)
	if g > 1 {
		return Fraction{f.Numerator / g, f.Denominator / g}
	}
	return f
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// MixedNumber is a whole part plus a practical fraction, e.g. 1 ½.
type MixedNumber struct {
	Whole    int      `json:"whole"`
	Fraction Fraction `json:"fraction"`
}

// PracticalMeasurement is a quantity rounded to something a cook can
// actually measure, with a ready-to-show display string.
type PracticalMeasurement struct {
	Quantity    float64
	Unit        string
	DisplayText string
	Fraction    *Fraction
	MixedNumber *MixedNumber
}

// unitFloors gives the smallest quantity worth displaying per unit.
// Anything below is clamped up rather than shown as dust.
var unitFloors = map[string]float64{
	"teaspoon":    1.0 / 32.0,
	"tablespoon":  1.0 / 8.0,
	"cup":         1.0 / 8.0,
	"ounce":       1.0 / 8.0,
	"fluid ounce": 1.0 / 8.0,
	"milliliter":  1,
	"gram":        1,
}

type promotion struct {
	threshold float64
	toUnit    string
	factor    float64
}

// unitPromotions converts awkwardly large quantities into the next
// unit up: 12+ teaspoons read better as tablespoons.
var unitPromotions = map[string]promotion{
	"teaspoon":   {12, "tablespoon", 3},
	"tablespoon": {16, "cup", 16},
	"milliliter": {1000, "liter", 1000},
	"gram":       {1000, "kilogram", 1000},
}

// mixedNumberThreshold is the fractional remainder below which a
// quantity between 1 and 10 displays as a plain whole number.
const mixedNumberThreshold = 0.05

// RoundToPracticalMeasurement clamps, promotes and rounds a quantity
// into cooking-practical form. Quantities under 1 render as a fraction
// glyph, 1 to 10 as a mixed number when the remainder is significant,
// and larger quantities round to a precision tier that coarsens with
// magnitude.
func RoundToPracticalMeasurement(qty float64, u string) PracticalMeasurement {
	n := NormalizeUnit(u)

	if floor, ok := unitFloors[n]; ok && qty > 0 && qty < floor {
		qty = floor
	}
	if promo, ok := unitPromotions[n]; ok && qty >= promo.threshold {
		qty = qty / promo.factor
		n = promo.toUnit
	}

	rounded := roundToTier(qty)

	m := PracticalMeasurement{Quantity: rounded, Unit: n}
	switch {
	case rounded < 1 && rounded > 0:
		frac := ToPracticalFraction(rounded)
		if frac == (Fraction{0, 1}) || frac == (Fraction{1, 1}) {
			// Below (or pinned at) the practical set: show exact 32nds.
			frac = reduceFraction(Fraction{int(math.Round(rounded * 32)), 32})
		}
		m.Fraction = &frac
		m.DisplayText = fmt.Sprintf("%s %s", frac.String(), n)
	case rounded >= 1 && rounded < 10:
		whole := int(rounded)
		remainder := rounded - float64(whole)
		if remainder > mixedNumberThreshold {
			frac := ToPracticalFraction(remainder)
			if frac == (Fraction{1, 1}) {
				whole++
				m.DisplayText = fmt.Sprintf("%d %s", whole, n)
				break
			}
			if frac != (Fraction{0, 1}) {
				mixed := MixedNumber{Whole: whole, Fraction: frac}
				m.MixedNumber = &mixed
				m.DisplayText = fmt.Sprintf("%d %s %s", whole, frac.String(), n)
				break
			}
		}
		m.DisplayText = fmt.Sprintf("%d %s", whole, n)
	default:
		m.DisplayText = fmt.Sprintf("%s %s", formatNumber(rounded), n)
	}
	return m
}

// roundToTier rounds to a precision that coarsens with magnitude:
// 1/32 below 1, 1/8 below 10, 1/4 below 100, whole integers above.
func roundToTier(qty float64) float64 {
	switch {
	case qty < 1:
		return math.Round(qty*32) / 32
	case qty < 10:
		return math.Round(qty*8) / 8
	case qty < 100:
		return math.Round(qty*4) / 4
	default:
		return math.Round(qty)
	}
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
