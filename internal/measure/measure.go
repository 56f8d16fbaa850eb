package measure

import "strings"

// System identifies the measurement system a unit belongs to.
type System string

const (
	SystemMetric   System = "metric"
	SystemImperial System = "imperial"
)

// Family groups units that can be converted into one another.
// Units from different families never convert or consolidate.
type Family int

const (
	FamilyVolume Family = iota + 1
	FamilyWeight
	FamilyCount
)

func (f Family) String() string {
	switch f {
	case FamilyVolume:
		return "volume"
	case FamilyWeight:
		return "weight"
	default:
		return "count"
	}
}

// Measurement is a quantity normalized into a family's common unit
// (milliliters for volume, grams for weight).
type Measurement struct {
	Quantity float64
	Unit     string
	System   System
}

type unit struct {
	family Family
	system System
	// factor converts one of this unit into the family's common unit.
	factor float64
}

// units maps canonical unit names to their conversion definitions.
// Volume converts to milliliters, weight to grams. Count-style units
// (piece, clove, ...) carry factor 1 and only ever pass through.
var units = map[string]unit{
	// Volume
	"teaspoon":    {FamilyVolume, SystemImperial, 4.92892},
	"tablespoon":  {FamilyVolume, SystemImperial, 14.7868},
	"fluid ounce": {FamilyVolume, SystemImperial, 29.5735},
	"cup":         {FamilyVolume, SystemImperial, 236.588},
	"pint":        {FamilyVolume, SystemImperial, 473.176},
	"quart":       {FamilyVolume, SystemImperial, 946.353},
	"gallon":      {FamilyVolume, SystemImperial, 3785.41},
	"milliliter":  {FamilyVolume, SystemMetric, 1},
	"liter":       {FamilyVolume, SystemMetric, 1000},

	// Weight
	"ounce":    {FamilyWeight, SystemImperial, 28.3495},
	"pound":    {FamilyWeight, SystemImperial, 453.592},
	"gram":     {FamilyWeight, SystemMetric, 1},
	"kilogram": {FamilyWeight, SystemMetric, 1000},

	// Count
	"piece":   {FamilyCount, SystemImperial, 1},
	"clove":   {FamilyCount, SystemImperial, 1},
	"slice":   {FamilyCount, SystemImperial, 1},
	"can":     {FamilyCount, SystemImperial, 1},
	"bunch":   {FamilyCount, SystemImperial, 1},
	"package": {FamilyCount, SystemImperial, 1},
	"pinch":   {FamilyCount, SystemImperial, 1},
	"dash":    {FamilyCount, SystemImperial, 1},
}

// aliases maps common spellings and abbreviations to canonical unit names.
// Plural forms are handled by NormalizeUnit before this lookup.
var aliases = map[string]string{
	"tsp":        "teaspoon",
	"t":          "teaspoon",
	"tbsp":       "tablespoon",
	"tbs":        "tablespoon",
	"tb":         "tablespoon",
	"fl oz":      "fluid ounce",
	"floz":       "fluid ounce",
	"fluid oz":   "fluid ounce",
	"c":          "cup",
	"pt":         "pint",
	"qt":         "quart",
	"gal":        "gallon",
	"ml":         "milliliter",
	"millilitre": "milliliter",
	"l":          "liter",
	"litre":      "liter",
	"oz":         "ounce",
	"lb":         "pound",
	"lbs":        "pound",
	"g":          "gram",
	"gm":         "gram",
	"kg":         "kilogram",
	"pc":         "piece",
	"pcs":        "piece",
	"pkg":        "package",
	"ea":         "piece",
	"each":       "piece",
	"whole":      "piece",
	"unit":       "piece",
	"stick":      "piece",
	"head":       "piece",
	"stalk":      "piece",
	"sprig":      "piece",
	"fillet":     "piece",
	"filet":      "piece",
	"container":  "package",
	"bag":        "package",
	"box":        "package",
	"jar":        "can",
	"bottle":     "can",
	"tin":        "can",
	"loaf":       "piece",
	"loaves":     "piece",
	"leaf":       "piece",
	"leaves":     "piece",
	"ear":        "piece",
}

// NormalizeUnit lowercases, trims and de-pluralizes a unit string and
// resolves known aliases to a canonical name. Unknown units come back
// normalized but otherwise unchanged.
func NormalizeUnit(u string) string {
	n := strings.ToLower(strings.TrimSpace(u))
	n = strings.TrimSuffix(n, ".")
	if canonical, ok := aliases[n]; ok {
		return canonical
	}
	if _, ok := units[n]; ok {
		return n
	}
	// Try singular forms: "cups" -> "cup", "pinches" -> "pinch".
	if s := strings.TrimSuffix(n, "es"); s != n {
		if canonical, ok := aliases[s]; ok {
			return canonical
		}
		if _, ok := units[s]; ok {
			return s
		}
	}
	if s := strings.TrimSuffix(n, "s"); s != n {
		if canonical, ok := aliases[s]; ok {
			return canonical
		}
		if _, ok := units[s]; ok {
			return s
		}
	}
	return n
}

// UnitFamily reports the family of a unit. Units missing from the
// conversion table fall into the count family, so they pass through
// consolidation untouched instead of failing.
func UnitFamily(u string) Family {
	if def, ok := units[NormalizeUnit(u)]; ok {
		return def.family
	}
	return FamilyCount
}

// Compatible reports whether quantities in the two units may be summed.
// Volume and weight units are compatible within their family. Count
// units carry no conversion factors between each other, so they are
// compatible only when they normalize to the same unit.
func Compatible(a, b string) bool {
	na, nb := NormalizeUnit(a), NormalizeUnit(b)
	fa, fb := UnitFamily(na), UnitFamily(nb)
	if fa != fb {
		return false
	}
	if fa == FamilyCount {
		return na == nb
	}
	return true
}

// ConvertToCommonUnit normalizes a quantity into its family's common
// unit: milliliters for volume, grams for weight. Count units pass
// through unchanged with the system defaulted to imperial.
func ConvertToCommonUnit(qty float64, u string) Measurement {
	n := NormalizeUnit(u)
	def, ok := units[n]
	if !ok || def.family == FamilyCount {
		return Measurement{Quantity: qty, Unit: n, System: SystemImperial}
	}
	common := "milliliter"
	if def.family == FamilyWeight {
		common = "gram"
	}
	return Measurement{Quantity: qty * def.factor, Unit: common, System: def.system}
}

// ConvertBetweenSystems converts a quantity from one unit to another by
// round-tripping through the family's common unit. Incompatible units
// (volume vs weight vs count) return the quantity unchanged; callers
// are expected to have checked Compatible first when it matters.
func ConvertBetweenSystems(qty float64, fromUnit, toUnit string) float64 {
	from, okFrom := units[NormalizeUnit(fromUnit)]
	to, okTo := units[NormalizeUnit(toUnit)]
	if !okFrom || !okTo || from.family != to.family || from.family == FamilyCount {
		return qty
	}
	return qty * from.factor / to.factor
}
