package shopping

import "sort"

// Item is one consolidated shopping-list line. Quantity is the
// practical display string ("1 ½ cup"); Amount keeps the rounded
// numeric value for anything that needs to do math on it.
type Item struct {
	Name     string   `json:"name"`
	Quantity string   `json:"quantity"`
	Amount   float64  `json:"amount"`
	Unit     string   `json:"unit"`
	Category string   `json:"category"`
	Recipes  []string `json:"recipes"`
	Checked  bool     `json:"checked"`
}

// List maps category names to their consolidated items. Derived
// entirely from a meal plan plus household size; regenerated rather
// than edited, except for per-item Checked flags.
type List map[string][]Item

// IsEmpty reports whether the list has nothing to shop for. An empty
// meal plan legitimately produces an empty list; callers should treat
// it as such, not as an error.
func (l List) IsEmpty() bool {
	for _, items := range l {
		if len(items) > 0 {
			return false
		}
	}
	return true
}

// ItemCount returns the total number of lines across categories.
func (l List) ItemCount() int {
	n := 0
	for _, items := range l {
		n += len(items)
	}
	return n
}

// DefaultAisleOrder is the fixed store-walk priority for categories.
// Categories not listed here sort alphabetically after these.
var DefaultAisleOrder = []string{
	"produce",
	"meat & seafood",
	"dairy & eggs",
	"pantry",
	"grains & bread",
	"frozen",
	"beverages",
	"other",
}

// CategoryOrder returns the list's categories in aisle-priority order,
// with unknown categories appended alphabetically.
func (l List) CategoryOrder(aisles []string) []string {
	if len(aisles) == 0 {
		aisles = DefaultAisleOrder
	}
	known := make(map[string]bool, len(aisles))
	var out []string
	for _, a := range aisles {
		known[a] = true
		if _, ok := l[a]; ok {
			out = append(out, a)
		}
	}
	var rest []string
	for cat := range l {
		if !known[cat] {
			rest = append(rest, cat)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
