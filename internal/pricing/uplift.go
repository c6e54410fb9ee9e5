package pricing

import (
	"math"
	"strings"
)

// MaxUplift caps both a single facet and the sum of all facets.
const MaxUplift = 0.20

const defaultCategory = "general"

// Facet is a detected attribute that can justify a higher price, e.g.
// "original_packaging". Uplift is only consulted for facets the category
// table does not know.
type Facet struct {
	Name   string  `json:"name"`
	Uplift float64 `json:"uplift,omitempty"`
}

var categoryUplifts = map[string]map[string]float64{
	defaultCategory: {
		"original_packaging":    0.05,
		"authenticity_verified": 0.08,
		"complete_set":          0.05,
		"limited_edition":       0.08,
		"signed":                0.10,
		"receipt":               0.03,
		"sealed":                0.08,
	},
	"sneakers": {
		"original_packaging":    0.08,
		"authenticity_verified": 0.12,
		"deadstock":             0.10,
		"limited_edition":       0.10,
		"extra_laces":           0.02,
	},
	"trading_cards": {
		"graded":                0.15,
		"first_edition":         0.12,
		"authenticity_verified": 0.10,
		"sealed":                0.10,
	},
	"watches": {
		"box_and_papers":        0.12,
		"authenticity_verified": 0.10,
		"service_records":       0.05,
	},
	"handbags": {
		"authenticity_verified": 0.15,
		"dust_bag":              0.03,
		"original_packaging":    0.05,
		"receipt":               0.05,
	},
	"electronics": {
		"original_packaging":   0.04,
		"sealed":               0.12,
		"accessories_complete": 0.04,
		"warranty":             0.05,
	},
	"vinyl": {
		"first_pressing": 0.15,
		"sealed":         0.12,
		"signed":         0.12,
	},
	"toys": {
		"original_packaging": 0.10,
		"sealed":             0.15,
		"complete_set":       0.06,
	},
}

var facetAliases = map[string]string{
	"box":                  "original_packaging",
	"original_box":         "original_packaging",
	"in_box":               "original_packaging",
	"packaging":            "original_packaging",
	"authentic":            "authenticity_verified",
	"verified":             "authenticity_verified",
	"authenticated":        "authenticity_verified",
	"certificate":          "authenticity_verified",
	"autographed":          "signed",
	"psa_graded":           "graded",
	"bgs_graded":           "graded",
	"ds":                   "deadstock",
	"new_old_stock":        "deadstock",
	"factory_sealed":       "sealed",
	"box_papers":           "box_and_papers",
	"all_accessories":      "accessories_complete",
	"complete_accessories": "accessories_complete",
}

// NormalizeFacet folds a free-form facet name into the table key form.
func NormalizeFacet(name string) string {
	key := strings.Join(strings.Fields(normalizeLabel(name)), "_")
	if alias, ok := facetAliases[key]; ok {
		return alias
	}
	return key
}

// KnownCategory reports whether category has its own uplift table.
func KnownCategory(category string) bool {
	_, ok := categoryUplifts[strings.ToLower(strings.TrimSpace(category))]
	return ok
}

// Uplift sums the category-specific uplifts of facets for special items.
// Duplicate facets count once and the total is capped at MaxUplift.
func Uplift(category string, facets []Facet, special bool) float64 {
	if !special || len(facets) == 0 {
		return 0
	}
	table, ok := categoryUplifts[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		table = categoryUplifts[defaultCategory]
	}
	fallback := categoryUplifts[defaultCategory]

	seen := make(map[string]bool, len(facets))
	var sum float64
	for _, f := range facets {
		name := NormalizeFacet(f.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		v, ok := table[name]
		if !ok {
			v, ok = fallback[name]
		}
		if !ok {
			v = clampUplift(f.Uplift)
		}
		sum += v
	}
	return clampUplift(math.Round(sum*10000) / 10000)
}

func clampUplift(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > MaxUplift:
		return MaxUplift
	}
	return v
}
