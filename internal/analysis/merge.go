package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/justsurfingit/resale-lister/internal/pricing"
)

// Record is the structured result of an item analysis, and also the shape the
// store persists between runs.
type Record struct {
	Title           string                  `json:"title"`
	Brand           string                  `json:"brand,omitempty"`
	Model           string                  `json:"model,omitempty"`
	Category        string                  `json:"category,omitempty"`
	Condition       string                  `json:"condition,omitempty"`
	ConditionNotes  string                  `json:"condition_notes,omitempty"`
	Description     string                  `json:"description,omitempty"`
	Tags            []string                `json:"tags,omitempty"`
	ReferencePrices pricing.ReferencePrices `json:"reference_prices"`
	Facets          []pricing.Facet         `json:"facets,omitempty"`
	Special         bool                    `json:"special"`
	SuggestedPrice  *float64                `json:"suggested_price,omitempty"`
	Uplift          float64                 `json:"uplift"`
}

// ParseRecord decodes the extracted result object.
func ParseRecord(obj string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	return r, nil
}

type damagePattern struct {
	keyword string
	re      *regexp.Regexp
}

func damage(keyword, pattern string) damagePattern {
	return damagePattern{keyword: keyword, re: regexp.MustCompile(`(?i)\b(?:` + pattern + `)\b`)}
}

var damagePatterns = []damagePattern{
	damage("scratch", `scratch(?:es|ed|ing)?|scratchy`),
	damage("scuff", `scuff(?:s|ed|ing)?`),
	damage("dent", `dent(?:s|ed)?`),
	damage("crack", `crack(?:s|ed|ing)?`),
	damage("chip", `chip(?:s|ped|ping)?`),
	damage("stain", `stain(?:s|ed)?`),
	damage("tear", `tear(?:s)?|torn`),
	damage("rip", `rip(?:s|ped)?`),
	damage("hole", `holes?`),
	damage("broken", `broken|broke`),
	damage("missing", `missing`),
	damage("rust", `rust(?:y|ed|ing)?`),
	damage("corrosion", `corrosion|corroded`),
	damage("water damage", `water[ -]damaged?`),
	damage("burn", `burn(?:s|ed|t)?`),
	damage("fade", `fade[ds]?|fading`),
	damage("discolor", `discolou?r(?:ed|ation)?`),
	damage("defect", `defect(?:s|ive)?`),
	damage("not working", `not working|doesn'?t work|does not work|won'?t turn on`),
}

// DamageKeywords returns the canonical damage keywords mentioned in text.
func DamageKeywords(text string) map[string]bool {
	found := make(map[string]bool)
	if text == "" {
		return found
	}
	for _, p := range damagePatterns {
		if p.re.MatchString(text) {
			found[p.keyword] = true
		}
	}
	return found
}

// introducesDamage reports whether next mentions damage that prev does not.
func introducesDamage(prev, next string) bool {
	before := DamageKeywords(prev)
	for k := range DamageKeywords(next) {
		if !before[k] {
			return true
		}
	}
	return false
}

// Merge folds a fresh analysis into the persisted record.
//
// The condition narrative, and the condition label with it, is only replaced
// when there was none or the new narrative reports damage the old one did not.
// Other fields take the new value when it is non-empty.
func Merge(prev, next Record) Record {
	out := prev

	if prev.ConditionNotes == "" || introducesDamage(prev.ConditionNotes, next.ConditionNotes) {
		if next.ConditionNotes != "" {
			out.ConditionNotes = next.ConditionNotes
		}
		if c := canonicalCondition(next.Condition); c != "" {
			out.Condition = c
		}
	}
	if out.Condition == "" {
		out.Condition = canonicalCondition(next.Condition)
	}

	out.Title = pick(prev.Title, next.Title)
	out.Brand = pick(prev.Brand, next.Brand)
	out.Model = pick(prev.Model, next.Model)
	out.Category = pick(prev.Category, strings.ToLower(strings.TrimSpace(next.Category)))
	out.Description = pick(prev.Description, next.Description)
	out.Tags = unionTags(prev.Tags, next.Tags)
	out.ReferencePrices = prev.ReferencePrices.Merge(next.ReferencePrices)
	if len(next.Facets) > 0 {
		out.Facets = next.Facets
		out.Special = next.Special
	}
	return out
}

// Reprice recomputes the suggested price and uplift from the record's own
// reference prices and condition. Records without prices or with an
// unrecognised condition are left unpriced.
func Reprice(r *Record) {
	r.SuggestedPrice = nil
	r.Uplift = 0
	if r.ReferencePrices.Empty() {
		return
	}
	cond, err := pricing.ParseCondition(r.Condition)
	if err != nil {
		return
	}
	s, err := pricing.Suggest(pricing.Input{
		Reference: r.ReferencePrices,
		Condition: cond,
		Category:  r.Category,
		Facets:    r.Facets,
		Special:   r.Special,
	})
	if err != nil {
		return
	}
	r.SuggestedPrice = &s.Price
	r.Uplift = s.Uplift
}

func canonicalCondition(label string) string {
	if strings.TrimSpace(label) == "" {
		return ""
	}
	c, err := pricing.ParseCondition(label)
	if err != nil {
		return ""
	}
	return c.String()
}

func pick(old, nu string) string {
	if strings.TrimSpace(nu) != "" {
		return strings.TrimSpace(nu)
	}
	return old
}

func unionTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			t = strings.TrimSpace(t)
			key := strings.ToLower(t)
			if t == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}
