package pricing

import (
	"fmt"
	"strings"
)

// Condition is the seller-facing condition grade. The zero value is New and the
// constants are ordered from best to worst, so a larger value always means a
// more worn item.
type Condition int

const (
	ConditionNew Condition = iota
	ConditionLikeNew
	ConditionVeryGood
	ConditionGood
	ConditionFair
	ConditionPoor
	ConditionForParts
)

var conditionLabels = [...]string{
	ConditionNew:      "New",
	ConditionLikeNew:  "Like New",
	ConditionVeryGood: "Very Good",
	ConditionGood:     "Good",
	ConditionFair:     "Fair",
	ConditionPoor:     "Poor",
	ConditionForParts: "For Parts",
}

// conditionAliases maps normalized free text (what the LLM or a user types) to a grade.
var conditionAliases = map[string]Condition{
	"new":                      ConditionNew,
	"brand new":                ConditionNew,
	"new with tags":            ConditionNew,
	"nwt":                      ConditionNew,
	"sealed":                   ConditionNew,
	"like new":                 ConditionLikeNew,
	"mint":                     ConditionLikeNew,
	"open box":                 ConditionLikeNew,
	"new without tags":         ConditionLikeNew,
	"nwot":                     ConditionLikeNew,
	"very good":                ConditionVeryGood,
	"excellent":                ConditionVeryGood,
	"good":                     ConditionGood,
	"used":                     ConditionGood,
	"fair":                     ConditionFair,
	"acceptable":               ConditionFair,
	"poor":                     ConditionPoor,
	"damaged":                  ConditionPoor,
	"for parts":                ConditionForParts,
	"parts":                    ConditionForParts,
	"for parts or not working": ConditionForParts,
	"not working":              ConditionForParts,
}

// Conditions returns every grade in ladder order.
func Conditions() []Condition {
	out := make([]Condition, 0, len(conditionLabels))
	for c := ConditionNew; c <= ConditionForParts; c++ {
		out = append(out, c)
	}
	return out
}

func (c Condition) Valid() bool {
	return c >= ConditionNew && c <= ConditionForParts
}

func (c Condition) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Condition(%d)", int(c))
	}
	return conditionLabels[c]
}

// ParseCondition accepts the canonical labels plus common marketplace spellings
// ("like-new", "NWT", "for_parts").
func ParseCondition(s string) (Condition, error) {
	key := normalizeLabel(s)
	if c, ok := conditionAliases[key]; ok {
		return c, nil
	}
	return ConditionGood, fmt.Errorf("%w: %q", ErrUnknownCondition, s)
}

func (c Condition) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCondition, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Condition) UnmarshalText(b []byte) error {
	parsed, err := ParseCondition(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ", "/", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
