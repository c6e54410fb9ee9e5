// Package platforms shapes a listing into the field set each marketplace's
// posting form expects. The browser extension fills these values verbatim.
package platforms

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/justsurfingit/resale-lister/internal/pricing"
)

var (
	ErrUnknownPlatform   = errors.New("unknown platform")
	ErrIncompleteListing = errors.New("incomplete listing")
)

type Platform string

const (
	EBay       Platform = "ebay"
	Facebook   Platform = "facebook"
	Mercari    Platform = "mercari"
	Poshmark   Platform = "poshmark"
	Craigslist Platform = "craigslist"
)

type rules struct {
	titleMax       int
	descriptionMax int
	minPrice       float64
	maxTags        int
	conditions     map[pricing.Condition]string
	// conditionIDs are numeric codes some forms submit instead of labels.
	conditionIDs map[pricing.Condition]string
}

var catalog = map[Platform]rules{
	EBay: {
		titleMax:       80,
		descriptionMax: 4000,
		minPrice:       0.99,
		conditions: map[pricing.Condition]string{
			pricing.ConditionNew:      "New",
			pricing.ConditionLikeNew:  "Open box",
			pricing.ConditionVeryGood: "Used",
			pricing.ConditionGood:     "Used",
			pricing.ConditionFair:     "Used",
			pricing.ConditionPoor:     "Used",
			pricing.ConditionForParts: "For parts or not working",
		},
		conditionIDs: map[pricing.Condition]string{
			pricing.ConditionNew:      "1000",
			pricing.ConditionLikeNew:  "1500",
			pricing.ConditionVeryGood: "3000",
			pricing.ConditionGood:     "3000",
			pricing.ConditionFair:     "3000",
			pricing.ConditionPoor:     "3000",
			pricing.ConditionForParts: "7000",
		},
	},
	Facebook: {
		titleMax:       100,
		descriptionMax: 5000,
		minPrice:       1,
		maxTags:        20,
		conditions: map[pricing.Condition]string{
			pricing.ConditionNew:      "New",
			pricing.ConditionLikeNew:  "Used - Like New",
			pricing.ConditionVeryGood: "Used - Good",
			pricing.ConditionGood:     "Used - Good",
			pricing.ConditionFair:     "Used - Fair",
			pricing.ConditionPoor:     "Used - Fair",
			pricing.ConditionForParts: "Used - Fair",
		},
	},
	Mercari: {
		titleMax:       80,
		descriptionMax: 1000,
		minPrice:       1,
		maxTags:        3,
		conditions: map[pricing.Condition]string{
			pricing.ConditionNew:      "New",
			pricing.ConditionLikeNew:  "Like new",
			pricing.ConditionVeryGood: "Good",
			pricing.ConditionGood:     "Good",
			pricing.ConditionFair:     "Fair",
			pricing.ConditionPoor:     "Poor",
			pricing.ConditionForParts: "Poor",
		},
	},
	Poshmark: {
		titleMax:       80,
		descriptionMax: 1500,
		minPrice:       3,
		conditions: map[pricing.Condition]string{
			pricing.ConditionNew:      "New With Tags",
			pricing.ConditionLikeNew:  "Like New",
			pricing.ConditionVeryGood: "Good",
			pricing.ConditionGood:     "Good",
			pricing.ConditionFair:     "Fair",
			pricing.ConditionPoor:     "Fair",
			pricing.ConditionForParts: "Fair",
		},
	},
	Craigslist: {
		titleMax:       70,
		descriptionMax: 8000,
		minPrice:       1,
		conditions: map[pricing.Condition]string{
			pricing.ConditionNew:      "new",
			pricing.ConditionLikeNew:  "like new",
			pricing.ConditionVeryGood: "excellent",
			pricing.ConditionGood:     "good",
			pricing.ConditionFair:     "fair",
			pricing.ConditionPoor:     "fair",
			pricing.ConditionForParts: "salvage",
		},
	},
}

// All returns the supported platforms in a stable order.
func All() []Platform {
	out := make([]Platform, 0, len(catalog))
	for p := range catalog {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func Parse(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	switch p {
	case "fb", "facebook_marketplace", "marketplace":
		p = Facebook
	}
	if _, ok := catalog[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, name)
	}
	return p, nil
}

// Listing is the platform-neutral listing an item resolves to.
type Listing struct {
	Title          string
	Description    string
	Brand          string
	Model          string
	Category       string
	Condition      string
	ConditionNotes string
	Price          float64
	Tags           []string
}

type Payload struct {
	Platform Platform          `json:"platform"`
	Fields   map[string]string `json:"fields"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Build maps l onto platform p's form fields. Problems that still allow a
// usable payload (truncation, a price raised to the platform minimum) are
// reported as warnings.
func Build(p Platform, l Listing) (Payload, error) {
	r, ok := catalog[p]
	if !ok {
		return Payload{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, p)
	}
	out := Payload{Platform: p, Fields: make(map[string]string)}
	warn := func(format string, args ...any) {
		out.Warnings = append(out.Warnings, fmt.Sprintf(format, args...))
	}

	title := strings.Join(strings.Fields(l.Title), " ")
	if title == "" {
		title = strings.TrimSpace(strings.Join([]string{l.Brand, l.Model}, " "))
	}
	if title == "" {
		return Payload{}, fmt.Errorf("%w: no title", ErrIncompleteListing)
	}
	if utf8.RuneCountInString(title) > r.titleMax {
		title = truncateWords(title, r.titleMax)
		warn("title shortened to %d characters", r.titleMax)
	}
	out.Fields["title"] = title

	desc := strings.TrimSpace(l.Description)
	if notes := strings.TrimSpace(l.ConditionNotes); notes != "" && !strings.Contains(desc, notes) {
		desc = strings.TrimSpace(desc + "\n\nCondition: " + notes)
	}
	if utf8.RuneCountInString(desc) > r.descriptionMax {
		desc = truncateWords(desc, r.descriptionMax-1) + "…"
		warn("description shortened to %d characters", r.descriptionMax)
	}
	out.Fields["description"] = desc

	switch {
	case l.Price <= 0:
		warn("no price set")
	case l.Price < r.minPrice:
		out.Fields["price"] = formatPrice(r.minPrice)
		warn("price raised to platform minimum %s", formatPrice(r.minPrice))
	default:
		out.Fields["price"] = formatPrice(l.Price)
	}

	if cond, err := pricing.ParseCondition(l.Condition); err == nil {
		out.Fields["condition"] = r.conditions[cond]
		if id, ok := r.conditionIDs[cond]; ok {
			out.Fields["condition_id"] = id
		}
		if cond == pricing.ConditionForParts && p == Facebook {
			warn("facebook has no parts condition; mention it in the description")
		}
	} else {
		warn("condition %q not recognised", l.Condition)
	}

	if l.Brand != "" {
		out.Fields["brand"] = l.Brand
	}
	if l.Category != "" {
		out.Fields["category"] = l.Category
	}
	if r.maxTags > 0 && len(l.Tags) > 0 {
		tags := l.Tags
		if len(tags) > r.maxTags {
			tags = tags[:r.maxTags]
		}
		out.Fields["tags"] = strings.Join(tags, ",")
	}
	return out, nil
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// truncateWords cuts s to at most max runes, backing up to the last space
// when one is close enough to keep most of the text.
func truncateWords(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := runes[:max]
	for i := len(cut) - 1; i > max/2; i-- {
		if cut[i] == ' ' {
			return strings.TrimRight(string(cut[:i]), " ,;-")
		}
	}
	return string(cut)
}
