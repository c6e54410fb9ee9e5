package services

import (
	"regexp"
	"strings"

	"github.com/justsurfingit/resale-lister/internal/analysis"
)

const DefaultCategory = "general"

type categoryRule struct {
	category string
	brands   []string
	keywords []*regexp.Regexp
}

func rule(category string, brands []string, keywords ...string) categoryRule {
	r := categoryRule{category: category, brands: brands}
	for _, k := range keywords {
		r.keywords = append(r.keywords, regexp.MustCompile(`\b`+regexp.QuoteMeta(k)+`(?:s|es)?\b`))
	}
	return r
}

// MatcherService guesses an item category from its text when the model
// did not give one. The category picks the uplift table.
type MatcherService struct {
	rules []categoryRule
}

func NewMatcherService() *MatcherService {
	return &MatcherService{rules: []categoryRule{
		rule("sneakers", []string{"nike", "jordan", "adidas", "new balance", "asics", "yeezy"},
			"sneaker", "trainer", "air max", "dunk", "running shoe", "basketball shoe"),
		rule("trading_cards", []string{"pokemon", "topps", "panini", "upper deck", "wizards of the coast"},
			"trading card", "rookie card", "psa", "bgs", "holo", "booster", "mtg"),
		rule("watches", []string{"rolex", "omega", "seiko", "casio", "tudor", "tag heuer"},
			"watch", "chronograph", "wristwatch", "automatic movement"),
		rule("handbags", []string{"louis vuitton", "gucci", "chanel", "coach", "prada", "hermes"},
			"handbag", "purse", "tote", "crossbody", "clutch", "shoulder bag"),
		rule("electronics", []string{"apple", "sony", "samsung", "canon", "nikon", "nintendo", "bose"},
			"iphone", "laptop", "camera", "headphone", "console", "tablet", "speaker", "lens", "playstation", "xbox"),
		rule("vinyl", nil,
			"vinyl", "lp", "record", "45 rpm", "33 rpm", "pressing"),
		rule("toys", []string{"lego", "funko", "mattel", "hasbro", "hot wheels"},
			"action figure", "doll", "playset", "toy"),
	}}
}

// Categorize implements the reducer's fallback for records without a category.
func (s *MatcherService) Categorize(rec analysis.Record) string {
	return s.categorize(rec.Brand, rec.Title, rec.Model, rec.Description)
}

// CategorizeText scores free text only.
func (s *MatcherService) CategorizeText(texts ...string) string {
	return s.categorize("", texts...)
}

func (s *MatcherService) categorize(brand string, texts ...string) string {
	text := strings.ToLower(strings.Join(texts, " "))
	brand = strings.ToLower(strings.TrimSpace(brand))

	best, bestScore := DefaultCategory, 0
	for _, r := range s.rules {
		score := 0

		// RULE 1: the brand field names a brand strongly tied to the category.
		// RULE 2: the brand shows up in the text.
		for _, b := range r.brands {
			if brand != "" && brand == b {
				score += 3
			} else if strings.Contains(text, b) {
				score += 2
			}
		}
		// RULE 3: category keywords, one point each.
		for _, k := range r.keywords {
			if k.MatchString(text) {
				score++
			}
		}

		// Earlier rules win ties.
		if score > bestScore {
			best, bestScore = r.category, score
		}
	}
	return best
}
