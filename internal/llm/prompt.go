package llm

import (
	"fmt"
	"strings"
)

const analysisPrompt = `
You are an expert resale appraiser. Your task is to identify the item shown in the photos and/or described below, judge its condition, and research what it sells for.

### INSTRUCTIONS:
1. **Identify** brand, model and the most specific product name you can. Read labels, tags and serial plates in the photos.
2. **Judge** condition from visible evidence only. Name every flaw you can see (scratches, scuffs, dents, cracks, stains, tears, missing parts) in condition_notes.
3. **Price** the item from recent sold listings, not asking prices. Give each reference tier you are confident about and use null for the rest.
4. **Flag** special=true only when there is concrete evidence of authenticity or rarity, and list that evidence as facets.
5. **Format** the output as valid JSON only. Do not wrap the output in markdown code blocks.

### OUTPUT SCHEMA:
{
    "title": "Marketplace title, brand + model + key attribute, at most 80 characters",
    "brand": "Brand or null",
    "model": "Model name/number or null",
    "category": "One of: sneakers, trading_cards, watches, handbags, electronics, vinyl, toys, general",
    "condition": "One of: New, Like New, Very Good, Good, Fair, Poor, For Parts",
    "condition_notes": "One or two sentences describing wear and every visible flaw",
    "description": "Buyer-facing listing description, 2-4 short paragraphs, no prices",
    "tags": ["search", "keywords"],
    "reference_prices": {"new": 0.0, "used_high": 0.0, "used_mid": 0.0, "used_low": 0.0, "parts": 0.0},
    "facets": [{"name": "original_packaging", "uplift": 0.05}],
    "special": false
}

### CONSTRAINT:
If a piece of information is missing, set the value to null. Do not hallucinate or guess prices for items you cannot identify.
%s
### SELLER INPUT:
%s
`

// BuildPrompt fills the analysis template. known summarises what earlier
// runs established so the model can confirm or correct it.
func BuildPrompt(req Request) string {
	var input strings.Builder
	if d := strings.TrimSpace(req.Description); d != "" {
		input.WriteString(d)
		input.WriteString("\n")
	}
	if n := strings.TrimSpace(req.Notes); n != "" {
		input.WriteString("Seller notes: ")
		input.WriteString(n)
		input.WriteString("\n")
	}
	if len(req.Photos) > 0 {
		fmt.Fprintf(&input, "%d photo(s) attached.\n", len(req.Photos))
	}
	if input.Len() == 0 {
		input.WriteString("(no text provided, rely on the photos)\n")
	}

	known := ""
	if k := strings.TrimSpace(req.Known); k != "" {
		known = "\n### ALREADY KNOWN (confirm or correct):\n" + k + "\n"
	}
	return fmt.Sprintf(analysisPrompt, known, input.String())
}
