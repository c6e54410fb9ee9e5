package dtos

import "github.com/justsurfingit/resale-lister/internal/pricing"

type ItemCreationRequest struct {
	Input string `json:"input" binding:"required,max=4000"`

	// Optional Fields
	Title    string `json:"title" binding:"max=200"`
	Category string `json:"category"`
}

// ItemUpdateRequest carries user edits; nil fields are left untouched.
type ItemUpdateRequest struct {
	Title          *string  `json:"title" binding:"omitempty,max=200"`
	Brand          *string  `json:"brand"`
	Model          *string  `json:"model"`
	Category       *string  `json:"category"`
	Condition      *string  `json:"condition"`
	ConditionNotes *string  `json:"condition_notes"`
	Description    *string  `json:"description"`
	Tags           []string `json:"tags"`
	ListPrice      *float64 `json:"list_price" binding:"omitempty,gte=0"`
}

// AnalyzeRequest is the JSON form of the analyze call. Multipart uploads use
// the same field names plus one or more "photos" parts.
type AnalyzeRequest struct {
	Description string `json:"description" form:"description" binding:"max=4000"`
	Notes       string `json:"notes" form:"notes" binding:"max=2000"`
}

type LadderRequest struct {
	Reference pricing.ReferencePrices `json:"reference_prices"`
	Condition string                  `json:"condition" binding:"required"`
	Category  string                  `json:"category"`
	Facets    []pricing.Facet         `json:"facets"`
	Special   bool                    `json:"special"`
}
