package models

import (
	"time"

	"github.com/justsurfingit/resale-lister/internal/pricing"
	"gorm.io/gorm"
)

const (
	StatusDraft     = "DRAFT"
	StatusAnalyzing = "ANALYZING"
	StatusAnalyzed  = "ANALYZED"
	StatusFailed    = "FAILED"
)

type Item struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// What the user typed when creating the draft
	Input  string `gorm:"type:text" json:"input"`
	Status string `gorm:"index;default:'DRAFT'" json:"status"`

	Title          string   `json:"title"`
	Brand          string   `json:"brand"`
	Model          string   `json:"model"`
	Category       string   `gorm:"index" json:"category"`
	Condition      string   `json:"condition"`
	ConditionNotes string   `gorm:"type:text" json:"condition_notes"`
	Description    string   `gorm:"type:text" json:"description"`
	Tags           []string `gorm:"serializer:json" json:"tags"`

	// Reference prices, one column per tier so they can be queried
	PriceNew      *float64 `json:"price_new"`
	PriceUsedHigh *float64 `json:"price_used_high"`
	PriceUsedMid  *float64 `json:"price_used_mid"`
	PriceUsedLow  *float64 `json:"price_used_low"`
	PriceParts    *float64 `json:"price_parts"`

	Facets         []pricing.Facet `gorm:"serializer:json" json:"facets"`
	Special        bool            `json:"special"`
	Uplift         float64         `json:"uplift"`
	SuggestedPrice *float64        `json:"suggested_price"`
	// ListPrice is what the seller chose; nil means use SuggestedPrice
	ListPrice *float64 `json:"list_price"`

	LastRunID string `json:"last_run_id"`
	LastError string `gorm:"type:text" json:"last_error,omitempty"`

	Events []ItemEvent `json:"events,omitempty"`
}

// ReferencePrices regroups the tier columns.
func (i *Item) ReferencePrices() pricing.ReferencePrices {
	return pricing.ReferencePrices{
		New:      i.PriceNew,
		UsedHigh: i.PriceUsedHigh,
		UsedMid:  i.PriceUsedMid,
		UsedLow:  i.PriceUsedLow,
		Parts:    i.PriceParts,
	}
}

func (i *Item) SetReferencePrices(r pricing.ReferencePrices) {
	i.PriceNew = r.New
	i.PriceUsedHigh = r.UsedHigh
	i.PriceUsedMid = r.UsedMid
	i.PriceUsedLow = r.UsedLow
	i.PriceParts = r.Parts
}

// EffectivePrice is the price a listing should be posted at.
func (i *Item) EffectivePrice() float64 {
	if i.ListPrice != nil {
		return *i.ListPrice
	}
	if i.SuggestedPrice != nil {
		return *i.SuggestedPrice
	}
	return 0
}

type ItemEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ItemID    uint      `gorm:"index" json:"item_id"`
	EventType string    `json:"event_type"`
	Details   string    `gorm:"type:text" json:"details"`
}

const (
	EventAnalysisStarted   = "ANALYSIS_STARTED"
	EventAnalysisCompleted = "ANALYSIS_COMPLETED"
	EventAnalysisFailed    = "ANALYSIS_FAILED"
	EventAnalysisStale     = "ANALYSIS_STALE"
	EventUserEdit          = "USER_EDIT"
)
