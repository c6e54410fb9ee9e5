package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUplift(t *testing.T) {
	tests := []struct {
		name     string
		category string
		facets   []Facet
		special  bool
		want     float64
	}{
		{"not special", "sneakers", []Facet{{Name: "deadstock"}}, false, 0},
		{"no facets", "sneakers", nil, true, 0},
		{"category table", "sneakers", []Facet{{Name: "deadstock"}}, true, 0.10},
		{"falls back to general", "sneakers", []Facet{{Name: "receipt"}}, true, 0.03},
		{"unknown category uses general", "furniture", []Facet{{Name: "signed"}}, true, 0.10},
		{"duplicates count once", "watches", []Facet{{Name: "box_and_papers"}, {Name: "Box Papers"}}, true, 0.12},
		{"capped", "trading_cards", []Facet{{Name: "graded"}, {Name: "first edition"}}, true, 0.20},
		{"unknown facet uses own uplift", "toys", []Facet{{Name: "prototype", Uplift: 0.07}}, true, 0.07},
		{"unknown facet own uplift clamped", "toys", []Facet{{Name: "prototype", Uplift: 3}}, true, 0.20},
		{"negative ignored", "toys", []Facet{{Name: "prototype", Uplift: -1}}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Uplift(tt.category, tt.facets, tt.special), 1e-9)
		})
	}
}

func TestNormalizeFacet(t *testing.T) {
	assert.Equal(t, "original_packaging", NormalizeFacet("Original Box"))
	assert.Equal(t, "authenticity_verified", NormalizeFacet("verified"))
	assert.Equal(t, "first_edition", NormalizeFacet("first-edition"))
}

func TestParseCondition(t *testing.T) {
	tests := map[string]Condition{
		"New":                      ConditionNew,
		"like-new":                 ConditionLikeNew,
		"VERY_GOOD":                ConditionVeryGood,
		"  good ":                  ConditionGood,
		"fair":                     ConditionFair,
		"Poor":                     ConditionPoor,
		"for parts or not working": ConditionForParts,
		"NWT":                      ConditionNew,
	}
	for in, want := range tests {
		got, err := ParseCondition(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCondition("slightly haunted")
	assert.ErrorIs(t, err, ErrUnknownCondition)
}

func TestConditionText(t *testing.T) {
	b, err := ConditionVeryGood.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "Very Good", string(b))

	var c Condition
	assert.NoError(t, c.UnmarshalText([]byte("for parts")))
	assert.Equal(t, ConditionForParts, c)
}
