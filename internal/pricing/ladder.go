// Package pricing turns reference prices into a condition price ladder.
//
// All ladder arithmetic is done in integer cents once the raw tier prices are
// known, so the ordering and floor invariants hold exactly rather than within a
// float tolerance.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoReferencePrices = errors.New("no reference prices")
	ErrInvalidPrice      = errors.New("invalid reference price")
	ErrUnknownCondition  = errors.New("unknown condition")
)

// Tier is one of the five reference price points an analysis can return.
type Tier int

const (
	TierNew Tier = iota
	TierUsedHigh
	TierUsedMid
	TierUsedLow
	TierParts
)

// tierMultipliers estimate a missing tier as a fraction of the new price.
var tierMultipliers = [...]float64{
	TierNew:      1.00,
	TierUsedHigh: 0.80,
	TierUsedMid:  0.65,
	TierUsedLow:  0.50,
	TierParts:    0.25,
}

// PoorPartsRatio is the minimum ratio of the Poor price to the For Parts price.
const PoorPartsRatio = 1.2

type rung struct {
	tier   Tier
	factor float64
}

// rungs anchor each condition on a reference tier.
var rungs = [...]rung{
	ConditionNew:      {TierNew, 1},
	ConditionLikeNew:  {TierUsedHigh, 1},
	ConditionVeryGood: {TierUsedHigh, 0.90},
	ConditionGood:     {TierUsedMid, 1},
	ConditionFair:     {TierUsedLow, 1},
	ConditionPoor:     {TierUsedLow, 0.75},
	ConditionForParts: {TierParts, 1},
}

// ReferencePrices are the market comparables an analysis found. A nil or
// non-positive value means the tier is unknown.
type ReferencePrices struct {
	New      *float64 `json:"new,omitempty"`
	UsedHigh *float64 `json:"used_high,omitempty"`
	UsedMid  *float64 `json:"used_mid,omitempty"`
	UsedLow  *float64 `json:"used_low,omitempty"`
	Parts    *float64 `json:"parts,omitempty"`
}

func (r ReferencePrices) tier(t Tier) *float64 {
	switch t {
	case TierNew:
		return r.New
	case TierUsedHigh:
		return r.UsedHigh
	case TierUsedMid:
		return r.UsedMid
	case TierUsedLow:
		return r.UsedLow
	case TierParts:
		return r.Parts
	}
	return nil
}

func (r ReferencePrices) known(t Tier) (float64, bool) {
	p := r.tier(t)
	if p == nil || *p <= 0 {
		return 0, false
	}
	return *p, true
}

// Empty reports whether no tier carries a usable price.
func (r ReferencePrices) Empty() bool {
	for t := TierNew; t <= TierParts; t++ {
		if _, ok := r.known(t); ok {
			return false
		}
	}
	return true
}

// MaxReferencePrice bounds every tier so derived and uplifted rungs stay far
// inside int64 cents.
const MaxReferencePrice = 1e9

// Validate rejects negative, non-finite and out-of-range prices.
func (r ReferencePrices) Validate() error {
	for t := TierNew; t <= TierParts; t++ {
		p := r.tier(t)
		if p == nil {
			continue
		}
		if math.IsNaN(*p) || math.IsInf(*p, 0) || *p < 0 || *p > MaxReferencePrice {
			return fmt.Errorf("%w: tier %d = %v", ErrInvalidPrice, t, *p)
		}
	}
	return nil
}

// Merge overlays newer on r tier by tier; a tier newer does not know keeps r's value.
func (r ReferencePrices) Merge(newer ReferencePrices) ReferencePrices {
	pick := func(old, nu *float64) *float64 {
		if nu != nil && *nu > 0 {
			return nu
		}
		return old
	}
	return ReferencePrices{
		New:      pick(r.New, newer.New),
		UsedHigh: pick(r.UsedHigh, newer.UsedHigh),
		UsedMid:  pick(r.UsedMid, newer.UsedMid),
		UsedLow:  pick(r.UsedLow, newer.UsedLow),
		Parts:    pick(r.Parts, newer.Parts),
	}
}

// base is the implied new price used to fill in missing tiers.
func (r ReferencePrices) base() (float64, error) {
	if p, ok := r.known(TierNew); ok {
		return p, nil
	}
	for t := TierUsedHigh; t <= TierParts; t++ {
		if p, ok := r.known(t); ok {
			return p / tierMultipliers[t], nil
		}
	}
	return 0, ErrNoReferencePrices
}

// Rung is one step of a computed ladder.
type Rung struct {
	Condition Condition `json:"condition"`
	Price     float64   `json:"price"`
}

// Ladder is the suggested price for every condition.
type Ladder struct {
	Uplift float64 `json:"uplift"`
	Rungs  []Rung  `json:"rungs"`

	cents [ConditionForParts + 1]int64
}

// Price returns the ladder price for c in currency units.
func (l Ladder) Price(c Condition) float64 {
	return float64(l.Cents(c)) / 100
}

// Cents returns the ladder price for c in integer cents.
func (l Ladder) Cents(c Condition) int64 {
	if !c.Valid() {
		return 0
	}
	return l.cents[c]
}

// BuildLadder computes prices for every condition. uplift is clamped to
// [0, MaxUplift] and is never applied to For Parts.
func BuildLadder(ref ReferencePrices, uplift float64) (Ladder, error) {
	if err := ref.Validate(); err != nil {
		return Ladder{}, err
	}
	base, err := ref.base()
	if err != nil {
		return Ladder{}, err
	}
	uplift = clampUplift(uplift)

	var l Ladder
	l.Uplift = uplift
	for _, c := range Conditions() {
		rg := rungs[c]
		tierPrice, ok := ref.known(rg.tier)
		if !ok {
			tierPrice = base * tierMultipliers[rg.tier]
		}
		raw := tierPrice * rg.factor
		if c != ConditionForParts {
			raw *= 1 + uplift
		}
		l.cents[c] = int64(math.Round(raw * 100))
	}

	// Explicit tiers can arrive out of order; cap each rung at the one above it.
	for c := ConditionLikeNew; c <= ConditionForParts; c++ {
		if l.cents[c] > l.cents[c-1] {
			l.cents[c] = l.cents[c-1]
		}
	}

	// Poor >= 1.2 x Parts, i.e. parts <= poor * 5/6, floored to whole cents.
	maxParts := l.cents[ConditionPoor] * 5 / 6
	if l.cents[ConditionForParts] > maxParts {
		l.cents[ConditionForParts] = maxParts
	}

	l.Rungs = make([]Rung, 0, len(l.cents))
	for _, c := range Conditions() {
		l.Rungs = append(l.Rungs, Rung{Condition: c, Price: l.Price(c)})
	}
	return l, nil
}

// Input describes everything Suggest needs to price one item.
type Input struct {
	Reference ReferencePrices
	Condition Condition
	Category  string
	Facets    []Facet
	Special   bool
}

// Suggestion is the price for the item's own condition plus the full ladder.
type Suggestion struct {
	Condition Condition `json:"condition"`
	Price     float64   `json:"price"`
	Uplift    float64   `json:"uplift"`
	Ladder    Ladder    `json:"ladder"`
}

// Suggest prices an item. For Parts items always report a zero uplift.
func Suggest(in Input) (Suggestion, error) {
	if !in.Condition.Valid() {
		return Suggestion{}, fmt.Errorf("%w: %d", ErrUnknownCondition, int(in.Condition))
	}
	uplift := Uplift(in.Category, in.Facets, in.Special)
	ladder, err := BuildLadder(in.Reference, uplift)
	if err != nil {
		return Suggestion{}, err
	}
	if in.Condition == ConditionForParts {
		uplift = 0
	}
	return Suggestion{
		Condition: in.Condition,
		Price:     ladder.Price(in.Condition),
		Uplift:    uplift,
		Ladder:    ladder,
	}, nil
}

// Float is a convenience for building ReferencePrices literals.
func Float(v float64) *float64 { return &v }
