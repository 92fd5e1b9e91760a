// Package scoring turns a completed workout into category points.
// Everything here is pure: no I/O, no clocks, no shared state.
package scoring

import (
	"fmt"
)

// Category names one of the in-app currencies.
type Category string

const (
	LaxCredit      Category = "lax_credit"
	AttackTokens   Category = "attack_tokens"
	DefenseDollars Category = "defense_dollars"
	MidfieldMedals Category = "midfield_medals"
	ReboundRewards Category = "rebound_rewards"
	LaxIQPoints    Category = "lax_iq_points"
	FlexPoints     Category = "flex_points"
)

// AllCategories lists every currency in display order.
var AllCategories = []Category{
	LaxCredit,
	AttackTokens,
	DefenseDollars,
	MidfieldMedals,
	ReboundRewards,
	LaxIQPoints,
	FlexPoints,
}

// IsValid checks that c names a known currency.
func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the storage name of the currency.
func (c Category) String() string {
	return string(c)
}

// ParseCategory resolves a stored currency name.
func ParseCategory(name string) (Category, error) {
	c := Category(name)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown points category %q", name)
	}
	return c, nil
}

// CategoryPoints holds an amount for each currency. All fields are non-negative.
type CategoryPoints struct {
	LaxCredit      int64 `json:"lax_credit"`
	AttackTokens   int64 `json:"attack_tokens"`
	DefenseDollars int64 `json:"defense_dollars"`
	MidfieldMedals int64 `json:"midfield_medals"`
	ReboundRewards int64 `json:"rebound_rewards"`
	LaxIQPoints    int64 `json:"lax_iq_points"`
	FlexPoints     int64 `json:"flex_points"`
}

// Get returns the amount for one currency.
func (p CategoryPoints) Get(c Category) int64 {
	switch c {
	case LaxCredit:
		return p.LaxCredit
	case AttackTokens:
		return p.AttackTokens
	case DefenseDollars:
		return p.DefenseDollars
	case MidfieldMedals:
		return p.MidfieldMedals
	case ReboundRewards:
		return p.ReboundRewards
	case LaxIQPoints:
		return p.LaxIQPoints
	case FlexPoints:
		return p.FlexPoints
	default:
		return 0
	}
}

// field returns a pointer to the amount for one currency, or nil.
func (p *CategoryPoints) field(c Category) *int64 {
	switch c {
	case LaxCredit:
		return &p.LaxCredit
	case AttackTokens:
		return &p.AttackTokens
	case DefenseDollars:
		return &p.DefenseDollars
	case MidfieldMedals:
		return &p.MidfieldMedals
	case ReboundRewards:
		return &p.ReboundRewards
	case LaxIQPoints:
		return &p.LaxIQPoints
	case FlexPoints:
		return &p.FlexPoints
	default:
		return nil
	}
}

// AddTo adds amount to one currency. Unknown categories are ignored.
func (p *CategoryPoints) AddTo(c Category, amount int64) {
	if f := p.field(c); f != nil {
		*f += amount
	}
}

// Add returns the field-wise sum of p and other.
func (p CategoryPoints) Add(other CategoryPoints) CategoryPoints {
	out := p
	for _, c := range AllCategories {
		out.AddTo(c, other.Get(c))
	}
	return out
}

// Sum returns the total across all currencies.
func (p CategoryPoints) Sum() int64 {
	var total int64
	for _, c := range AllCategories {
		total += p.Get(c)
	}
	return total
}

// IsZero reports whether every currency is zero.
func (p CategoryPoints) IsZero() bool {
	return p == CategoryPoints{}
}

// Map returns the amounts keyed by storage name.
func (p CategoryPoints) Map() map[string]int64 {
	out := make(map[string]int64, len(AllCategories))
	for _, c := range AllCategories {
		out[string(c)] = p.Get(c)
	}
	return out
}

// Scale applies a multiplier to every currency, rounding each one on its own.
func (p CategoryPoints) Scale(f Factor) CategoryPoints {
	var out CategoryPoints
	for _, c := range AllCategories {
		out.AddTo(c, f.Apply(p.Get(c)))
	}
	return out
}
