// Package rank maps cumulative points to a named tier. A user's tier is
// sticky: once reached it is never taken away.
package rank

import (
	"fmt"

	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// Unranked is the tier of a user below the first threshold.
const Unranked = 0

// Definition is one rung of the ladder.
type Definition struct {
	Tier            int    `json:"tier"`
	ThresholdPoints int64  `json:"threshold_points"`
	Title           string `json:"title"`
}

// DefaultDefinitions is the standard ladder.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Tier: 1, ThresholdPoints: 0, Title: "Rookie"},
		{Tier: 2, ThresholdPoints: 100, Title: "Junior Varsity"},
		{Tier: 3, ThresholdPoints: 500, Title: "Varsity"},
		{Tier: 4, ThresholdPoints: 1000, Title: "All-Conference"},
		{Tier: 5, ThresholdPoints: 2500, Title: "All-State"},
		{Tier: 6, ThresholdPoints: 5000, Title: "All-American"},
		{Tier: 7, ThresholdPoints: 10000, Title: "Elite"},
		{Tier: 8, ThresholdPoints: 25000, Title: "Legend"},
		{Tier: 9, ThresholdPoints: 50000, Title: "Hall of Fame"},
		{Tier: 10, ThresholdPoints: 100000, Title: "GOAT"},
	}
}

// Ladder is a validated, ordered list of rank definitions.
type Ladder struct {
	defs []Definition
}

// NewLadder validates definitions: non-empty, tiers positive and increasing,
// thresholds non-negative and strictly increasing in the given order.
func NewLadder(defs []Definition) (*Ladder, error) {
	if len(defs) == 0 {
		return nil, shared.ErrEmptyLadder
	}
	for i, d := range defs {
		if d.Tier <= Unranked || d.ThresholdPoints < 0 {
			return nil, shared.WrapError("rank", "Validate", shared.ErrInvalidDefinition,
				fmt.Sprintf("rank %q has tier %d and threshold %d", d.Title, d.Tier, d.ThresholdPoints), shared.ErrLadderOrder)
		}
		if i > 0 && (d.ThresholdPoints <= defs[i-1].ThresholdPoints || d.Tier <= defs[i-1].Tier) {
			return nil, shared.WrapError("rank", "Validate", shared.ErrInvalidDefinition,
				fmt.Sprintf("rank %q does not follow %q", d.Title, defs[i-1].Title), shared.ErrLadderOrder)
		}
	}
	out := make([]Definition, len(defs))
	copy(out, defs)
	return &Ladder{defs: out}, nil
}

// MustLadder is NewLadder for static definitions.
func MustLadder(defs []Definition) *Ladder {
	l, err := NewLadder(defs)
	if err != nil {
		panic(err)
	}
	return l
}

// Definitions returns a copy of the rungs.
func (l *Ladder) Definitions() []Definition {
	out := make([]Definition, len(l.defs))
	copy(out, l.defs)
	return out
}

// TierFor returns the highest tier whose threshold is ≤ total.
func (l *Ladder) TierFor(total int64) int {
	tier := Unranked
	for _, d := range l.defs {
		if d.ThresholdPoints > total {
			break
		}
		tier = d.Tier
	}
	return tier
}

// ByTier returns the definition for a tier.
func (l *Ladder) ByTier(tier int) (Definition, bool) {
	for _, d := range l.defs {
		if d.Tier == tier {
			return d, true
		}
	}
	return Definition{}, false
}

// Next returns the rung after tier, or false at the top.
func (l *Ladder) Next(tier int) (Definition, bool) {
	for _, d := range l.defs {
		if d.Tier > tier {
			return d, true
		}
	}
	return Definition{}, false
}

// Progress computes clamp(100 × (total − cur) / (next − cur), 0, 100)
// for a user holding tier. At the top of the ladder it is 100.
func (l *Ladder) Progress(tier int, total int64) int {
	next, ok := l.Next(tier)
	if !ok {
		return 100
	}
	var floor int64
	if cur, ok := l.ByTier(tier); ok {
		floor = cur.ThresholdPoints
	}
	return shared.Percentage(total-floor, next.ThresholdPoints-floor)
}
