package badge

import (
	"time"

	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// UserBadge records how often a user earned a badge.
// EarnCount never exceeds the definition's MaximumEarnings.
type UserBadge struct {
	ID        string        `json:"id"`
	UserID    shared.UserID `json:"user_id"`
	BadgeKey  string        `json:"badge_key"`
	EarnCount int           `json:"earn_count"`
	EarnedAt  time.Time     `json:"earned_at"`
}

// Stats are the cumulative figures badges are measured against.
type Stats struct {
	Totals        scoring.CategoryPoints
	TotalWorkouts int
}

// Progress toward one earning of a badge.
type Progress struct {
	Current    int64 `json:"current"`
	Required   int64 `json:"required"`
	Percentage int   `json:"percentage"`
}

// Eligibility is the evaluation of one definition for one user.
type Eligibility struct {
	Definition     Definition `json:"definition"`
	RequirementMet bool       `json:"requirement_met"`
	Progress       Progress   `json:"progress"`
	EarnCount      int        `json:"earn_count"`

	// Target is how many earnings the user's progress justifies, capped at
	// MaximumEarnings. Awarding may raise EarnCount toward it one step at a time.
	Target int `json:"target"`
}

// CanAward reports whether another earning may be granted now.
func (e Eligibility) CanAward() bool {
	return e.EarnCount < e.Target
}

// Maxed reports whether the badge can never be earned again.
func (e Eligibility) Maxed() bool {
	return e.EarnCount >= e.Definition.MaximumEarnings
}

// Skipped is a definition left out of an evaluation.
type Skipped struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Report is the result of evaluating a whole catalog.
type Report struct {
	Badges  []Eligibility `json:"badges"`
	Skipped []Skipped     `json:"skipped,omitempty"`
}

// Eligible returns the evaluations whose requirement is met.
func (r *Report) Eligible() []Eligibility {
	out := make([]Eligibility, 0, len(r.Badges))
	for _, e := range r.Badges {
		if e.RequirementMet {
			out = append(out, e)
		}
	}
	return out
}

// Visible filters out hidden badges the user has not earned yet.
func (r *Report) Visible() []Eligibility {
	out := make([]Eligibility, 0, len(r.Badges))
	for _, e := range r.Badges {
		if e.Definition.IsHidden && e.EarnCount == 0 {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Evaluate checks every definition against the user's stats. Malformed and
// duplicate definitions are skipped and reported; they never stop the rest
// of the catalog from being evaluated. Hidden badges are evaluated like any
// other.
func Evaluate(defs []Definition, stats Stats, owned []UserBadge) *Report {
	counts := make(map[string]int, len(owned))
	for _, ub := range owned {
		counts[ub.BadgeKey] = ub.EarnCount
	}

	report := &Report{Badges: make([]Eligibility, 0, len(defs))}
	seen := make(map[string]struct{}, len(defs))

	for _, raw := range defs {
		def := raw.Normalized()
		if err := def.Validate(); err != nil {
			report.Skipped = append(report.Skipped, Skipped{Key: def.Key, Reason: err.Error()})
			continue
		}
		if _, dup := seen[def.Key]; dup {
			report.Skipped = append(report.Skipped, Skipped{Key: def.Key, Reason: "duplicate key"})
			continue
		}
		seen[def.Key] = struct{}{}

		report.Badges = append(report.Badges, evaluateOne(def, stats, counts[def.Key]))
	}
	return report
}

func evaluateOne(def Definition, stats Stats, earnCount int) Eligibility {
	var current int64
	if def.EarnedByType == EarnedByPoints {
		current = stats.Totals.Get(def.PointsCategory())
	} else {
		current = int64(stats.TotalWorkouts)
	}
	required := def.Requirement()

	target := int(current / required)
	if target > def.MaximumEarnings {
		target = def.MaximumEarnings
	}

	return Eligibility{
		Definition:     def,
		RequirementMet: current >= required,
		Progress: Progress{
			Current:    current,
			Required:   required,
			Percentage: shared.Percentage(current, required),
		},
		EarnCount: earnCount,
		Target:    target,
	}
}
