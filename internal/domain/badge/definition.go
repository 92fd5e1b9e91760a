// Package badge decides which achievements a user has earned and how many
// more times a repeatable badge may still be awarded.
package badge

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gosimple/slug"

	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// EarnedByType selects how a badge requirement is measured.
type EarnedByType string

const (
	EarnedByPoints    EarnedByType = "points"
	EarnedByMilestone EarnedByType = "milestone"
	EarnedByQuest     EarnedByType = "quest"
	EarnedByAction    EarnedByType = "action"
)

// DefaultWorkoutRequirement applies to workout-count badges that do not set one.
const DefaultWorkoutRequirement = 5

// Definition is one entry of the read-only badge catalog.
type Definition struct {
	Key                string       `json:"key"`
	Name               string       `json:"name"`
	Category           string       `json:"category"`
	EarnedByType       EarnedByType `json:"earned_by_type"`
	PointsTypeRequired string       `json:"points_type_required,omitempty"`
	PointsRequired     int64        `json:"points_required,omitempty"`
	MaximumEarnings    int          `json:"maximum_earnings"`
	IsHidden           bool         `json:"is_hidden"`
	WorkoutRequirement int          `json:"workout_requirement,omitempty"`
}

// NormalizeKey turns a catalog key or display name into a stable slug.
func NormalizeKey(key string) string {
	return slug.Make(strings.TrimSpace(key))
}

// Normalized returns a copy with the key slugged and defaults filled in.
func (d Definition) Normalized() Definition {
	d.Key = NormalizeKey(d.Key)
	d.PointsTypeRequired = strings.ToLower(strings.TrimSpace(d.PointsTypeRequired))
	d.EarnedByType = EarnedByType(strings.ToLower(strings.TrimSpace(string(d.EarnedByType))))
	if d.Name == "" {
		d.Name = d.Key
	}
	if d.WorkoutRequirement == 0 && d.countsWorkouts() {
		d.WorkoutRequirement = DefaultWorkoutRequirement
	}
	return d
}

func (d Definition) countsWorkouts() bool {
	switch d.EarnedByType {
	case EarnedByMilestone, EarnedByQuest, EarnedByAction:
		return true
	default:
		return false
	}
}

// PointsCategory returns the currency a points badge measures.
func (d Definition) PointsCategory() scoring.Category {
	return scoring.Category(d.PointsTypeRequired)
}

// Validate reports why a normalized definition cannot be evaluated.
func (d Definition) Validate() error {
	malformed := func(reason string) error {
		return shared.WrapError("badge", "Validate", shared.ErrInvalidDefinition,
			fmt.Sprintf("badge %q: %s", d.Key, reason), shared.ErrMalformedDefinition)
	}

	if d.Key == "" {
		return malformed("missing key")
	}
	if d.MaximumEarnings < 1 {
		return malformed("maximum_earnings must be at least 1")
	}

	switch {
	case d.EarnedByType == EarnedByPoints:
		if !d.PointsCategory().IsValid() {
			return malformed(fmt.Sprintf("unknown points_type_required %q", d.PointsTypeRequired))
		}
		if d.PointsRequired <= 0 {
			return malformed("points_required must be positive")
		}
	case d.countsWorkouts():
		if d.WorkoutRequirement <= 0 {
			return malformed("workout_requirement must be positive")
		}
	default:
		return malformed(fmt.Sprintf("unknown earned_by_type %q", d.EarnedByType))
	}
	return nil
}

// Requirement returns the threshold for one earning.
func (d Definition) Requirement() int64 {
	if d.EarnedByType == EarnedByPoints {
		return d.PointsRequired
	}
	return int64(d.WorkoutRequirement)
}

// DecodeCatalog reads a JSON array of definitions, as used for catalog seed
// files. Every entry is normalized and must validate; keys must be unique
// after normalization.
func DecodeCatalog(r io.Reader) ([]Definition, error) {
	var raw []Definition
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, shared.WrapError("badge", "DecodeCatalog", shared.ErrInvalidInput, "catalog is not a JSON array of badges", err)
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]Definition, 0, len(raw))
	for _, d := range raw {
		d = d.Normalized()
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[d.Key]; dup {
			return nil, shared.NewDomainError("badge", "DecodeCatalog", shared.ErrInvalidInput,
				fmt.Sprintf("badge %q appears twice", d.Key))
		}
		seen[d.Key] = struct{}{}
		out = append(out, d)
	}
	return out, nil
}
