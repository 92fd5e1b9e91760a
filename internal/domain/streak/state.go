// Package streak models a user's daily training streak: the counters,
// the freeze allowance, and the pure transition applied on each activity.
package streak

import (
	"time"

	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/pkg/timeutil"
)

// Allowance defaults.
const (
	// MaxFreezes is the most freezes a user can hold.
	MaxFreezes = 2

	// FreezeCooldownDays is the minimum gap between two freeze uses.
	FreezeCooldownDays = 7
)

// State is the persisted per-user streak record. One row per user; it is
// mutated on every completion and never deleted.
type State struct {
	UserID           shared.UserID `json:"user_id"`
	CurrentStreak    int           `json:"current_streak"`
	LongestStreak    int           `json:"longest_streak"`
	LastActivityDate time.Time     `json:"last_activity_date"`
	FreezeCount      int           `json:"freeze_count"`
	LastFreezeUsed   *time.Time    `json:"last_freeze_used,omitempty"`
	FreezesUsed      int           `json:"freezes_used"`
	TotalWorkouts    int           `json:"total_workouts"`
	UpdatedAt        time.Time     `json:"updated_at"`

	// Version is the optimistic-lock counter. Zero means never stored.
	Version int64 `json:"version"`
}

// NewState returns the initial record for a user with no activity.
func NewState(userID shared.UserID, freezes int) *State {
	return &State{
		UserID:      userID,
		FreezeCount: freezes,
	}
}

// HasActivity reports whether the user has ever trained.
func (s *State) HasActivity() bool {
	return !s.LastActivityDate.IsZero()
}

// FirstActivityOn reports whether an activity on date would be the user's
// first that calendar day. Backdated activity never is.
func (s *State) FirstActivityOn(date time.Time) bool {
	return !s.HasActivity() || timeutil.DaysBetween(s.LastActivityDate, date) > 0
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	if s.LastFreezeUsed != nil {
		t := *s.LastFreezeUsed
		c.LastFreezeUsed = &t
	}
	return &c
}

// Validate checks the record invariants.
func (s *State) Validate(maxFreezes int) error {
	if !s.UserID.IsValid() {
		return shared.ErrEmptyUserID
	}
	if s.CurrentStreak < 0 || s.LongestStreak < 0 || s.TotalWorkouts < 0 {
		return shared.NewDomainError("streak", "Validate", shared.ErrNegativeValue, "streak counters cannot be negative")
	}
	if s.CurrentStreak > s.LongestStreak {
		return shared.NewDomainError("streak", "Validate", shared.ErrInvalidState, "current streak exceeds longest streak")
	}
	if s.FreezeCount < 0 || s.FreezeCount > maxFreezes {
		return shared.NewDomainError("streak", "Validate", shared.ErrValueOutOfRange, "freeze count out of range")
	}
	return nil
}

// Reset clears the active streak. Longest streak, freezes, workout totals
// and the last activity date are kept; the next activity starts a new
// streak at 1 but is not a first-of-day if the user already trained that day.
func (s *State) Reset(now time.Time) {
	s.CurrentStreak = 0
	s.UpdatedAt = now
}

// GrantFreeze restores one freeze, up to the allowance.
func (s *State) GrantFreeze(maxFreezes int, now time.Time) error {
	if s.FreezeCount >= maxFreezes {
		return shared.ErrNoFreezeAvailable
	}
	s.FreezeCount++
	s.UpdatedAt = now
	return nil
}
