package streak

import (
	"time"

	"github.com/powlax/gamification-engine/pkg/timeutil"
)

// Transition names what an activity did to the streak.
type Transition string

const (
	TransitionStarted   Transition = "started"   // first activity ever, or after a manual reset
	TransitionSameDay   Transition = "same_day"  // repeat activity on the same date
	TransitionBackdated Transition = "backdated" // activity dated before the last one
	TransitionContinued Transition = "continued" // next calendar day
	TransitionFrozen    Transition = "frozen"    // gap bridged by a freeze
	TransitionReset     Transition = "reset"     // gap with no usable freeze
)

// Policy holds the tunable freeze rules.
type Policy struct {
	MaxFreezes         int
	FreezeCooldownDays int
	FreezesEnabled     bool
}

// DefaultPolicy returns the standard allowance: two freezes, a week apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxFreezes:         MaxFreezes,
		FreezeCooldownDays: FreezeCooldownDays,
		FreezesEnabled:     true,
	}
}

// Update is the outcome of applying one activity.
type Update struct {
	Previous   *State
	State      *State
	Transition Transition
	// DaysSinceLast is the calendar-day gap; zero for a first activity.
	DaysSinceLast int
	// Milestone is set when the streak landed exactly on a milestone.
	Milestone *Milestone
}

// MissedDays returns the number of skipped days bridged or lost.
func (u Update) MissedDays() int {
	if u.DaysSinceLast <= 1 {
		return 0
	}
	return u.DaysSinceLast - 1
}

// Changed reports whether the streak counter moved.
func (u Update) Changed() bool {
	return u.State.CurrentStreak != u.Previous.CurrentStreak
}

// CanUseFreeze reports whether a freeze may be spent on activityDate.
func (p Policy) CanUseFreeze(s *State, activityDate time.Time) bool {
	if !p.FreezesEnabled || s.FreezeCount <= 0 {
		return false
	}
	if s.LastFreezeUsed == nil {
		return true
	}
	return timeutil.DaysBetween(*s.LastFreezeUsed, activityDate) >= p.FreezeCooldownDays
}

// Apply computes the next state for an activity on activityDate, a calendar
// date as produced by timeutil.CalendarDate. The input state is not modified.
//
// A gap never heals silently: it is either bridged by a recorded freeze
// (FreezeCount down, LastFreezeUsed set, FreezesUsed up) or the streak
// resets to 1.
func (p Policy) Apply(current *State, activityDate time.Time, now time.Time) Update {
	next := current.Clone()
	next.TotalWorkouts++
	next.UpdatedAt = now

	u := Update{Previous: current, State: next}

	if !current.HasActivity() {
		next.CurrentStreak = 1
		next.LastActivityDate = activityDate
		u.Transition = TransitionStarted
		raiseLongest(next)
		return u
	}

	days := timeutil.DaysBetween(current.LastActivityDate, activityDate)
	u.DaysSinceLast = days

	if current.CurrentStreak == 0 {
		// Manually reset: restart without spending a freeze. The last
		// activity date only moves forward.
		next.CurrentStreak = 1
		if days > 0 {
			next.LastActivityDate = activityDate
		}
		u.Transition = TransitionStarted
		raiseLongest(next)
		return u
	}

	switch {
	case days < 0:
		u.Transition = TransitionBackdated
	case days == 0:
		u.Transition = TransitionSameDay
	case days == 1:
		next.CurrentStreak++
		next.LastActivityDate = activityDate
		u.Transition = TransitionContinued
		u.Milestone = milestoneAt(next.CurrentStreak)
	case p.CanUseFreeze(current, activityDate):
		used := activityDate
		next.FreezeCount--
		next.FreezesUsed++
		next.LastFreezeUsed = &used
		next.LastActivityDate = activityDate
		u.Transition = TransitionFrozen
	default:
		next.CurrentStreak = 1
		next.LastActivityDate = activityDate
		u.Transition = TransitionReset
	}

	raiseLongest(next)
	return u
}

func raiseLongest(s *State) {
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
}
