package streak

import (
	"time"

	"github.com/powlax/gamification-engine/pkg/timeutil"
)

// Milestone is a streak length that pays a one-off lax_credit bonus.
type Milestone struct {
	Days        int   `json:"days"`
	BonusPoints int64 `json:"bonus_points"`
}

// BonusMilestones pay out when the streak reaches them exactly.
var BonusMilestones = []Milestone{
	{Days: 7, BonusPoints: 100},
	{Days: 30, BonusPoints: 500},
	{Days: 100, BonusPoints: 2000},
}

// ProgressMilestones are the targets shown in the streak widget.
var ProgressMilestones = []int{7, 14, 30, 100}

func milestoneAt(days int) *Milestone {
	for _, m := range BonusMilestones {
		if m.Days == days {
			found := m
			return &found
		}
	}
	return nil
}

var titles = []struct {
	minDays int
	title   string
}{
	{100, "Century Club"},
	{30, "Monthly Master"},
	{14, "Two Week Warrior"},
	{7, "Weekly Warrior"},
	{3, "Building Momentum"},
	{1, "Getting Started"},
}

// Title returns the display title for a streak length.
func Title(days int) string {
	for _, t := range titles {
		if days >= t.minDays {
			return t.title
		}
	}
	return "Ready to Begin"
}

// MilestoneProgress describes the way to the next display milestone.
type MilestoneProgress struct {
	Next       int `json:"next"`
	Remaining  int `json:"remaining"`
	Percentage int `json:"percentage"`
}

// NextMilestone returns progress toward the next display milestone, or nil
// when every milestone has been passed.
func NextMilestone(days int) *MilestoneProgress {
	prev := 0
	for _, m := range ProgressMilestones {
		if days < m {
			span := m - prev
			return &MilestoneProgress{
				Next:       m,
				Remaining:  m - days,
				Percentage: (days - prev) * 100 / span,
			}
		}
		prev = m
	}
	return nil
}

// FreezeStatus summarizes the freeze allowance for display.
type FreezeStatus struct {
	Available        int        `json:"available"`
	CanUseNow        bool       `json:"can_use_now"`
	DaysUntilNext    int        `json:"days_until_next"`
	LastUsed         *time.Time `json:"last_used,omitempty"`
	TotalFreezesUsed int        `json:"total_freezes_used"`
}

// FreezeStatus reports whether a freeze could bridge a gap today.
func (p Policy) FreezeStatus(s *State, today time.Time) FreezeStatus {
	status := FreezeStatus{
		Available:        s.FreezeCount,
		CanUseNow:        p.CanUseFreeze(s, today),
		LastUsed:         s.LastFreezeUsed,
		TotalFreezesUsed: s.FreezesUsed,
	}
	if s.LastFreezeUsed != nil && s.FreezeCount > 0 {
		wait := p.FreezeCooldownDays - timeutil.DaysBetween(*s.LastFreezeUsed, today)
		if wait > 0 {
			status.DaysUntilNext = wait
		}
	}
	return status
}
