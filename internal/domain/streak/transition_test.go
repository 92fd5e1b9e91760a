package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/pkg/timeutil"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return timeutil.AddDays(timeutil.Date(2024, 5, 1), n-1)
}

func TestApply_SequenceWithResetAndFreeze(t *testing.T) {
	p := DefaultPolicy()
	s := NewState("user-1", 0)

	for _, d := range []int{1, 2, 3} {
		s = p.Apply(s, day(d), now).State
	}
	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 3, s.LongestStreak)

	// three-day gap, nothing to spend
	u := p.Apply(s, day(7), now)
	assert.Equal(t, TransitionReset, u.Transition)
	assert.Equal(t, 3, u.MissedDays())
	s = u.State
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 3, s.LongestStreak)

	require.NoError(t, s.GrantFreeze(p.MaxFreezes, now))
	s = p.Apply(s, day(8), now).State
	require.Equal(t, 2, s.CurrentStreak)
	require.Equal(t, 1, s.FreezeCount)

	// two-day gap, one freeze available
	u = p.Apply(s, day(11), now)
	assert.Equal(t, TransitionFrozen, u.Transition)
	assert.Equal(t, 2, u.State.CurrentStreak, "streak preserved across the gap")
	assert.Equal(t, 0, u.State.FreezeCount, "exactly one freeze spent")
	assert.Equal(t, 1, u.State.FreezesUsed)
	require.NotNil(t, u.State.LastFreezeUsed)
	assert.Equal(t, day(11), *u.State.LastFreezeUsed)
	assert.Equal(t, 6, u.State.TotalWorkouts)
}

func TestApply_FirstActivity(t *testing.T) {
	u := DefaultPolicy().Apply(NewState("u", MaxFreezes), day(1), now)

	assert.Equal(t, TransitionStarted, u.Transition)
	assert.Equal(t, 1, u.State.CurrentStreak)
	assert.Equal(t, 1, u.State.LongestStreak)
	assert.Equal(t, 1, u.State.TotalWorkouts)
	assert.Equal(t, day(1), u.State.LastActivityDate)
	assert.Equal(t, 0, u.DaysSinceLast)
}

func TestApply_SameDayIsIdempotentForStreak(t *testing.T) {
	p := DefaultPolicy()
	s := p.Apply(NewState("u", MaxFreezes), day(1), now).State
	s = p.Apply(s, day(2), now).State

	u := p.Apply(s, day(2), now)

	assert.Equal(t, TransitionSameDay, u.Transition)
	assert.False(t, u.Changed())
	assert.Equal(t, 2, u.State.CurrentStreak)
	assert.Equal(t, 3, u.State.TotalWorkouts, "total workouts always counts")
	assert.Equal(t, MaxFreezes, u.State.FreezeCount)
}

func TestApply_BackdatedActivityDoesNotMoveStreak(t *testing.T) {
	p := DefaultPolicy()
	s := p.Apply(NewState("u", MaxFreezes), day(5), now).State

	u := p.Apply(s, day(2), now)

	assert.Equal(t, TransitionBackdated, u.Transition)
	assert.Equal(t, 1, u.State.CurrentStreak)
	assert.Equal(t, day(5), u.State.LastActivityDate)
	assert.Equal(t, 2, u.State.TotalWorkouts)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	p := DefaultPolicy()
	s := p.Apply(NewState("u", MaxFreezes), day(1), now).State
	before := *s

	p.Apply(s, day(5), now)

	assert.Equal(t, before, *s)
}

func TestApply_FreezeCooldown(t *testing.T) {
	p := DefaultPolicy()
	s := NewState("u", MaxFreezes)
	s = p.Apply(s, day(1), now).State
	s = p.Apply(s, day(2), now).State

	u := p.Apply(s, day(4), now)
	require.Equal(t, TransitionFrozen, u.Transition)
	s = u.State
	s = p.Apply(s, day(5), now).State
	assert.Equal(t, 3, s.CurrentStreak)

	// six days after the first freeze: cooldown still running
	u = p.Apply(s, day(10), now)
	assert.Equal(t, TransitionReset, u.Transition)
	assert.Equal(t, 1, u.State.FreezeCount, "no freeze spent on a reset")

	// seven days after the first freeze: allowed
	u = p.Apply(s, day(11), now)
	assert.Equal(t, TransitionFrozen, u.Transition)
	assert.Equal(t, 0, u.State.FreezeCount)
	assert.Equal(t, 3, u.State.CurrentStreak)
}

func TestApply_FreezesDisabled(t *testing.T) {
	p := DefaultPolicy()
	p.FreezesEnabled = false

	s := p.Apply(NewState("u", MaxFreezes), day(1), now).State
	u := p.Apply(s, day(3), now)

	assert.Equal(t, TransitionReset, u.Transition)
	assert.Equal(t, MaxFreezes, u.State.FreezeCount)
}

func TestApply_InvariantsHoldOverRandomWalk(t *testing.T) {
	p := DefaultPolicy()
	s := NewState("u", MaxFreezes)
	gaps := []int{0, 1, 1, 0, 3, 1, 1, 1, 5, 0, 2, 9, 1, 1, 1, 1, 1, 1, 1, 1, -2, 4, 1}

	d := 1
	for _, g := range gaps {
		d += g
		s = p.Apply(s, day(d), now).State
		require.NoError(t, s.Validate(p.MaxFreezes))
		assert.LessOrEqual(t, s.CurrentStreak, s.LongestStreak)
		assert.LessOrEqual(t, s.FreezeCount, MaxFreezes)
	}
	assert.Equal(t, len(gaps), s.TotalWorkouts)
}

func TestApply_MilestoneOnExactDay(t *testing.T) {
	p := DefaultPolicy()
	s := NewState("u", MaxFreezes)

	var milestones []int
	for d := 1; d <= 31; d++ {
		u := p.Apply(s, day(d), now)
		if u.Milestone != nil {
			milestones = append(milestones, u.Milestone.Days)
		}
		s = u.State
	}

	assert.Equal(t, []int{7, 30}, milestones)

	// same-day repeat on day 31 does not re-award
	u := p.Apply(s, day(31), now)
	assert.Nil(t, u.Milestone)
}

func TestTitle(t *testing.T) {
	tests := map[int]string{
		0:   "Ready to Begin",
		1:   "Getting Started",
		3:   "Building Momentum",
		7:   "Weekly Warrior",
		14:  "Two Week Warrior",
		29:  "Two Week Warrior",
		30:  "Monthly Master",
		100: "Century Club",
		400: "Century Club",
	}
	for days, want := range tests {
		assert.Equal(t, want, Title(days), "days=%d", days)
	}
}

func TestNextMilestone(t *testing.T) {
	p := NextMilestone(10)
	require.NotNil(t, p)
	assert.Equal(t, 14, p.Next)
	assert.Equal(t, 4, p.Remaining)
	assert.Equal(t, 42, p.Percentage)

	assert.Nil(t, NextMilestone(100))
}

func TestFreezeStatus(t *testing.T) {
	p := DefaultPolicy()
	used := day(1)
	s := &State{UserID: "u", FreezeCount: 1, LastFreezeUsed: &used, FreezesUsed: 1}

	status := p.FreezeStatus(s, day(4))
	assert.False(t, status.CanUseNow)
	assert.Equal(t, 4, status.DaysUntilNext)

	status = p.FreezeStatus(s, day(8))
	assert.True(t, status.CanUseNow)
	assert.Equal(t, 0, status.DaysUntilNext)
}

func TestState_ResetAndGrant(t *testing.T) {
	s := &State{UserID: "u", CurrentStreak: 5, LongestStreak: 9, LastActivityDate: day(3), FreezeCount: MaxFreezes}

	s.Reset(now)
	assert.Equal(t, 0, s.CurrentStreak)
	assert.Equal(t, 9, s.LongestStreak)
	assert.Equal(t, day(3), s.LastActivityDate)
	assert.False(t, s.FirstActivityOn(day(3)))

	err := s.GrantFreeze(MaxFreezes, now)
	assert.ErrorIs(t, err, shared.ErrLimitReached)
}

func TestState_Validate(t *testing.T) {
	assert.NoError(t, (&State{UserID: "u", CurrentStreak: 1, LongestStreak: 2}).Validate(MaxFreezes))
	assert.Error(t, (&State{UserID: "u", CurrentStreak: 3, LongestStreak: 2}).Validate(MaxFreezes))
	assert.Error(t, (&State{UserID: "u", FreezeCount: 3}).Validate(MaxFreezes))
	assert.Error(t, (&State{}).Validate(MaxFreezes))
}

func TestState_FirstActivityOn(t *testing.T) {
	s := NewState("u", MaxFreezes)
	assert.True(t, s.FirstActivityOn(timeutil.Date(2024, time.June, 1)))

	s.LastActivityDate = timeutil.Date(2024, time.June, 1)
	assert.False(t, s.FirstActivityOn(timeutil.Date(2024, time.June, 1)))
	assert.False(t, s.FirstActivityOn(timeutil.Date(2024, time.May, 30)), "backdated")
	assert.True(t, s.FirstActivityOn(timeutil.Date(2024, time.June, 2)))
}

func TestApply_AfterReset(t *testing.T) {
	p := DefaultPolicy()
	s := &State{UserID: "u", CurrentStreak: 5, LongestStreak: 5, LastActivityDate: day(3), FreezeCount: MaxFreezes}
	s.Reset(now)

	u := p.Apply(s, day(3), now)
	assert.Equal(t, TransitionStarted, u.Transition)
	assert.Equal(t, 1, u.State.CurrentStreak)
	assert.Equal(t, day(3), u.State.LastActivityDate)
	assert.False(t, u.State.FirstActivityOn(day(3)))

	u = p.Apply(u.State, day(3), now)
	assert.Equal(t, TransitionSameDay, u.Transition)
	assert.Equal(t, 1, u.State.CurrentStreak)

	s.Reset(now)
	u = p.Apply(s, day(9), now)
	assert.Equal(t, TransitionStarted, u.Transition)
	assert.Equal(t, 1, u.State.CurrentStreak)
	assert.Equal(t, MaxFreezes, u.State.FreezeCount, "a reset streak does not spend freezes")
	assert.Equal(t, day(9), u.State.LastActivityDate)

	u = p.Apply(s, day(1), now)
	assert.Equal(t, day(3), u.State.LastActivityDate)
}
