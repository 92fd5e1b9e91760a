package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
	"github.com/powlax/gamification-engine/internal/infrastructure/persistence/memory"
	"github.com/powlax/gamification-engine/pkg/timeutil"
)

func TestStreakManager_FreezeResetAndGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.streaks

	u, err := m.UpdateUserStreak(ctx, "u", day0)
	require.NoError(t, err)
	assert.Equal(t, streak.TransitionStarted, u.Transition)
	assert.Equal(t, streak.MaxFreezes, u.State.FreezeCount)

	u, err = m.UpdateUserStreak(ctx, "u", day0.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, streak.TransitionContinued, u.Transition)
	assert.Equal(t, 2, u.State.CurrentStreak)

	u, err = m.UpdateUserStreak(ctx, "u", day0.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, streak.TransitionFrozen, u.Transition)
	assert.Equal(t, 2, u.State.CurrentStreak)
	assert.Equal(t, 1, u.State.FreezeCount)
	assert.Equal(t, 1, f.pub.count(shared.EventStreakFrozen))

	st, err := m.ResetStreak(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 0, st.CurrentStreak)
	assert.Equal(t, 2, st.LongestStreak)
	assert.Equal(t, 1, f.pub.count(shared.EventStreakBroken))

	st, err = m.GrantFreeze(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 2, st.FreezeCount)

	_, err = m.GrantFreeze(ctx, "u")
	assert.ErrorIs(t, err, shared.ErrNoFreezeAvailable)

	u, err = m.UpdateUserStreak(ctx, "u", day0.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, streak.TransitionStarted, u.Transition, "first activity after a reset")
	assert.Equal(t, 1, u.State.CurrentStreak)
}

func TestStreakManager_UsesConfiguredTimeZone(t *testing.T) {
	ny, err := timeutil.LoadLocation("America/New_York")
	require.NoError(t, err)

	m := NewStreakManager(memory.NewStore(), nil, StreakManagerConfig{
		Location: ny,
		Logger:   quietLogger(),
	})
	ctx := context.Background()

	// 22:00 on June 1 in New York.
	_, err = m.UpdateUserStreak(ctx, "u", time.Date(2024, 6, 2, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	u, err := m.UpdateUserStreak(ctx, "u", time.Date(2024, 6, 2, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, streak.TransitionContinued, u.Transition)
	assert.Equal(t, timeutil.Date(2024, time.June, 2), u.State.LastActivityDate)
}

func TestStreakManager_Validation(t *testing.T) {
	m := NewStreakManager(memory.NewStore(), nil, StreakManagerConfig{Logger: quietLogger()})

	_, err := m.UpdateUserStreak(context.Background(), "", day0)
	assert.True(t, shared.IsValidation(err))

	_, err = m.UpdateUserStreak(context.Background(), "u", time.Time{})
	assert.ErrorIs(t, err, shared.ErrInvalidActivity)
}

type contendedStreaks struct {
	*memory.Store
}

func (contendedStreaks) Save(context.Context, *streak.State) error {
	return shared.ErrStreakVersion
}

func TestStreakManager_ConflictExhaustion(t *testing.T) {
	m := NewStreakManager(contendedStreaks{memory.NewStore()}, nil, StreakManagerConfig{
		ConflictAttempts: 2,
		Logger:           quietLogger(),
	})

	_, err := m.UpdateUserStreak(context.Background(), "u", day0)
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))
	assert.True(t, shared.IsRetryable(err))
}

func TestStreakEvents(t *testing.T) {
	prev := &streak.State{UserID: "u", CurrentStreak: 6, LongestStreak: 6}
	next := &streak.State{UserID: "u", CurrentStreak: 7, LongestStreak: 7}

	events := StreakEvents(streak.Update{
		Previous:   prev,
		State:      next,
		Transition: streak.TransitionContinued,
		Milestone:  &streak.Milestone{Days: 7, BonusPoints: 100},
	})
	require.Len(t, events, 2)
	assert.Equal(t, shared.EventStreakUpdated, events[0].EventType())
	assert.Equal(t, shared.EventStreakMilestone, events[1].EventType())

	assert.Empty(t, StreakEvents(streak.Update{Previous: prev, State: prev, Transition: streak.TransitionSameDay}))
	assert.Empty(t, StreakEvents(streak.Update{Previous: prev, State: prev, Transition: streak.TransitionBackdated}))
}
