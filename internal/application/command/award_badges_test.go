package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlax/gamification-engine/internal/domain/badge"
	"github.com/powlax/gamification-engine/internal/domain/ledger"
	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
)

func seedStats(t *testing.T, f *fixture, userID shared.UserID, attack int64, workouts int) {
	t.Helper()
	st := streak.NewState(userID, streak.MaxFreezes)
	st.TotalWorkouts = workouts
	_, err := f.store.CommitWorkout(context.Background(), ledger.WorkoutCommit{
		Streak: st,
		Entries: []ledger.Entry{
			ledger.NewEntry(userID, "seed", ledger.SourceWorkout, scoring.CategoryPoints{AttackTokens: attack}, day0),
		},
	})
	require.NoError(t, err)
}

func TestBadgeEngine_CheckEligibility(t *testing.T) {
	f := newFixture(t)
	seedStats(t, f, "u", 12, 1)

	report, err := f.badges.CheckEligibility(context.Background(), "u")
	require.NoError(t, err)

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "broken", report.Skipped[0].Key)

	byKey := map[string]badge.Eligibility{}
	for _, e := range report.Badges {
		byKey[e.Definition.Key] = e
	}
	assert.True(t, byKey["first-workout"].RequirementMet)
	assert.Equal(t, 2, byKey["attack-apprentice"].Target)
	assert.False(t, byKey["secret-grinder"].RequirementMet)
	assert.Equal(t, 50, byKey["secret-grinder"].Progress.Percentage)

	for _, e := range report.Visible() {
		assert.NotEqual(t, "secret-grinder", e.Definition.Key)
	}
}

func TestBadgeEngine_AwardEligibleBadges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedStats(t, f, "u", 12, 2)

	awarded, err := f.badges.AwardEligibleBadges(ctx, "u")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"first-workout", "attack-apprentice", "secret-grinder"}, badgeKeys(awarded))

	// attack-apprentice target is 2; one more step.
	awarded, err = f.badges.AwardEligibleBadges(ctx, "u")
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	assert.Equal(t, "attack-apprentice", awarded[0].BadgeKey)
	assert.Equal(t, 2, awarded[0].EarnCount)

	awarded, err = f.badges.AwardEligibleBadges(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, awarded)

	assert.Equal(t, 4, f.pub.count(shared.EventBadgeAwarded))
}

func TestBadgeEngine_UnknownUserHasNoProgress(t *testing.T) {
	f := newFixture(t)

	awarded, err := f.badges.AwardEligibleBadges(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, awarded)

	_, err = f.badges.CheckEligibility(context.Background(), "")
	assert.True(t, shared.IsValidation(err))
}
