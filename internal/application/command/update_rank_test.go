package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlax/gamification-engine/internal/domain/rank"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/infrastructure/persistence/memory"
)

func TestRankProgression_UpdateRank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	info, err := f.ranks.UpdateRank(ctx, "u", 40)
	require.NoError(t, err)
	assert.Equal(t, 1, info.CurrentTier)
	assert.False(t, info.RankedUp)
	assert.Equal(t, int64(60), info.PointsToNext)

	info, err = f.ranks.UpdateRank(ctx, "u", 520)
	require.NoError(t, err)
	assert.Equal(t, 3, info.CurrentTier)
	assert.True(t, info.RankedUp)
	assert.Equal(t, "Varsity", info.CurrentRank.Title)
	assert.Equal(t, 1, f.pub.count(shared.EventRankUp))

	info, err = f.ranks.UpdateRank(ctx, "u", 520)
	require.NoError(t, err)
	assert.False(t, info.RankedUp, "same total twice")
}

func TestRankProgression_LowerTotalIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ranks.UpdateRank(ctx, "u", 600)
	require.NoError(t, err)

	info, err := f.ranks.UpdateRank(ctx, "u", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(600), info.TotalPoints)
	assert.Equal(t, 3, info.CurrentTier)
	assert.False(t, info.RankedUp)

	_, err = f.ranks.UpdateRank(ctx, "u", -5)
	assert.ErrorIs(t, err, shared.ErrNegativeTotal)
}

func TestRankProgression_CheckForRankUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ranks.UpdateRank(ctx, "u", 90)
	require.NoError(t, err)

	res, err := f.ranks.CheckForRankUp(ctx, "u", 150)
	require.NoError(t, err)
	assert.True(t, res.RankedUp)
	assert.Equal(t, "Junior Varsity", res.NewRank.Title)

	res, err = f.ranks.CheckForRankUp(ctx, "u", 95)
	require.NoError(t, err)
	assert.False(t, res.RankedUp)

	info, err := f.ranks.GetRank(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(90), info.TotalPoints, "check does not write")
}

func TestRankProgression_InvalidLadder(t *testing.T) {
	catalog := memory.NewCatalog(nil, []rank.Definition{
		{Tier: 1, ThresholdPoints: 100, Title: "A"},
		{Tier: 2, ThresholdPoints: 50, Title: "B"},
	})
	p := NewRankProgression(catalog, memory.NewStore().Ranks(), nil, RankProgressionConfig{Logger: quietLogger()})

	_, err := p.UpdateRank(context.Background(), "u", 10)
	assert.ErrorIs(t, err, shared.ErrInvalidDefinition)
}
