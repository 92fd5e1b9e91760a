package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlax/gamification-engine/internal/domain/shared"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNewLadder_Validation(t *testing.T) {
	_, err := NewLadder(nil)
	assert.ErrorIs(t, err, shared.ErrEmptyLadder)

	_, err = NewLadder([]Definition{
		{Tier: 1, ThresholdPoints: 0, Title: "A"},
		{Tier: 2, ThresholdPoints: 0, Title: "B"},
	})
	assert.ErrorIs(t, err, shared.ErrInvalidDefinition)

	_, err = NewLadder([]Definition{
		{Tier: 2, ThresholdPoints: 0, Title: "A"},
		{Tier: 1, ThresholdPoints: 10, Title: "B"},
	})
	assert.ErrorIs(t, err, shared.ErrLadderOrder)

	l, err := NewLadder(DefaultDefinitions())
	require.NoError(t, err)
	assert.Len(t, l.Definitions(), 10)
}

func TestLadder_TierFor(t *testing.T) {
	l := MustLadder(DefaultDefinitions())

	tests := map[int64]int{
		0:      1,
		99:     1,
		100:    2,
		499:    2,
		500:    3,
		2500:   5,
		99999:  9,
		100000: 10,
		5e6:    10,
	}
	for total, tier := range tests {
		assert.Equal(t, tier, l.TierFor(total), "total=%d", total)
	}

	offset := MustLadder([]Definition{{Tier: 1, ThresholdPoints: 50, Title: "Starter"}})
	assert.Equal(t, Unranked, offset.TierFor(10))
}

func TestLadder_Progress(t *testing.T) {
	l := MustLadder(DefaultDefinitions())

	assert.Equal(t, 50, l.Progress(2, 300), "(300-100)/(500-100)")
	assert.Equal(t, 0, l.Progress(3, 500))
	assert.Equal(t, 100, l.Progress(10, 250000), "top of the ladder")
	assert.Equal(t, 0, l.Progress(4, 900), "sticky tier above the points tier clamps to 0")
}

func TestAdvance_Monotonic(t *testing.T) {
	l := MustLadder(DefaultDefinitions())
	r := NewUserRank("u")

	var lastTier int
	for _, total := range []int64{0, 40, 120, 120, 480, 1200, 1200, 30000} {
		next, err := Advance(l, r, total, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, next.CurrentTier, lastTier)
		lastTier = next.CurrentTier
		r = next
	}
	assert.Equal(t, 8, r.CurrentTier)
}

func TestAdvance_RejectsDecrease(t *testing.T) {
	l := MustLadder(DefaultDefinitions())
	stored := &UserRank{UserID: "u", TotalPoints: 600, CurrentTier: 3}

	_, err := Advance(l, stored, 450, now)
	assert.ErrorIs(t, err, shared.ErrPointsDecrease)
	assert.Equal(t, 3, stored.CurrentTier)

	_, err = Advance(l, stored, -1, now)
	assert.ErrorIs(t, err, shared.ErrNegativeValue)
}

func TestAdvance_LadderEditNeverDemotes(t *testing.T) {
	stricter := MustLadder([]Definition{
		{Tier: 1, ThresholdPoints: 0, Title: "Rookie"},
		{Tier: 2, ThresholdPoints: 1000, Title: "Junior Varsity"},
		{Tier: 3, ThresholdPoints: 5000, Title: "Varsity"},
	})
	stored := &UserRank{UserID: "u", TotalPoints: 600, CurrentTier: 3}

	next, err := Advance(stricter, stored, 700, now)
	require.NoError(t, err)
	assert.Equal(t, 3, next.CurrentTier)
}

func TestCheckRankUp(t *testing.T) {
	l := MustLadder(DefaultDefinitions())
	stored := &UserRank{UserID: "u", TotalPoints: 90, CurrentTier: 1}

	res := CheckRankUp(l, stored, 120)
	assert.True(t, res.RankedUp)
	require.NotNil(t, res.OldRank)
	require.NotNil(t, res.NewRank)
	assert.Equal(t, "Rookie", res.OldRank.Title)
	assert.Equal(t, "Junior Varsity", res.NewRank.Title)

	assert.False(t, CheckRankUp(l, stored, 95).RankedUp)
	assert.False(t, CheckRankUp(l, &UserRank{CurrentTier: 5}, 10).RankedUp, "no decrease reported")
}

func TestInfo(t *testing.T) {
	l := MustLadder(DefaultDefinitions())

	info := Info(l, &UserRank{UserID: "u", TotalPoints: 750, CurrentTier: 3}, true)
	require.NotNil(t, info.CurrentRank)
	require.NotNil(t, info.NextRank)
	assert.Equal(t, "Varsity", info.CurrentRank.Title)
	assert.Equal(t, "All-Conference", info.NextRank.Title)
	assert.Equal(t, int64(250), info.PointsToNext)
	assert.Equal(t, 50, info.ProgressPercentage)
	assert.True(t, info.RankedUp)

	top := Info(l, &UserRank{UserID: "u", TotalPoints: 123456, CurrentTier: 10}, false)
	assert.Nil(t, top.NextRank)
	assert.Equal(t, 100, top.ProgressPercentage)
}

func TestCheckRankUp_FirstPlacement(t *testing.T) {
	l := MustLadder(DefaultDefinitions())
	fresh := NewUserRank("u")

	assert.False(t, CheckRankUp(l, fresh, 40).RankedUp, "entry tier is a placement")

	res := CheckRankUp(l, fresh, 150)
	assert.True(t, res.RankedUp)
	require.NotNil(t, res.OldRank)
	assert.Equal(t, 1, res.OldRank.Tier)
	assert.Equal(t, 2, res.NewRank.Tier)
}
