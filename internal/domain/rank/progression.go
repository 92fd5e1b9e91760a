package rank

import (
	"context"
	"time"

	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// UserRank is the persisted per-user rank record.
type UserRank struct {
	UserID      shared.UserID `json:"user_id"`
	TotalPoints int64         `json:"total_points"`
	CurrentTier int           `json:"current_tier"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Version is the optimistic-lock counter. Zero means never stored.
	Version int64 `json:"version"`
}

// NewUserRank returns the record for a user never ranked before.
func NewUserRank(userID shared.UserID) *UserRank {
	return &UserRank{UserID: userID, CurrentTier: Unranked}
}

// UserRankInfo is the rank view returned to callers.
type UserRankInfo struct {
	UserID             shared.UserID `json:"user_id"`
	TotalPoints        int64         `json:"total_points"`
	CurrentTier        int           `json:"current_tier"`
	CurrentRank        *Definition   `json:"current_rank,omitempty"`
	NextRank           *Definition   `json:"next_rank"`
	PointsToNext       int64         `json:"points_to_next"`
	ProgressPercentage int           `json:"progress_percentage"`
	RankedUp           bool          `json:"ranked_up"`
}

// RankUpResult compares a stored tier with the tier for a new total.
type RankUpResult struct {
	RankedUp bool        `json:"ranked_up"`
	OldRank  *Definition `json:"old_rank,omitempty"`
	NewRank  *Definition `json:"new_rank,omitempty"`
}

// Advance applies a new cumulative total to a stored record.
//
// Totals only grow. A total below the stored one is rejected with
// shared.ErrPointsDecrease and the record is left as is. The tier is the
// larger of the stored tier and the ladder tier for total, so a ladder
// edit can never demote anyone either.
func Advance(l *Ladder, stored *UserRank, total int64, now time.Time) (*UserRank, error) {
	if total < 0 {
		return nil, shared.ErrNegativeTotal
	}
	if total < stored.TotalPoints {
		return nil, shared.ErrPointsDecrease
	}

	next := *stored
	next.TotalPoints = total
	if tier := l.TierFor(total); tier > next.CurrentTier {
		next.CurrentTier = tier
	}
	next.UpdatedAt = now
	return &next, nil
}

// BaselineTier is the tier a record stands at for rank-up comparisons. A
// user never ranked before stands at the tier their total already reaches,
// so landing on the entry tier is a placement, not a rank-up.
func BaselineTier(l *Ladder, stored *UserRank) int {
	if stored.CurrentTier == Unranked {
		return l.TierFor(stored.TotalPoints)
	}
	return stored.CurrentTier
}

// CheckRankUp reports whether total would raise the stored tier. It never
// reports a decrease.
func CheckRankUp(l *Ladder, stored *UserRank, total int64) RankUpResult {
	from := BaselineTier(l, stored)
	newTier := l.TierFor(total)
	if newTier <= from {
		return RankUpResult{}
	}
	res := RankUpResult{RankedUp: true}
	if old, ok := l.ByTier(from); ok {
		res.OldRank = &old
	}
	if nr, ok := l.ByTier(newTier); ok {
		res.NewRank = &nr
	}
	return res
}

// Info builds the caller view of a record.
func Info(l *Ladder, r *UserRank, rankedUp bool) *UserRankInfo {
	info := &UserRankInfo{
		UserID:             r.UserID,
		TotalPoints:        r.TotalPoints,
		CurrentTier:        r.CurrentTier,
		ProgressPercentage: l.Progress(r.CurrentTier, r.TotalPoints),
		RankedUp:           rankedUp,
	}
	if cur, ok := l.ByTier(r.CurrentTier); ok {
		info.CurrentRank = &cur
	}
	if next, ok := l.Next(r.CurrentTier); ok {
		info.NextRank = &next
		if gap := next.ThresholdPoints - r.TotalPoints; gap > 0 {
			info.PointsToNext = gap
		}
	}
	return info
}

// Repository persists rank records.
type Repository interface {
	// Get returns the stored record or an error matching shared.ErrNotFound.
	Get(ctx context.Context, userID shared.UserID) (*UserRank, error)

	// Save writes r if the stored version still equals r.Version (zero
	// inserts). On success r.Version is incremented. A stale version yields
	// shared.ErrRankVersion.
	Save(ctx context.Context, r *UserRank) error
}

// Catalog supplies the rank ladder.
type Catalog interface {
	RankDefinitions(ctx context.Context) ([]Definition, error)
}
