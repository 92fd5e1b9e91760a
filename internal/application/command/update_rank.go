package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/powlax/gamification-engine/internal/domain/rank"
	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANK PROGRESSION
// Maps cumulative points onto the rank ladder. Tiers only go up: a total
// lower than one already observed is ignored with a warning, and a ladder
// edit never demotes a stored tier.
// ══════════════════════════════════════════════════════════════════════════════

// RankProgressionConfig contains configuration for rank progression.
type RankProgressionConfig struct {
	ConflictAttempts int
	Metrics          Metrics
	Logger           *slog.Logger
	Clock            Clock
}

// RankProgression updates user ranks.
type RankProgression struct {
	catalog        rank.Catalog
	repo           rank.Repository
	eventPublisher shared.EventPublisher

	attempts int
	metrics  Metrics
	logger   *slog.Logger
	clock    Clock
}

// NewRankProgression creates a new RankProgression.
func NewRankProgression(
	catalog rank.Catalog,
	repo rank.Repository,
	eventPublisher shared.EventPublisher,
	config RankProgressionConfig,
) *RankProgression {
	if config.Metrics == nil {
		config.Metrics = NopMetrics{}
	}
	if config.Clock == nil {
		config.Clock = systemClock
	}

	return &RankProgression{
		catalog:        catalog,
		repo:           repo,
		eventPublisher: eventPublisher,
		attempts:       config.ConflictAttempts,
		metrics:        config.Metrics,
		logger:         loggerOrDefault(config.Logger, "rank_progression"),
		clock:          config.Clock,
	}
}

// Ladder loads and validates the current rank ladder.
func (p *RankProgression) Ladder(ctx context.Context) (*rank.Ladder, error) {
	defs, err := p.catalog.RankDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("rank: failed to load ladder: %w", err)
	}
	l, err := rank.NewLadder(defs)
	if err != nil {
		p.metrics.DefinitionSkipped("rank")
		return nil, err
	}
	return l, nil
}

func (p *RankProgression) load(ctx context.Context, userID shared.UserID) (*rank.UserRank, error) {
	r, err := p.repo.Get(ctx, userID)
	if err == nil {
		return r, nil
	}
	if shared.IsNotFound(err) {
		return rank.NewUserRank(userID), nil
	}
	return nil, fmt.Errorf("rank: failed to load rank: %w", err)
}

// GetRank returns the stored rank view without changing it.
func (p *RankProgression) GetRank(ctx context.Context, userID shared.UserID) (*rank.UserRankInfo, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	l, err := p.Ladder(ctx)
	if err != nil {
		return nil, err
	}
	r, err := p.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rank.Info(l, r, false), nil
}

// UpdateRank records totalPoints as the user's cumulative total and raises
// the tier if the ladder says so.
func (p *RankProgression) UpdateRank(ctx context.Context, userID shared.UserID, totalPoints int64) (*rank.UserRankInfo, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	if totalPoints < 0 {
		return nil, shared.ErrNegativeTotal
	}
	l, err := p.Ladder(ctx)
	if err != nil {
		return nil, err
	}

	var (
		before, after *rank.UserRank
		stale         bool
	)
	r := conflictRetrier(p.attempts, "rank.update", p.metrics, p.logger)
	err = r.Do(ctx, func(ctx context.Context) error {
		stale = false
		stored, err := p.load(ctx, userID)
		if err != nil {
			return err
		}
		next, err := rank.Advance(l, stored, totalPoints, p.clock())
		if err != nil {
			if !errors.Is(err, shared.ErrPointsDecrease) {
				return err
			}
			before, after, stale = stored, stored, true
			return nil
		}
		if stored.Version > 0 && next.TotalPoints == stored.TotalPoints && next.CurrentTier == stored.CurrentTier {
			before, after = stored, stored
			return nil
		}
		if err := p.repo.Save(ctx, next); err != nil {
			return err
		}
		before, after = stored, next
		return nil
	})
	if err != nil {
		return nil, asConflict("rank", "UpdateRank", err, p.metrics)
	}

	if stale {
		p.logger.Warn("ignoring lower total than already recorded",
			"user_id", userID,
			"recorded_total", before.TotalPoints,
			"received_total", totalPoints,
		)
		return rank.Info(l, after, false), nil
	}

	from := rank.BaselineTier(l, before)
	rankedUp := after.CurrentTier > from
	if rankedUp {
		p.announce(l, from, after)
	}
	return rank.Info(l, after, rankedUp), nil
}

// CheckForRankUp reports whether newTotal would raise the stored tier,
// without writing anything.
func (p *RankProgression) CheckForRankUp(ctx context.Context, userID shared.UserID, newTotal int64) (*rank.RankUpResult, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	l, err := p.Ladder(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := p.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := rank.CheckRankUp(l, stored, newTotal)
	return &res, nil
}

func (p *RankProgression) announce(l *rank.Ladder, fromTier int, after *rank.UserRank) {
	var oldTitle string
	if d, ok := l.ByTier(fromTier); ok {
		oldTitle = d.Title
	}
	var newTitle string
	if d, ok := l.ByTier(after.CurrentTier); ok {
		newTitle = d.Title
	}

	p.metrics.RankUp(after.CurrentTier)
	p.logger.Info("rank up",
		"user_id", after.UserID,
		"old_tier", fromTier,
		"new_tier", after.CurrentTier,
		"title", newTitle,
		"total_points", after.TotalPoints,
	)
	publishAll(p.eventPublisher, p.logger, shared.NewRankUpEvent(
		after.UserID.String(), fromTier, oldTitle, after.CurrentTier, newTitle, after.TotalPoints,
	))
}
