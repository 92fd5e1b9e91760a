package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/powlax/gamification-engine/internal/domain/badge"
	"github.com/powlax/gamification-engine/internal/domain/ledger"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE ELIGIBILITY ENGINE
// Evaluates the badge catalog against a user's cumulative points and workout
// count and grants what they qualify for. Earn caps are enforced by the
// repository's conditional increment, so concurrent calls for the same user
// can never push earn_count past a badge's maximum.
// ══════════════════════════════════════════════════════════════════════════════

// BadgeEngineConfig contains configuration for the badge engine.
type BadgeEngineConfig struct {
	Metrics Metrics
	Logger  *slog.Logger
	Clock   Clock
}

// BadgeEngine checks and awards badges.
type BadgeEngine struct {
	catalog        badge.Catalog
	badgeRepo      badge.Repository
	ledgerRepo     ledger.Repository
	streakRepo     streak.Repository
	eventPublisher shared.EventPublisher

	metrics Metrics
	logger  *slog.Logger
	clock   Clock
}

// NewBadgeEngine creates a new BadgeEngine.
func NewBadgeEngine(
	catalog badge.Catalog,
	badgeRepo badge.Repository,
	ledgerRepo ledger.Repository,
	streakRepo streak.Repository,
	eventPublisher shared.EventPublisher,
	config BadgeEngineConfig,
) *BadgeEngine {
	if config.Metrics == nil {
		config.Metrics = NopMetrics{}
	}
	if config.Clock == nil {
		config.Clock = systemClock
	}

	return &BadgeEngine{
		catalog:        catalog,
		badgeRepo:      badgeRepo,
		ledgerRepo:     ledgerRepo,
		streakRepo:     streakRepo,
		eventPublisher: eventPublisher,
		metrics:        config.Metrics,
		logger:         loggerOrDefault(config.Logger, "badge_engine"),
		clock:          config.Clock,
	}
}

// Stats reads the figures badges are measured against.
func (e *BadgeEngine) Stats(ctx context.Context, userID shared.UserID) (badge.Stats, error) {
	totals, err := e.ledgerRepo.Totals(ctx, userID)
	if err != nil {
		return badge.Stats{}, fmt.Errorf("badge: failed to load totals: %w", err)
	}

	stats := badge.Stats{Totals: totals}
	st, err := e.streakRepo.Get(ctx, userID)
	switch {
	case err == nil:
		stats.TotalWorkouts = st.TotalWorkouts
	case shared.IsNotFound(err):
	default:
		return badge.Stats{}, fmt.Errorf("badge: failed to load workout count: %w", err)
	}
	return stats, nil
}

// CheckEligibility evaluates every badge for userID. Hidden badges are
// included; callers presenting the report should use Report.Visible.
func (e *BadgeEngine) CheckEligibility(ctx context.Context, userID shared.UserID) (*badge.Report, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	stats, err := e.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.evaluate(ctx, userID, stats)
}

// AwardEligibleBadges grants one earning of every badge the user qualifies
// for and returns the badges that changed.
func (e *BadgeEngine) AwardEligibleBadges(ctx context.Context, userID shared.UserID) ([]badge.UserBadge, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	stats, err := e.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.AwardForStats(ctx, userID, stats)
}

// AwardForStats is AwardEligibleBadges with stats the caller already holds.
func (e *BadgeEngine) AwardForStats(ctx context.Context, userID shared.UserID, stats badge.Stats) ([]badge.UserBadge, error) {
	report, err := e.evaluate(ctx, userID, stats)
	if err != nil {
		return nil, err
	}

	awarded := make([]badge.UserBadge, 0)
	for _, el := range report.Badges {
		if !el.CanAward() {
			continue
		}

		ub, ok, err := e.badgeRepo.Award(ctx, badge.AwardRequest{
			UserID:   userID,
			BadgeKey: el.Definition.Key,
			Limit:    el.Target,
			At:       e.clock(),
		})
		if err != nil {
			return awarded, fmt.Errorf("badge: failed to award %s: %w", el.Definition.Key, err)
		}
		if !ok {
			// Another writer reached the limit first.
			continue
		}

		awarded = append(awarded, *ub)
		e.metrics.BadgeAwarded(ub.BadgeKey)
		e.logger.Info("badge awarded",
			"user_id", userID,
			"badge_key", ub.BadgeKey,
			"earn_count", ub.EarnCount,
			"hidden", el.Definition.IsHidden,
		)
		publishAll(e.eventPublisher, e.logger, shared.NewBadgeAwardedEvent(
			userID.String(), ub.BadgeKey, el.Definition.Name, ub.EarnCount, el.Definition.IsHidden,
		))
	}
	return awarded, nil
}

func (e *BadgeEngine) evaluate(ctx context.Context, userID shared.UserID, stats badge.Stats) (*badge.Report, error) {
	defs, err := e.catalog.BadgeDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("badge: failed to load catalog: %w", err)
	}
	owned, err := e.badgeRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("badge: failed to load user badges: %w", err)
	}

	report := badge.Evaluate(defs, stats, owned)
	for _, s := range report.Skipped {
		e.metrics.DefinitionSkipped("badge")
		e.logger.Warn("skipping badge definition",
			"badge_key", s.Key,
			"reason", s.Reason,
		)
	}
	return report, nil
}
