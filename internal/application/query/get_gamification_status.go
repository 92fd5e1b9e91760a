// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/powlax/gamification-engine/internal/domain/badge"
	"github.com/powlax/gamification-engine/internal/domain/ledger"
	"github.com/powlax/gamification-engine/internal/domain/rank"
	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
	"github.com/powlax/gamification-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GAMIFICATION STATUS QUERY
// Everything the dashboard shows for one user: streak and freezes, points per
// currency, rank with progress, and badge progress. Read-only.
// ══════════════════════════════════════════════════════════════════════════════

// GetGamificationStatusQuery identifies the user.
type GetGamificationStatusQuery struct {
	UserID string

	// IncludeHidden also lists hidden badges the user has not earned.
	IncludeHidden bool
}

// Validate validates the query.
func (q GetGamificationStatusQuery) Validate() error {
	if q.UserID == "" {
		return shared.ErrEmptyUserID
	}
	return nil
}

// StreakDTO is the streak widget.
type StreakDTO struct {
	Current          int                       `json:"current"`
	Longest          int                       `json:"longest"`
	Title            string                    `json:"title"`
	LastActivityDate string                    `json:"last_activity_date,omitempty"`
	TotalWorkouts    int                       `json:"total_workouts"`
	ActiveToday      bool                      `json:"active_today"`
	AtRisk           bool                      `json:"at_risk"`
	NextMilestone    *streak.MilestoneProgress `json:"next_milestone,omitempty"`
	Freezes          streak.FreezeStatus       `json:"freezes"`
}

// BadgeDTO is one badge with the user's progress toward it.
type BadgeDTO struct {
	Key             string         `json:"key"`
	Name            string         `json:"name"`
	Category        string         `json:"category"`
	Hidden          bool           `json:"hidden"`
	EarnCount       int            `json:"earn_count"`
	MaximumEarnings int            `json:"maximum_earnings"`
	Progress        badge.Progress `json:"progress"`
}

// GamificationStatusDTO is the query result.
type GamificationStatusDTO struct {
	UserID      string                 `json:"user_id"`
	Streak      StreakDTO              `json:"streak"`
	Points      scoring.CategoryPoints `json:"points"`
	TotalPoints int64                  `json:"total_points"`
	Rank        *rank.UserRankInfo     `json:"rank"`
	Badges      []BadgeDTO             `json:"badges"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// GamificationStatusConfig contains configuration for the handler.
type GamificationStatusConfig struct {
	Policy   streak.Policy
	Location *time.Location
	Clock    func() time.Time
}

// GetGamificationStatusHandler handles GetGamificationStatusQuery.
type GetGamificationStatusHandler struct {
	streakRepo   streak.Repository
	ledgerRepo   ledger.Repository
	badgeRepo    badge.Repository
	badgeCatalog badge.Catalog
	rankRepo     rank.Repository
	rankCatalog  rank.Catalog

	policy   streak.Policy
	location *time.Location
	clock    func() time.Time
}

// NewGetGamificationStatusHandler creates a new handler.
func NewGetGamificationStatusHandler(
	streakRepo streak.Repository,
	ledgerRepo ledger.Repository,
	badgeRepo badge.Repository,
	badgeCatalog badge.Catalog,
	rankRepo rank.Repository,
	rankCatalog rank.Catalog,
	config GamificationStatusConfig,
) *GetGamificationStatusHandler {
	if config.Policy.MaxFreezes == 0 && config.Policy.FreezeCooldownDays == 0 {
		config.Policy = streak.DefaultPolicy()
	}
	if config.Location == nil {
		config.Location = timeutil.DefaultLocation
	}
	if config.Clock == nil {
		config.Clock = func() time.Time { return time.Now().UTC() }
	}

	return &GetGamificationStatusHandler{
		streakRepo:   streakRepo,
		ledgerRepo:   ledgerRepo,
		badgeRepo:    badgeRepo,
		badgeCatalog: badgeCatalog,
		rankRepo:     rankRepo,
		rankCatalog:  rankCatalog,
		policy:       config.Policy,
		location:     config.Location,
		clock:        config.Clock,
	}
}

// Handle executes the query.
func (h *GetGamificationStatusHandler) Handle(ctx context.Context, q GetGamificationStatusQuery) (*GamificationStatusDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	userID := shared.UserID(q.UserID)
	now := h.clock()

	st, err := h.streakRepo.Get(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("status: failed to load streak: %w", err)
		}
		st = streak.NewState(userID, h.policy.MaxFreezes)
	}

	totals, err := h.ledgerRepo.Totals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("status: failed to load totals: %w", err)
	}

	rankInfo, err := h.rank(ctx, userID, totals.Sum())
	if err != nil {
		return nil, err
	}

	badges, err := h.badges(ctx, userID, badge.Stats{Totals: totals, TotalWorkouts: st.TotalWorkouts}, q.IncludeHidden)
	if err != nil {
		return nil, err
	}

	return &GamificationStatusDTO{
		UserID:      q.UserID,
		Streak:      h.streakDTO(st, timeutil.CalendarDate(now, h.location)),
		Points:      totals,
		TotalPoints: totals.Sum(),
		Rank:        rankInfo,
		Badges:      badges,
		GeneratedAt: now,
	}, nil
}

func (h *GetGamificationStatusHandler) streakDTO(st *streak.State, today time.Time) StreakDTO {
	dto := StreakDTO{
		Current:          st.CurrentStreak,
		Longest:          st.LongestStreak,
		Title:            streak.Title(st.CurrentStreak),
		LastActivityDate: timeutil.FormatDate(st.LastActivityDate),
		TotalWorkouts:    st.TotalWorkouts,
		NextMilestone:    streak.NextMilestone(st.CurrentStreak),
		Freezes:          h.policy.FreezeStatus(st, today),
	}
	if st.HasActivity() {
		gap := timeutil.DaysBetween(st.LastActivityDate, today)
		dto.ActiveToday = gap <= 0
		dto.AtRisk = gap == 1 && st.CurrentStreak > 0
	}
	return dto
}

// rank reports the stored tier. The stored record can trail the ledger by one
// in-flight event; the total shown is the ledger's.
func (h *GetGamificationStatusHandler) rank(ctx context.Context, userID shared.UserID, total int64) (*rank.UserRankInfo, error) {
	defs, err := h.rankCatalog.RankDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: failed to load ladder: %w", err)
	}
	l, err := rank.NewLadder(defs)
	if err != nil {
		return nil, err
	}

	stored, err := h.rankRepo.Get(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("status: failed to load rank: %w", err)
		}
		stored = rank.NewUserRank(userID)
	}

	view := *stored
	if total > view.TotalPoints {
		view.TotalPoints = total
	}
	if tier := l.TierFor(view.TotalPoints); tier > view.CurrentTier {
		view.CurrentTier = tier
	}
	return rank.Info(l, &view, false), nil
}

func (h *GetGamificationStatusHandler) badges(ctx context.Context, userID shared.UserID, stats badge.Stats, includeHidden bool) ([]BadgeDTO, error) {
	defs, err := h.badgeCatalog.BadgeDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: failed to load badge catalog: %w", err)
	}
	owned, err := h.badgeRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("status: failed to load user badges: %w", err)
	}

	report := badge.Evaluate(defs, stats, owned)
	list := report.Visible()
	if includeHidden {
		list = report.Badges
	}

	out := make([]BadgeDTO, 0, len(list))
	for _, e := range list {
		out = append(out, BadgeDTO{
			Key:             e.Definition.Key,
			Name:            e.Definition.Name,
			Category:        e.Definition.Category,
			Hidden:          e.Definition.IsHidden,
			EarnCount:       e.EarnCount,
			MaximumEarnings: e.Definition.MaximumEarnings,
			Progress:        e.Progress,
		})
	}
	return out, nil
}
