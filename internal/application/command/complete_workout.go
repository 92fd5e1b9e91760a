package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/powlax/gamification-engine/internal/domain/badge"
	"github.com/powlax/gamification-engine/internal/domain/ledger"
	"github.com/powlax/gamification-engine/internal/domain/rank"
	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE WORKOUT COMMAND
// Processes one finished practice session end to end: streak, points, ledger,
// badges and rank. The ledger entry and the streak write commit together, so a
// replayed session is detected before anything is credited twice. Badges and
// rank are reconciled on every delivery, including replays, which makes a
// redelivery after a partial failure converge on the correct state.
// ══════════════════════════════════════════════════════════════════════════════

// WorkoutCompletionEvent describes a finished session.
type WorkoutCompletionEvent struct {
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id"`
	Drills    []scoring.Drill `json:"drills"`

	// SubmittedAt is when the player submitted the session; it picks the
	// calendar day the workout counts for. Zero means now.
	SubmittedAt time.Time `json:"submitted_at"`

	// CorrelationID for tracing.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Validate validates the event.
func (e WorkoutCompletionEvent) Validate() error {
	if e.UserID == "" {
		return shared.ErrEmptyUserID
	}
	if e.SessionID == "" {
		return shared.ErrEmptySessionID
	}
	return nil
}

// CompleteWorkoutResult contains the outcome of processing a session.
type CompleteWorkoutResult struct {
	UserID    shared.UserID
	SessionID shared.SessionID

	// Duplicate is set when the session had already been scored. Score is
	// nil then, and no points or streak changes were applied.
	Duplicate bool

	Score            *scoring.WorkoutScore
	Streak           *streak.State
	StreakTransition streak.Transition
	StreakMilestone  *streak.Milestone
	Totals           scoring.CategoryPoints
	NewBadges        []badge.UserBadge
	Rank             *rank.UserRankInfo

	// Events published by this command itself; badge and rank events are
	// published by their engines.
	Events      []shared.Event
	ProcessedAt time.Time
}

// CompleteWorkoutConfig contains configuration for the handler.
type CompleteWorkoutConfig struct {
	FirstTodayBonus  bool
	MilestoneBonus   bool
	ConflictAttempts int
	Metrics          Metrics
	Logger           *slog.Logger
	Clock            Clock
}

// DefaultCompleteWorkoutConfig returns default configuration.
func DefaultCompleteWorkoutConfig() CompleteWorkoutConfig {
	return CompleteWorkoutConfig{
		FirstTodayBonus:  true,
		MilestoneBonus:   true,
		ConflictAttempts: DefaultConflictAttempts,
	}
}

// CompleteWorkoutHandler handles WorkoutCompletionEvent.
type CompleteWorkoutHandler struct {
	streaks        *StreakManager
	badges         *BadgeEngine
	ranks          *RankProgression
	ledgerRepo     ledger.Repository
	locker         UserLocker
	eventPublisher shared.EventPublisher

	firstTodayBonus bool
	milestoneBonus  bool
	attempts        int
	metrics         Metrics
	logger          *slog.Logger
	clock           Clock
}

// NewCompleteWorkoutHandler creates a new CompleteWorkoutHandler. locker may
// be nil; optimistic versioning alone still keeps state consistent, the lock
// only avoids wasted retries.
func NewCompleteWorkoutHandler(
	streaks *StreakManager,
	badges *BadgeEngine,
	ranks *RankProgression,
	ledgerRepo ledger.Repository,
	locker UserLocker,
	eventPublisher shared.EventPublisher,
	config CompleteWorkoutConfig,
) *CompleteWorkoutHandler {
	if config.Metrics == nil {
		config.Metrics = NopMetrics{}
	}
	if config.Clock == nil {
		config.Clock = systemClock
	}

	return &CompleteWorkoutHandler{
		streaks:         streaks,
		badges:          badges,
		ranks:           ranks,
		ledgerRepo:      ledgerRepo,
		locker:          locker,
		eventPublisher:  eventPublisher,
		firstTodayBonus: config.FirstTodayBonus,
		milestoneBonus:  config.MilestoneBonus,
		attempts:        config.ConflictAttempts,
		metrics:         config.Metrics,
		logger:          loggerOrDefault(config.Logger, "complete_workout"),
		clock:           config.Clock,
	}
}

// Handle processes one completion.
func (h *CompleteWorkoutHandler) Handle(ctx context.Context, evt WorkoutCompletionEvent) (*CompleteWorkoutResult, error) {
	if err := evt.Validate(); err != nil {
		return nil, fmt.Errorf("complete_workout: validation failed: %w", err)
	}

	userID := shared.UserID(evt.UserID)
	sessionID := shared.SessionID(evt.SessionID)
	completedAt := evt.SubmittedAt
	if completedAt.IsZero() {
		completedAt = h.clock()
	}

	if h.locker != nil {
		unlock, err := h.locker.Lock(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("complete_workout: failed to lock user: %w", err)
		}
		defer unlock()
	}

	fingerprint, err := ledger.Fingerprint(userID, sessionID, evt.Drills)
	if err != nil {
		return nil, fmt.Errorf("complete_workout: failed to fingerprint session: %w", err)
	}

	result := &CompleteWorkoutResult{
		UserID:      userID,
		SessionID:   sessionID,
		Events:      make([]shared.Event, 0),
		ProcessedAt: h.clock(),
	}

	var applied streak.Update
	r := conflictRetrier(h.attempts, "workout.commit", h.metrics, h.logger)
	err = r.Do(ctx, func(ctx context.Context) error {
		dup, err := h.alreadyScored(ctx, userID, sessionID, fingerprint)
		if err != nil {
			return err
		}
		if dup {
			result.Duplicate = true
			return nil
		}

		current, err := h.streaks.Load(ctx, userID)
		if err != nil {
			return err
		}
		isFirstToday := h.isFirstToday(current, completedAt)
		applied = h.streaks.Plan(current, completedAt)
		if !h.milestoneBonus {
			applied.Milestone = nil
		}

		score := scoring.CalculateWorkoutPoints(evt.Drills, applied.State.CurrentStreak, isFirstToday)

		workout := ledger.NewEntry(userID, sessionID, ledger.SourceWorkout, score.CategoryPoints, completedAt)
		workout.Fingerprint = fingerprint
		entries := []ledger.Entry{workout}
		if applied.Milestone != nil {
			entries = append(entries, ledger.NewEntry(userID, sessionID, ledger.SourceStreakMilestone,
				scoring.CategoryPoints{LaxCredit: applied.Milestone.BonusPoints}, completedAt))
		}

		totals, err := h.ledgerRepo.CommitWorkout(ctx, ledger.WorkoutCommit{
			Streak:  applied.State,
			Entries: entries,
		})
		if err != nil {
			if shared.IsAlreadyProcessed(err) {
				// Lost the race to a concurrent delivery of the same session.
				result.Duplicate = true
				return nil
			}
			return err
		}

		result.Score = &score
		result.Totals = totals
		return nil
	})
	if err != nil {
		return nil, asConflict("workout", "Complete", err, h.metrics)
	}

	if result.Duplicate {
		if err := h.loadCommitted(ctx, result); err != nil {
			return nil, err
		}
	} else {
		result.Streak = applied.State
		result.StreakTransition = applied.Transition
		result.StreakMilestone = applied.Milestone
		h.streaks.logTransition(applied)
		result.Events = append(result.Events, h.completedEvent(evt, result))
		result.Events = append(result.Events, StreakEvents(applied)...)
	}

	// Reconciliation runs for replays too.
	newBadges, err := h.badges.AwardForStats(ctx, userID, badge.Stats{
		Totals:        result.Totals,
		TotalWorkouts: result.Streak.TotalWorkouts,
	})
	if err != nil {
		return nil, fmt.Errorf("complete_workout: %w", err)
	}
	result.NewBadges = newBadges

	rankInfo, err := h.ranks.UpdateRank(ctx, userID, result.Totals.Sum())
	if err != nil {
		return nil, fmt.Errorf("complete_workout: %w", err)
	}
	result.Rank = rankInfo

	publishAll(h.eventPublisher, h.logger, result.Events...)

	h.metrics.WorkoutProcessed(result.Duplicate)
	if result.Score != nil {
		h.metrics.PointsAwarded(result.Score.CategoryPoints)
		h.logger.Info("workout scored",
			"user_id", userID,
			"session_id", sessionID,
			"drills", len(evt.Drills),
			"total_points", result.Score.TotalPoints,
			"multiplier", result.Score.CombinedMultiplier(),
			"current_streak", result.Streak.CurrentStreak,
			"new_badges", len(result.NewBadges),
			"tier", result.Rank.CurrentTier,
		)
	} else {
		h.logger.Info("duplicate session reconciled",
			"user_id", userID,
			"session_id", sessionID,
			"new_badges", len(result.NewBadges),
		)
	}

	return result, nil
}

// isFirstToday reports whether an activity at completedAt is the user's first
// on that calendar day. A backdated activity never counts as first.
func (h *CompleteWorkoutHandler) isFirstToday(current *streak.State, completedAt time.Time) bool {
	if !h.firstTodayBonus {
		return false
	}
	return current.FirstActivityOn(h.streaks.ActivityDate(completedAt))
}

func (h *CompleteWorkoutHandler) alreadyScored(ctx context.Context, userID shared.UserID, sessionID shared.SessionID, fingerprint string) (bool, error) {
	existing, err := h.ledgerRepo.FindWorkout(ctx, userID, sessionID)
	if err != nil {
		if shared.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("complete_workout: failed to look up session: %w", err)
	}
	if existing.Fingerprint != "" && existing.Fingerprint != fingerprint {
		h.logger.Warn("session replayed with different drills; keeping original score",
			"user_id", userID,
			"session_id", sessionID,
		)
	}
	return true, nil
}

func (h *CompleteWorkoutHandler) loadCommitted(ctx context.Context, result *CompleteWorkoutResult) error {
	totals, err := h.ledgerRepo.Totals(ctx, result.UserID)
	if err != nil {
		return fmt.Errorf("complete_workout: failed to load totals: %w", err)
	}
	st, err := h.streaks.Load(ctx, result.UserID)
	if err != nil {
		return err
	}
	result.Totals = totals
	result.Streak = st
	return nil
}

func (h *CompleteWorkoutHandler) completedEvent(evt WorkoutCompletionEvent, result *CompleteWorkoutResult) shared.Event {
	e := shared.NewWorkoutCompletedEvent(
		result.UserID.String(),
		result.SessionID.String(),
		len(evt.Drills),
		result.Score.TotalPoints,
		result.Score.CategoryPoints.Map(),
	)
	if evt.CorrelationID != "" {
		e.BaseEvent = e.BaseEvent.WithCorrelationID(evt.CorrelationID)
	}
	return e
}
