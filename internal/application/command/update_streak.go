package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
	"github.com/powlax/gamification-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK MANAGER
// Maintains each user's daily streak: increments, freezes, resets and
// administrative adjustments. All writes are optimistic; a lost race is
// re-read and re-applied a bounded number of times.
// ══════════════════════════════════════════════════════════════════════════════

// StreakManagerConfig contains configuration for the streak manager.
type StreakManagerConfig struct {
	Policy           streak.Policy
	Location         *time.Location
	ConflictAttempts int
	Metrics          Metrics
	Logger           *slog.Logger
	Clock            Clock
}

// DefaultStreakManagerConfig returns default configuration.
func DefaultStreakManagerConfig() StreakManagerConfig {
	return StreakManagerConfig{
		Policy:           streak.DefaultPolicy(),
		Location:         timeutil.DefaultLocation,
		ConflictAttempts: DefaultConflictAttempts,
	}
}

// StreakManager applies activities to streak state.
type StreakManager struct {
	repo           streak.Repository
	eventPublisher shared.EventPublisher

	policy   streak.Policy
	location *time.Location
	attempts int
	metrics  Metrics
	logger   *slog.Logger
	clock    Clock
}

// NewStreakManager creates a new StreakManager.
func NewStreakManager(
	repo streak.Repository,
	eventPublisher shared.EventPublisher,
	config StreakManagerConfig,
) *StreakManager {
	if config.Policy.MaxFreezes == 0 && config.Policy.FreezeCooldownDays == 0 {
		config.Policy = streak.DefaultPolicy()
	}
	if config.Location == nil {
		config.Location = timeutil.DefaultLocation
	}
	if config.Metrics == nil {
		config.Metrics = NopMetrics{}
	}
	if config.Clock == nil {
		config.Clock = systemClock
	}

	return &StreakManager{
		repo:           repo,
		eventPublisher: eventPublisher,
		policy:         config.Policy,
		location:       config.Location,
		attempts:       config.ConflictAttempts,
		metrics:        config.Metrics,
		logger:         loggerOrDefault(config.Logger, "streak_manager"),
		clock:          config.Clock,
	}
}

// Policy returns the freeze policy in effect.
func (m *StreakManager) Policy() streak.Policy {
	return m.policy
}

// Location returns the time zone that defines calendar days.
func (m *StreakManager) Location() *time.Location {
	return m.location
}

// ActivityDate converts an instant to the calendar date streaks count in.
func (m *StreakManager) ActivityDate(at time.Time) time.Time {
	return timeutil.CalendarDate(at, m.location)
}

// Load returns the stored state, or a fresh one holding the full freeze
// allowance for a user seen for the first time.
func (m *StreakManager) Load(ctx context.Context, userID shared.UserID) (*streak.State, error) {
	st, err := m.repo.Get(ctx, userID)
	if err == nil {
		return st, nil
	}
	if shared.IsNotFound(err) {
		return streak.NewState(userID, m.policy.MaxFreezes), nil
	}
	return nil, fmt.Errorf("streak: failed to load state: %w", err)
}

// Plan computes the update an activity at activityAt would make, without
// saving it.
func (m *StreakManager) Plan(current *streak.State, activityAt time.Time) streak.Update {
	return m.policy.Apply(current, m.ActivityDate(activityAt), m.clock())
}

// UpdateUserStreak records one activity at activityAt for userID and returns
// the applied update. activityAt is an instant; the calendar day is taken in
// the manager's time zone.
func (m *StreakManager) UpdateUserStreak(ctx context.Context, userID shared.UserID, activityAt time.Time) (*streak.Update, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	if activityAt.IsZero() {
		return nil, shared.ErrInvalidActivity
	}

	r := conflictRetrier(m.attempts, "streak.update", m.metrics, m.logger)
	var applied streak.Update
	err := r.Do(ctx, func(ctx context.Context) error {
		current, err := m.Load(ctx, userID)
		if err != nil {
			return err
		}
		applied = m.Plan(current, activityAt)
		return m.repo.Save(ctx, applied.State)
	})
	if err != nil {
		return nil, asConflict("streak", "UpdateUserStreak", err, m.metrics)
	}

	m.logTransition(applied)
	m.Publish(applied)
	return &applied, nil
}

// ResetStreak clears a user's active streak. Longest streak, freezes and
// workout count are kept.
func (m *StreakManager) ResetStreak(ctx context.Context, userID shared.UserID) (*streak.State, error) {
	var previous int
	saved, err := m.mutate(ctx, userID, "ResetStreak", func(st *streak.State) error {
		previous = st.CurrentStreak
		st.Reset(m.clock())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if previous > 0 {
		publishAll(m.eventPublisher, m.logger, shared.NewStreakBrokenEvent(userID.String(), previous, 0))
	}
	return saved, nil
}

// GrantFreeze gives a user one freeze back, up to the allowance.
func (m *StreakManager) GrantFreeze(ctx context.Context, userID shared.UserID) (*streak.State, error) {
	return m.mutate(ctx, userID, "GrantFreeze", func(st *streak.State) error {
		return st.GrantFreeze(m.policy.MaxFreezes, m.clock())
	})
}

func (m *StreakManager) mutate(ctx context.Context, userID shared.UserID, op string, fn func(*streak.State) error) (*streak.State, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}

	r := conflictRetrier(m.attempts, "streak."+op, m.metrics, m.logger)
	var saved *streak.State
	err := r.Do(ctx, func(ctx context.Context) error {
		st, err := m.Load(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		if err := m.repo.Save(ctx, st); err != nil {
			return err
		}
		saved = st
		return nil
	})
	if err != nil {
		return nil, asConflict("streak", op, err, m.metrics)
	}

	m.logger.Info("streak adjusted",
		"user_id", userID,
		"operation", op,
		"current_streak", saved.CurrentStreak,
		"freeze_count", saved.FreezeCount,
	)
	return saved, nil
}

// Publish emits the events for an applied update.
func (m *StreakManager) Publish(u streak.Update) {
	publishAll(m.eventPublisher, m.logger, StreakEvents(u)...)
}

func (m *StreakManager) logTransition(u streak.Update) {
	attrs := []any{
		"user_id", u.State.UserID,
		"transition", u.Transition,
		"current_streak", u.State.CurrentStreak,
		"days_since_last", u.DaysSinceLast,
	}
	switch u.Transition {
	case streak.TransitionFrozen:
		m.logger.Info("streak preserved by freeze", append(attrs, "freezes_left", u.State.FreezeCount)...)
	case streak.TransitionReset:
		m.logger.Info("streak broken", append(attrs, "previous_streak", u.Previous.CurrentStreak)...)
	default:
		m.logger.Debug("streak updated", attrs...)
	}
}

// StreakEvents lists the domain events an update produces. Same-day and
// backdated activity produce none.
func StreakEvents(u streak.Update) []shared.Event {
	userID := u.State.UserID.String()
	var events []shared.Event

	switch u.Transition {
	case streak.TransitionStarted, streak.TransitionContinued:
		events = append(events, shared.NewStreakUpdatedEvent(userID, u.State.CurrentStreak, u.State.LongestStreak))
	case streak.TransitionFrozen:
		events = append(events, shared.NewStreakFrozenEvent(userID, u.State.CurrentStreak, u.State.FreezeCount, u.MissedDays()))
	case streak.TransitionReset:
		events = append(events,
			shared.NewStreakBrokenEvent(userID, u.Previous.CurrentStreak, u.MissedDays()),
			shared.NewStreakUpdatedEvent(userID, u.State.CurrentStreak, u.State.LongestStreak),
		)
	}

	if u.Milestone != nil {
		events = append(events, shared.NewStreakMilestoneEvent(userID, u.Milestone.Days, u.Milestone.BonusPoints))
	}
	return events
}
