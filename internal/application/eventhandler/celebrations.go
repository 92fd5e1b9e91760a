// Package eventhandler contains handlers for domain events.
// Handlers react to what the engine already decided; they never change
// points, streaks, badges or ranks.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/powlax/gamification-engine/internal/domain/notification"
	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// CELEBRATIONS HANDLER
// Turns milestone, badge, rank-up and streak events into feed notifications.
// ═══════════════════════════════════════════════════════════════════════════

// CelebrationsHandler records a notification for every event worth showing.
type CelebrationsHandler struct {
	store   notification.Store
	printer *message.Printer
	logger  *slog.Logger
	config  CelebrationsConfig
}

// CelebrationsConfig contains configuration for the handler.
type CelebrationsConfig struct {
	// Language selects number formatting ("1,500" for English).
	Language language.Tag

	// NotifyStreakBroken records a gentle "start again" message on resets.
	NotifyStreakBroken bool

	// MinBrokenStreak skips resets of short streaks.
	MinBrokenStreak int

	// Timeout bounds a single store write.
	Timeout time.Duration
}

// DefaultCelebrationsConfig returns the default configuration.
func DefaultCelebrationsConfig() CelebrationsConfig {
	return CelebrationsConfig{
		Language:           language.English,
		NotifyStreakBroken: true,
		MinBrokenStreak:    3,
		Timeout:            5 * time.Second,
	}
}

// NewCelebrationsHandler creates a new handler.
func NewCelebrationsHandler(store notification.Store, logger *slog.Logger, config CelebrationsConfig) *CelebrationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Language == language.Und {
		config.Language = language.English
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &CelebrationsHandler{
		store:   store,
		printer: message.NewPrinter(config.Language),
		logger:  logger.With("handler", "celebrations"),
		config:  config,
	}
}

// Register subscribes the handler to every event type it understands.
func (h *CelebrationsHandler) Register(subscriber shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventStreakMilestone,
		shared.EventStreakFrozen,
		shared.EventStreakBroken,
		shared.EventBadgeAwarded,
		shared.EventRankUp,
	} {
		if err := subscriber.Subscribe(t, h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle implements shared.EventHandler.
func (h *CelebrationsHandler) Handle(event shared.Event) error {
	n, err := h.build(event)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if err := h.store.Record(ctx, n); err != nil {
		h.logger.Error("failed to record notification",
			"user_id", n.UserID,
			"type", n.Type,
			"error", err,
		)
		return fmt.Errorf("record notification: %w", err)
	}

	h.logger.Debug("notification recorded",
		"user_id", n.UserID,
		"type", n.Type,
		"priority", n.Priority,
	)
	return nil
}

func (h *CelebrationsHandler) build(event shared.Event) (*notification.Notification, error) {
	userID := shared.UserID(event.AggregateID())
	at := event.OccurredAt()
	p := h.printer

	switch e := event.(type) {
	case shared.StreakMilestoneEvent:
		n, err := notification.NewNotification(userID, notification.TypeStreakMilestone,
			p.Sprintf("%d-day streak!", e.Milestone),
			p.Sprintf("You trained %d days in a row and earned %d bonus Lax Credits.", e.Milestone, e.BonusPoints),
			at)
		if err != nil {
			return nil, err
		}
		return n.With("milestone", fmt.Sprint(e.Milestone)), nil

	case shared.StreakFrozenEvent:
		return notification.NewNotification(userID, notification.TypeStreakSaved,
			"Streak saved",
			p.Sprintf("A freeze kept your %d-day streak alive. %d left.", e.PreservedStreak, e.FreezesRemaining),
			at)

	case shared.StreakBrokenEvent:
		if !h.config.NotifyStreakBroken || e.PreviousStreak < h.config.MinBrokenStreak {
			return nil, nil
		}
		return notification.NewNotification(userID, notification.TypeStreakBroken,
			"Fresh start",
			p.Sprintf("Your %d-day streak ended. Today is day one of the next one.", e.PreviousStreak),
			at)

	case shared.BadgeAwardedEvent:
		t := notification.TypeBadgeEarned
		title := "Badge earned"
		if e.IsHidden {
			t = notification.TypeSecretBadge
			title = "Secret badge unlocked"
		}
		msg := p.Sprintf("You earned %s.", e.BadgeName)
		if e.EarnCount > 1 {
			msg = p.Sprintf("You earned %s for the %s time.", e.BadgeName, ordinal(e.EarnCount))
		}
		n, err := notification.NewNotification(userID, t, title, msg, at)
		if err != nil {
			return nil, err
		}
		return n.With("badge_key", e.BadgeKey), nil

	case shared.RankUpEvent:
		n, err := notification.NewNotification(userID, notification.TypeRankUp,
			p.Sprintf("Welcome to %s", e.NewTitle),
			p.Sprintf("%d points moved you up from %s to %s.", e.TotalPoints, e.OldTitle, e.NewTitle),
			at)
		if err != nil {
			return nil, err
		}
		return n.With("tier", fmt.Sprint(e.NewTier)), nil

	default:
		h.logger.Warn("received unsupported event", "event_type", event.EventType())
		return nil, nil
	}
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
