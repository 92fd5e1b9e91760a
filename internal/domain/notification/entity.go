// Package notification models the celebration feed: short messages shown to a
// user after a streak milestone, a badge or a rank-up.
package notification

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type names what is being celebrated.
type Type string

const (
	// TypeStreakMilestone - the streak reached 7, 30 or 100 days.
	TypeStreakMilestone Type = "streak_milestone"

	// TypeStreakSaved - a freeze bridged a missed day.
	TypeStreakSaved Type = "streak_saved"

	// TypeStreakBroken - the streak started over.
	TypeStreakBroken Type = "streak_broken"

	// TypeBadgeEarned - a badge was earned (again).
	TypeBadgeEarned Type = "badge_earned"

	// TypeSecretBadge - a hidden badge was revealed.
	TypeSecretBadge Type = "secret_badge"

	// TypeRankUp - the user reached a new rank.
	TypeRankUp Type = "rank_up"
)

// IsValid checks the type.
func (t Type) IsValid() bool {
	switch t {
	case TypeStreakMilestone, TypeStreakSaved, TypeStreakBroken,
		TypeBadgeEarned, TypeSecretBadge, TypeRankUp:
		return true
	}
	return false
}

// Priority orders the feed; high-priority items get a full-screen celebration.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
)

// DefaultPriority returns the priority for a type.
func (t Type) DefaultPriority() Priority {
	switch t {
	case TypeRankUp, TypeSecretBadge, TypeStreakMilestone:
		return PriorityHigh
	case TypeStreakBroken:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Notification is one feed item.
type Notification struct {
	ID        string            `json:"id"`
	UserID    shared.UserID     `json:"user_id"`
	Type      Type              `json:"type"`
	Priority  Priority          `json:"priority"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewNotification creates a notification with a fresh ID.
func NewNotification(userID shared.UserID, t Type, title, message string, at time.Time) (*Notification, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	if !t.IsValid() {
		return nil, shared.NewDomainError("notification", "New", shared.ErrInvalidInput, "unknown notification type "+string(t))
	}
	if strings.TrimSpace(message) == "" {
		return nil, shared.NewDomainError("notification", "New", shared.ErrEmptyValue, "message is required")
	}
	return &Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      t,
		Priority:  t.DefaultPriority(),
		Title:     title,
		Message:   message,
		CreatedAt: at,
	}, nil
}

// With attaches a data field.
func (n *Notification) With(key, value string) *Notification {
	if n.Data == nil {
		n.Data = make(map[string]string)
	}
	n.Data[key] = value
	return n
}

// Store keeps each user's recent notifications, newest first.
type Store interface {
	Record(ctx context.Context, n *Notification) error
	Recent(ctx context.Context, userID shared.UserID, limit int) ([]Notification, error)
}
