package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain events emitted by the gamification engine. Downstream consumers
// (celebration UI, notifications, analytics) subscribe by type.
const (
	// Workout events
	EventWorkoutCompleted EventType = "workout.completed"

	// Streak events
	EventStreakUpdated   EventType = "streak.updated"
	EventStreakFrozen    EventType = "streak.frozen"
	EventStreakBroken    EventType = "streak.broken"
	EventStreakMilestone EventType = "streak.milestone"

	// Badge events
	EventBadgeAwarded EventType = "badge.awarded"

	// Rank events
	EventRankUp EventType = "rank.up"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// Correlation returns the correlation ID, if any.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Workout Events
// ═══════════════════════════════════════════════════════════════════════════

// WorkoutCompletedEvent is emitted once per newly scored session.
type WorkoutCompletedEvent struct {
	BaseEvent
	SessionID      string           `json:"session_id"`
	DrillCount     int              `json:"drill_count"`
	TotalPoints    int64            `json:"total_points"`
	CategoryPoints map[string]int64 `json:"category_points"`
}

// Payload implements Event interface.
func (e WorkoutCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id":      e.SessionID,
		"drill_count":     e.DrillCount,
		"total_points":    e.TotalPoints,
		"category_points": e.CategoryPoints,
	}
}

// NewWorkoutCompletedEvent creates a new WorkoutCompletedEvent.
func NewWorkoutCompletedEvent(userID, sessionID string, drillCount int, totalPoints int64, categoryPoints map[string]int64) WorkoutCompletedEvent {
	return WorkoutCompletedEvent{
		BaseEvent:      NewBaseEvent(EventWorkoutCompleted, userID).WithCorrelationID(sessionID),
		SessionID:      sessionID,
		DrillCount:     drillCount,
		TotalPoints:    totalPoints,
		CategoryPoints: categoryPoints,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakUpdatedEvent is emitted whenever a streak counter advances.
type StreakUpdatedEvent struct {
	BaseEvent
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, current, longest int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, userID),
		CurrentStreak: current,
		LongestStreak: longest,
	}
}

// StreakFrozenEvent is emitted when a freeze was consumed to bridge a gap.
type StreakFrozenEvent struct {
	BaseEvent
	PreservedStreak  int `json:"preserved_streak"`
	FreezesRemaining int `json:"freezes_remaining"`
	MissedDays       int `json:"missed_days"`
}

// Payload implements Event interface.
func (e StreakFrozenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"preserved_streak":  e.PreservedStreak,
		"freezes_remaining": e.FreezesRemaining,
		"missed_days":       e.MissedDays,
	}
}

// NewStreakFrozenEvent creates a new StreakFrozenEvent.
func NewStreakFrozenEvent(userID string, preserved, remaining, missedDays int) StreakFrozenEvent {
	return StreakFrozenEvent{
		BaseEvent:        NewBaseEvent(EventStreakFrozen, userID),
		PreservedStreak:  preserved,
		FreezesRemaining: remaining,
		MissedDays:       missedDays,
	}
}

// StreakBrokenEvent is emitted when a gap reset the streak.
type StreakBrokenEvent struct {
	BaseEvent
	PreviousStreak int `json:"previous_streak"`
	MissedDays     int `json:"missed_days"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous_streak": e.PreviousStreak,
		"missed_days":     e.MissedDays,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, previous, missedDays int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID),
		PreviousStreak: previous,
		MissedDays:     missedDays,
	}
}

// StreakMilestoneEvent is emitted when a streak lands exactly on a milestone.
type StreakMilestoneEvent struct {
	BaseEvent
	Milestone   int   `json:"milestone"`
	BonusPoints int64 `json:"bonus_points"`
}

// Payload implements Event interface.
func (e StreakMilestoneEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"milestone":    e.Milestone,
		"bonus_points": e.BonusPoints,
	}
}

// NewStreakMilestoneEvent creates a new StreakMilestoneEvent.
func NewStreakMilestoneEvent(userID string, milestone int, bonus int64) StreakMilestoneEvent {
	return StreakMilestoneEvent{
		BaseEvent:   NewBaseEvent(EventStreakMilestone, userID),
		Milestone:   milestone,
		BonusPoints: bonus,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Badge Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeAwardedEvent is emitted for every successful earn_count increment.
type BadgeAwardedEvent struct {
	BaseEvent
	BadgeKey  string `json:"badge_key"`
	BadgeName string `json:"badge_name"`
	EarnCount int    `json:"earn_count"`
	IsHidden  bool   `json:"is_hidden"`
}

// Payload implements Event interface.
func (e BadgeAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"badge_key":  e.BadgeKey,
		"badge_name": e.BadgeName,
		"earn_count": e.EarnCount,
		"is_hidden":  e.IsHidden,
	}
}

// NewBadgeAwardedEvent creates a new BadgeAwardedEvent.
func NewBadgeAwardedEvent(userID, badgeKey, badgeName string, earnCount int, hidden bool) BadgeAwardedEvent {
	return BadgeAwardedEvent{
		BaseEvent: NewBaseEvent(EventBadgeAwarded, userID),
		BadgeKey:  badgeKey,
		BadgeName: badgeName,
		EarnCount: earnCount,
		IsHidden:  hidden,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Events
// ═══════════════════════════════════════════════════════════════════════════

// RankUpEvent is emitted when a user's tier increases.
type RankUpEvent struct {
	BaseEvent
	OldTier     int    `json:"old_tier"`
	OldTitle    string `json:"old_title"`
	NewTier     int    `json:"new_tier"`
	NewTitle    string `json:"new_title"`
	TotalPoints int64  `json:"total_points"`
}

// Payload implements Event interface.
func (e RankUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_tier":     e.OldTier,
		"old_title":    e.OldTitle,
		"new_tier":     e.NewTier,
		"new_title":    e.NewTitle,
		"total_points": e.TotalPoints,
	}
}

// NewRankUpEvent creates a new RankUpEvent.
func NewRankUpEvent(userID string, oldTier int, oldTitle string, newTier int, newTitle string, total int64) RankUpEvent {
	return RankUpEvent{
		BaseEvent:   NewBaseEvent(EventRankUp, userID),
		OldTier:     oldTier,
		OldTitle:    oldTitle,
		NewTier:     newTier,
		NewTitle:    newTitle,
		TotalPoints: total,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
