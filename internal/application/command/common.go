// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/pkg/retry"
)

// DefaultConflictAttempts bounds optimistic retries per operation.
const DefaultConflictAttempts = 4

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// UserLocker serializes work for one user. Lock blocks until the lock is
// held or ctx ends; the returned func releases it.
type UserLocker interface {
	Lock(ctx context.Context, userID shared.UserID) (unlock func(), err error)
}

// Metrics receives engine counters.
type Metrics interface {
	WorkoutProcessed(duplicate bool)
	PointsAwarded(points scoring.CategoryPoints)
	BadgeAwarded(badgeKey string)
	RankUp(tier int)
	ConflictRetried(operation string)
	ConflictExhausted(operation string)
	DefinitionSkipped(kind string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) WorkoutProcessed(bool)                {}
func (NopMetrics) PointsAwarded(scoring.CategoryPoints) {}
func (NopMetrics) BadgeAwarded(string)                  {}
func (NopMetrics) RankUp(int)                           {}
func (NopMetrics) ConflictRetried(string)               {}
func (NopMetrics) ConflictExhausted(string)             {}
func (NopMetrics) DefinitionSkipped(string)             {}

// conflictRetrier re-runs an operation while it loses optimistic version races.
func conflictRetrier(attempts int, op string, metrics Metrics, logger *slog.Logger) *retry.Retrier {
	if attempts <= 0 {
		attempts = DefaultConflictAttempts
	}
	return retry.ConflictRetrier(attempts, shared.IsVersionConflict,
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			metrics.ConflictRetried(op)
			logger.Debug("retrying after version conflict",
				"operation", op,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		}),
	)
}

// asConflict turns an exhausted version-conflict retry into shared.ErrConflict
// so callers can retry the whole event.
func asConflict(domain, op string, err error, metrics Metrics) error {
	if err == nil {
		return nil
	}
	if retry.IsExhausted(err) && shared.IsVersionConflict(err) {
		metrics.ConflictExhausted(domain + "." + op)
		return shared.WrapError(domain, op, shared.ErrConflict, "too many concurrent updates", err)
	}
	return err
}

// publishAll sends events, logging failures. Delivery is best effort: state
// is already committed when events go out.
func publishAll(publisher shared.EventPublisher, logger *slog.Logger, events ...shared.Event) {
	if publisher == nil {
		return
	}
	for _, evt := range events {
		if err := publisher.Publish(evt); err != nil {
			logger.Warn("failed to publish event",
				"event_type", evt.EventType(),
				"aggregate_id", evt.AggregateID(),
				"error", err,
			)
		}
	}
}

func loggerOrDefault(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", component)
}
