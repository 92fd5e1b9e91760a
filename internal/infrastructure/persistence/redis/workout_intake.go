package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/powlax/gamification-engine/internal/application/command"
	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// WorkoutCompletedChannel is where the training app announces finished
// sessions. The engine's outbound "gamification:workout.completed" channel
// must never feed back into it.
var WorkoutCompletedChannel = PubSubChannel("intake." + string(shared.EventWorkoutCompleted))

// WorkoutProcessor scores one completed workout.
type WorkoutProcessor interface {
	Handle(ctx context.Context, evt command.WorkoutCompletionEvent) (*command.CompleteWorkoutResult, error)
}

// WorkoutIntake feeds workout-completed messages from Redis pub/sub into the
// engine. Messages are processed one at a time in arrival order; per-user
// ordering across workers comes from the user lock.
type WorkoutIntake struct {
	cache     *Cache
	processor WorkoutProcessor
	channel   string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewWorkoutIntake creates an intake on WorkoutCompletedChannel.
func NewWorkoutIntake(cache *Cache, processor WorkoutProcessor, timeout time.Duration, logger *slog.Logger) *WorkoutIntake {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkoutIntake{
		cache:     cache,
		processor: processor,
		channel:   WorkoutCompletedChannel,
		timeout:   timeout,
		logger:    logger.With("component", "workout_intake", "channel", WorkoutCompletedChannel),
	}
}

// Run blocks until ctx is cancelled.
func (w *WorkoutIntake) Run(ctx context.Context) error {
	sub := w.cache.Subscribe(ctx, w.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	w.logger.Info("workout intake subscribed")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("workout intake stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			w.Process(ctx, []byte(msg.Payload))
		}
	}
}

// Process decodes and scores one message. Bad messages are logged and dropped.
func (w *WorkoutIntake) Process(ctx context.Context, payload []byte) {
	var evt command.WorkoutCompletionEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		w.logger.Warn("dropping malformed workout message", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	result, err := w.processor.Handle(ctx, evt)
	if err != nil {
		level := slog.LevelError
		if shared.IsValidation(err) {
			level = slog.LevelWarn
		}
		w.logger.Log(ctx, level, "workout not processed",
			"user_id", evt.UserID,
			"session_id", evt.SessionID,
			"retryable", shared.IsRetryable(err),
			"error", err,
		)
		return
	}

	w.logger.Debug("workout processed",
		"user_id", result.UserID,
		"session_id", result.SessionID,
		"duplicate", result.Duplicate,
	)
}
