// Package messaging implements the event bus the engine publishes to: an
// in-memory bus for local handlers and a Redis fan-out for other services.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/pkg/circuitbreaker"
)

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")
)

// HandlerObserver is told about every handler execution.
type HandlerObserver interface {
	EventHandled(eventType shared.EventType, duration time.Duration, err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus delivers events to handlers in this process.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	asyncMode   bool
	workerPool  chan struct{}
	observer    HandlerObserver
	logger      *slog.Logger
	closed      bool
	closeCh     chan struct{}
	wg          sync.WaitGroup
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on a worker pool instead of the publisher's goroutine.
	AsyncMode bool

	// WorkerPoolSize is the number of concurrent handler executions in async mode.
	WorkerPoolSize int

	// Observer receives handler timings; optional.
	Observer HandlerObserver

	Logger *slog.Logger
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	return &InMemoryEventBus{
		handlers:   make(map[shared.EventType][]shared.EventHandler),
		asyncMode:  config.AsyncMode,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		observer:   config.Observer,
		logger:     config.Logger.With("component", "event_bus"),
		closeCh:    make(chan struct{}),
	}
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	b.logger.Debug("subscribed global handler")
	return nil
}

// Publish sends an event to all subscribed handlers. In sync mode handler
// errors are logged, not returned, so one bad handler cannot fail a workout.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	if b.asyncMode {
		b.wg.Add(len(handlers))
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		if b.asyncMode {
			go b.executeAsync(event, handler)
			continue
		}
		if err := b.execute(event, handler); err != nil {
			b.logger.Error("handler error", "event_type", event.EventType(), "error", err)
		}
	}
	return nil
}

func (b *InMemoryEventBus) executeAsync(event shared.Event, handler shared.EventHandler) {
	defer b.wg.Done()

	select {
	case b.workerPool <- struct{}{}:
		defer func() { <-b.workerPool }()
	case <-b.closeCh:
		return
	}

	if err := b.execute(event, handler); err != nil {
		b.logger.Error("async handler error", "event_type", event.EventType(), "error", err)
	}
}

func (b *InMemoryEventBus) execute(event shared.Event, handler shared.EventHandler) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic recovered",
				"event_type", event.EventType(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		if b.observer != nil {
			b.observer.EventHandled(event.EventType(), time.Since(start), err)
		}
	}()

	return handler(event)
}

// Close stops accepting events and waits for running handlers.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	close(b.closeCh)

	b.logger.Info("event bus closed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS FAN-OUT
// ══════════════════════════════════════════════════════════════════════════════

// ChannelPublisher publishes a JSON message to a pub/sub channel.
type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// FanoutEventBus delivers events locally and also publishes an envelope per
// event to "<prefix><event type>" for services outside this process. Remote
// publish failures are logged; local delivery still happens.
type FanoutEventBus struct {
	*InMemoryEventBus
	remote  ChannelPublisher
	channel func(shared.EventType) string
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewFanoutEventBus wraps local with a remote publisher.
func NewFanoutEventBus(local *InMemoryEventBus, remote ChannelPublisher, channel func(shared.EventType) string, logger *slog.Logger) *FanoutEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &FanoutEventBus{
		InMemoryEventBus: local,
		remote:           remote,
		channel:          channel,
		timeout:          2 * time.Second,
		logger:           logger.With("component", "event_fanout"),
	}
}

// WithBreaker routes remote publishes through cb. While it is open, remote
// publishes are skipped and only local delivery happens.
func (b *FanoutEventBus) WithBreaker(cb *circuitbreaker.CircuitBreaker) *FanoutEventBus {
	b.breaker = cb
	return b
}

// Publish implements shared.EventPublisher.
func (b *FanoutEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	envelope, err := NewEnvelope(event)
	if err != nil {
		b.logger.Error("failed to encode event", "event_type", event.EventType(), "error", err)
	} else {
		b.publishRemote(event.EventType(), envelope)
	}

	return b.InMemoryEventBus.Publish(event)
}

func (b *FanoutEventBus) publishRemote(eventType shared.EventType, envelope shared.EventEnvelope) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	publish := func(ctx context.Context) error {
		return b.remote.Publish(ctx, b.channel(eventType), envelope)
	}

	var err error
	if b.breaker != nil {
		err = b.breaker.Execute(ctx, publish)
	} else {
		err = publish(ctx)
	}

	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		b.logger.Debug("redis publish skipped, breaker open", "event_type", eventType)
	case err != nil:
		b.logger.Error("failed to publish to redis", "event_type", eventType, "error", err)
	}
}

// NewEnvelope wraps event for transport.
func NewEnvelope(event shared.Event) (shared.EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return shared.EventEnvelope{}, err
	}

	env := shared.EventEnvelope{
		ID:          uuid.NewString(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if c, ok := event.(interface{ Correlation() string }); ok {
		env.CorrelationID = c.Correlation()
	}
	return env, nil
}
