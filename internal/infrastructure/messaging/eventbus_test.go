package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/pkg/circuitbreaker"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingObserver struct {
	handled atomic.Int32
	failed  atomic.Int32
}

func (o *countingObserver) EventHandled(_ shared.EventType, _ time.Duration, err error) {
	o.handled.Add(1)
	if err != nil {
		o.failed.Add(1)
	}
}

func TestInMemoryEventBus_Sync(t *testing.T) {
	obs := &countingObserver{}
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Observer: obs, Logger: quietLogger()})

	var got []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventRankUp, func(e shared.Event) error {
		got = append(got, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		return errors.New("analytics down")
	}))
	require.NoError(t, bus.Subscribe(shared.EventBadgeAwarded, func(e shared.Event) error {
		panic("boom")
	}))

	require.NoError(t, bus.Publish(shared.NewRankUpEvent("u", 1, "Rookie", 2, "Junior Varsity", 100)))
	require.NoError(t, bus.Publish(shared.NewBadgeAwardedEvent("u", "k", "K", 1, false)))

	assert.Equal(t, []shared.EventType{shared.EventRankUp}, got)
	assert.Equal(t, int32(4), obs.handled.Load())
	assert.Equal(t, int32(3), obs.failed.Load(), "handler errors and panics are observed, not returned")

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(shared.NewStreakUpdatedEvent("u", 1, 1)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventRankUp, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: quietLogger()})

	var handled atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventStreakUpdated, func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("u", i, i)))
	}
	require.NoError(t, bus.Close())
	assert.Equal(t, int32(10), handled.Load())
}

type recordingRemote struct {
	mu       sync.Mutex
	channels []string
	messages []shared.EventEnvelope
	err      error
}

func (r *recordingRemote) Publish(_ context.Context, channel string, message interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = append(r.channels, channel)
	r.messages = append(r.messages, message.(shared.EventEnvelope))
	return r.err
}

func TestFanoutEventBus(t *testing.T) {
	remote := &recordingRemote{}
	local := NewInMemoryEventBus(InMemoryEventBusConfig{Logger: quietLogger()})
	bus := NewFanoutEventBus(local, remote, func(t shared.EventType) string { return "gamification:" + string(t) }, quietLogger())

	var localCount int
	require.NoError(t, bus.Subscribe(shared.EventWorkoutCompleted, func(shared.Event) error {
		localCount++
		return nil
	}))

	evt := shared.NewWorkoutCompletedEvent("u", "s-1", 2, 13, map[string]int64{"lax_credit": 7})
	require.NoError(t, bus.Publish(evt))

	require.Len(t, remote.messages, 1)
	assert.Equal(t, "gamification:workout.completed", remote.channels[0])
	env := remote.messages[0]
	assert.Equal(t, "u", env.AggregateID)
	assert.Equal(t, "s-1", env.CorrelationID)
	assert.NotEmpty(t, env.ID)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, float64(13), payload["total_points"])
	assert.Equal(t, 1, localCount)

	remote.err = errors.New("redis down")
	require.NoError(t, bus.Publish(evt), "remote failure does not block local delivery")
	assert.Equal(t, 2, localCount)
}

func TestFanoutEventBus_BreakerSkipsRemoteWhileOpen(t *testing.T) {
	remote := &recordingRemote{err: errors.New("redis down")}
	local := NewInMemoryEventBus(InMemoryEventBusConfig{Logger: quietLogger()})
	cb := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2), circuitbreaker.WithCoolDown(time.Hour))
	bus := NewFanoutEventBus(local, remote, func(t shared.EventType) string { return string(t) }, quietLogger()).WithBreaker(cb)

	var localCount int
	require.NoError(t, bus.Subscribe(shared.EventWorkoutCompleted, func(shared.Event) error {
		localCount++
		return nil
	}))

	evt := shared.NewWorkoutCompletedEvent("u", "s-1", 1, 5, nil)
	for i := 0; i < 4; i++ {
		require.NoError(t, bus.Publish(evt))
	}

	assert.Len(t, remote.channels, 2, "breaker opened after two failures")
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())
	assert.Equal(t, 4, localCount)
}
