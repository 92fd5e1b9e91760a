package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errStale = errors.New("stale version")
	errOther = errors.New("other")
)

func isStale(err error) bool { return errors.Is(err, errStale) }

func fast(attempts int) *Retrier {
	return New(WithMaxAttempts(attempts), WithBackoff(0, time.Millisecond, 1), WithJitter(0), WithRetryIf(isStale))
}

func TestRetrier_SucceedsAfterConflicts(t *testing.T) {
	calls := 0
	err := fast(4).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errStale
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_ExhaustedWrapsLastError(t *testing.T) {
	calls := 0
	err := fast(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errStale
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsExhausted(err))
	assert.ErrorIs(t, err, errStale)
}

func TestRetrier_OtherErrorsStopImmediately(t *testing.T) {
	calls := 0
	err := fast(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errOther
	})

	assert.ErrorIs(t, err, errOther)
	assert.False(t, IsExhausted(err))
	assert.Equal(t, 1, calls)
}

func TestRetrier_NilPredicateNeverRetries(t *testing.T) {
	calls := 0
	err := New(WithMaxAttempts(5)).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errStale
	})

	assert.ErrorIs(t, err, errStale)
	assert.Equal(t, 1, calls)
}

func TestConflictRetrier_OnRetry(t *testing.T) {
	var seen []int
	r := ConflictRetrier(3, isStale, WithOnRetry(func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
		assert.LessOrEqual(t, delay, 150*time.Millisecond)
	}))

	err := r.Do(context.Background(), func(ctx context.Context) error { return errStale })

	assert.True(t, IsExhausted(err))
	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, 3, r.MaxAttempts())
}

func TestRetrier_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fast(3).Do(ctx, func(ctx context.Context) error {
		t.Fatal("operation must not run")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelay_Capped(t *testing.T) {
	r := New(WithBackoff(time.Second, 2*time.Second, 2), WithJitter(0))

	assert.Equal(t, time.Second, r.delay(1))
	assert.Equal(t, 2*time.Second, r.delay(2))
	assert.Equal(t, 2*time.Second, r.delay(5))
}
