package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

type observed struct {
	count atomic.Int32
	fails atomic.Int32
}

func (o *observed) JobRan(_ string, _ time.Duration, err error) {
	o.count.Add(1)
	if err != nil {
		o.fails.Add(1)
	}
}

func newScheduler(t *testing.T, obs Observer) *Scheduler {
	t.Helper()
	s, err := New(Config{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		JobTimeout: time.Second,
		Observer:   obs,
	})
	require.NoError(t, err)
	return s
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	obs := &observed{}
	s := newScheduler(t, obs)
	job := &countingJob{name: "tick"}

	require.NoError(t, s.Every(job, 20*time.Millisecond))
	s.Start()

	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.GreaterOrEqual(t, obs.count.Load(), int32(2))

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_Registration(t *testing.T) {
	s := newScheduler(t, nil)

	assert.ErrorIs(t, s.Every(nil, time.Minute), ErrNilJob)
	require.NoError(t, s.Cron(&countingJob{name: "nightly"}, "0 3 * * *"))
	assert.ErrorIs(t, s.Every(&countingJob{name: "nightly"}, time.Minute), ErrJobAlreadyExists)
	assert.Error(t, s.Cron(&countingJob{name: "broken"}, "not a cron line"))

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "0 3 * * *", infos[0].Schedule)
}

func TestScheduler_RunNow(t *testing.T) {
	obs := &observed{}
	s := newScheduler(t, obs)
	boom := &countingJob{name: "boom", err: errors.New("boom")}
	require.NoError(t, s.Every(boom, time.Hour))

	result, err := s.RunNow(context.Background(), "boom")
	assert.EqualError(t, err, "boom")
	assert.True(t, result.Manual)
	assert.False(t, result.Success())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, int64(1), infos[0].FailCount)
	assert.Equal(t, "boom", infos[0].LastError)
	assert.Equal(t, int32(1), obs.fails.Load())
}
