// Package scheduler runs the engine's periodic maintenance jobs on gocron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

var (
	ErrNilJob              = errors.New("job is nil")
	ErrJobAlreadyExists    = errors.New("job already registered")
	ErrJobNotFound         = errors.New("job not found")
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context ends when the job times out or the
	// scheduler stops.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Manual      bool
	Error       error
}

// Success reports whether the run finished without error.
func (r JobResult) Success() bool { return r.Error == nil }

// Observer receives every job result.
type Observer interface {
	JobRan(jobName string, duration time.Duration, err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	Logger   *slog.Logger
	Location *time.Location

	// JobTimeout bounds a single run.
	JobTimeout time.Duration

	Observer Observer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Logger:     slog.Default(),
		Location:   time.UTC,
		JobTimeout: 30 * time.Second,
	}
}

// Scheduler wraps a gocron scheduler. Each job runs in singleton mode, so a
// slow run delays the next one instead of overlapping it.
type Scheduler struct {
	mu sync.RWMutex

	cron     gocron.Scheduler
	logger   *slog.Logger
	timeout  time.Duration
	observer Observer

	jobs     map[string]*registeredJob
	lastRuns map[string]JobResult

	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

type registeredJob struct {
	job      Job
	schedule string
	handle   gocron.Job
	runCount int64
	failures int64
}

// New creates a Scheduler.
func New(config Config) (*Scheduler, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}

	cron, err := gocron.NewScheduler(gocron.WithLocation(config.Location))
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron,
		logger:   config.Logger.With("component", "scheduler"),
		timeout:  config.JobTimeout,
		observer: config.Observer,
		jobs:     make(map[string]*registeredJob),
		lastRuns: make(map[string]JobResult),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Every registers job to run at a fixed interval.
func (s *Scheduler) Every(job Job, interval time.Duration) error {
	return s.register(job, gocron.DurationJob(interval), "@every "+interval.String())
}

// Cron registers job on a five-field cron expression.
func (s *Scheduler) Cron(job Job, expression string) error {
	return s.register(job, gocron.CronJob(expression, false), expression)
}

func (s *Scheduler) register(job Job, def gocron.JobDefinition, schedule string) error {
	if job == nil {
		return ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	rj := &registeredJob{job: job, schedule: schedule}
	handle, err := s.cron.NewJob(def,
		gocron.NewTask(func() { s.execute(s.ctx, rj, false) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	rj.handle = handle
	s.jobs[name] = rj

	s.logger.Info("job registered",
		"job", name,
		"description", job.Description(),
		"schedule", schedule,
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.running = true
	count := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs_count", count)
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown gocron: %w", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

// RunNow immediately executes a job by name, ignoring its schedule.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (JobResult, error) {
	s.mu.RLock()
	rj, exists := s.jobs[jobName]
	s.mu.RUnlock()
	if !exists {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	result := s.execute(ctx, rj, true)
	return result, result.Error
}

func (s *Scheduler) execute(ctx context.Context, rj *registeredJob, manual bool) JobResult {
	name := rj.job.Name()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startedAt := time.Now()
	err := rj.job.Run(ctx)
	completedAt := time.Now()

	result := JobResult{
		JobName:     name,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Manual:      manual,
		Error:       err,
	}

	s.mu.Lock()
	rj.runCount++
	if err != nil {
		rj.failures++
	}
	s.lastRuns[name] = result
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.JobRan(name, result.Duration, err)
	}

	if err != nil {
		s.logger.Error("job failed",
			"job", name,
			"manual", manual,
			"duration", result.Duration.String(),
			"error", err,
		)
	} else {
		s.logger.Debug("job completed",
			"job", name,
			"manual", manual,
			"duration", result.Duration.String(),
		)
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & INFO
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo contains information about a registered job.
type JobInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	NextRun     time.Time  `json:"next_run"`
	RunCount    int64      `json:"run_count"`
	FailCount   int64      `json:"fail_count"`
	LastResult  *JobResult `json:"-"`
	LastError   string     `json:"last_error,omitempty"`
}

// ListJobs returns information about all registered jobs, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, rj := range s.jobs {
		info := JobInfo{
			Name:        name,
			Description: rj.job.Description(),
			Schedule:    rj.schedule,
			RunCount:    rj.runCount,
			FailCount:   rj.failures,
		}
		if next, err := rj.handle.NextRun(); err == nil {
			info.NextRun = next
		}
		if last, ok := s.lastRuns[name]; ok {
			info.LastResult = &last
			if last.Error != nil {
				info.LastError = last.Error.Error()
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
