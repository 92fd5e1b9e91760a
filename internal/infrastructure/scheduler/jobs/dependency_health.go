package jobs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCY HEALTH JOB
// Pings the engine's backing stores on a schedule. The latest result backs the
// readiness endpoint and the dependency_up gauge.
// ══════════════════════════════════════════════════════════════════════════════

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthRecorder receives each probe result.
type HealthRecorder interface {
	DependencyChecked(name string, up bool)
}

// DependencyStatus is the last probe result for one dependency.
type DependencyStatus struct {
	Name      string        `json:"name"`
	Up        bool          `json:"up"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// DependencyHealthJob probes registered dependencies.
type DependencyHealthJob struct {
	mu       sync.RWMutex
	checks   map[string]Check
	statuses map[string]DependencyStatus

	recorder HealthRecorder
	logger   *slog.Logger
}

// NewDependencyHealthJob creates the job. recorder may be nil.
func NewDependencyHealthJob(recorder HealthRecorder, logger *slog.Logger) *DependencyHealthJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DependencyHealthJob{
		checks:   make(map[string]Check),
		statuses: make(map[string]DependencyStatus),
		recorder: recorder,
		logger:   logger.With("job", "dependency_health"),
	}
}

// Add registers a probe under name.
func (j *DependencyHealthJob) Add(name string, check Check) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.checks[name] = check
}

// Name implements scheduler.Job.
func (j *DependencyHealthJob) Name() string { return "dependency_health" }

// Description implements scheduler.Job.
func (j *DependencyHealthJob) Description() string {
	return "Ping Postgres and Redis and record their status"
}

// Run implements scheduler.Job. A failing dependency is recorded, not
// returned; the job itself only fails when ctx ends.
func (j *DependencyHealthJob) Run(ctx context.Context) error {
	j.mu.RLock()
	checks := make(map[string]Check, len(j.checks))
	for name, c := range j.checks {
		checks[name] = c
	}
	j.mu.RUnlock()

	for name, check := range checks {
		start := time.Now()
		err := check(ctx)
		status := DependencyStatus{
			Name:      name,
			Up:        err == nil,
			Latency:   time.Since(start),
			CheckedAt: start,
		}
		if err != nil {
			status.Error = err.Error()
			j.logger.Warn("dependency unhealthy", "dependency", name, "error", err)
		}

		j.mu.Lock()
		j.statuses[name] = status
		j.mu.Unlock()

		if j.recorder != nil {
			j.recorder.DependencyChecked(name, status.Up)
		}
	}
	return ctx.Err()
}

// Statuses returns the latest results sorted by name.
func (j *DependencyHealthJob) Statuses() []DependencyStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]DependencyStatus, 0, len(j.statuses))
	for _, s := range j.statuses {
		out = append(out, s)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Healthy reports whether every probed dependency was up on its last check.
// Before the first run it reports true.
func (j *DependencyHealthJob) Healthy() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, s := range j.statuses {
		if !s.Up {
			return false
		}
	}
	return true
}
