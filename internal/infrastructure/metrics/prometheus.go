// Package metrics exports engine counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/powlax/gamification-engine/internal/application/command"
	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/infrastructure/messaging"
	"github.com/powlax/gamification-engine/internal/infrastructure/scheduler"
	"github.com/powlax/gamification-engine/internal/infrastructure/scheduler/jobs"
)

const namespace = "gamification"

// Engine implements the metric hooks of the engine, the event bus and the
// scheduler.
type Engine struct {
	workouts          *prometheus.CounterVec
	points            *prometheus.CounterVec
	badges            *prometheus.CounterVec
	rankUps           *prometheus.CounterVec
	conflictRetries   *prometheus.CounterVec
	conflictExhausted *prometheus.CounterVec
	skipped           *prometheus.CounterVec
	handlerDuration   *prometheus.HistogramVec
	handlerErrors     *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	jobFailures       *prometheus.CounterVec
	dependencyUp      *prometheus.GaugeVec
}

var (
	_ command.Metrics           = (*Engine)(nil)
	_ messaging.HandlerObserver = (*Engine)(nil)
	_ scheduler.Observer        = (*Engine)(nil)
	_ jobs.HealthRecorder       = (*Engine)(nil)
)

// NewEngine creates the collectors and registers them with reg.
func NewEngine(reg prometheus.Registerer) (*Engine, error) {
	m := &Engine{
		workouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workouts_processed_total",
			Help:      "Workout completions handled, by whether the session was a replay.",
		}, []string{"duplicate"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points credited to the ledger, by currency.",
		}, []string{"category"}),
		badges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badges_awarded_total",
			Help:      "Badge earn_count increments, by badge.",
		}, []string{"badge"}),
		rankUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_ups_total",
			Help:      "Rank-ups, by the tier reached.",
		}, []string{"tier"}),
		conflictRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Optimistic writes retried after losing a version race.",
		}, []string{"operation"}),
		conflictExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_exhausted_total",
			Help:      "Operations that gave up after all conflict retries.",
		}, []string{"operation"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "definitions_skipped_total",
			Help:      "Malformed catalog definitions skipped during evaluation.",
		}, []string{"kind"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handler_duration_seconds",
			Help:      "Event handler execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_errors_total",
			Help:      "Event handler failures, including recovered panics.",
		}, []string{"event_type"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled job run time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		jobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_failures_total",
			Help:      "Scheduled job runs that returned an error.",
		}, []string{"job"}),
		dependencyUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dependency_up",
			Help:      "1 when the last probe of a backing store succeeded.",
		}, []string{"dependency"}),
	}

	for _, c := range []prometheus.Collector{
		m.workouts, m.points, m.badges, m.rankUps, m.conflictRetries,
		m.conflictExhausted, m.skipped, m.handlerDuration, m.handlerErrors,
		m.jobDuration, m.jobFailures, m.dependencyUp,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Engine) WorkoutProcessed(duplicate bool) {
	m.workouts.WithLabelValues(strconv.FormatBool(duplicate)).Inc()
}

func (m *Engine) PointsAwarded(points scoring.CategoryPoints) {
	for _, c := range scoring.AllCategories {
		if v := points.Get(c); v > 0 {
			m.points.WithLabelValues(string(c)).Add(float64(v))
		}
	}
}

func (m *Engine) BadgeAwarded(badgeKey string) {
	m.badges.WithLabelValues(badgeKey).Inc()
}

func (m *Engine) RankUp(tier int) {
	m.rankUps.WithLabelValues(strconv.Itoa(tier)).Inc()
}

func (m *Engine) ConflictRetried(operation string) {
	m.conflictRetries.WithLabelValues(operation).Inc()
}

func (m *Engine) ConflictExhausted(operation string) {
	m.conflictExhausted.WithLabelValues(operation).Inc()
}

func (m *Engine) DefinitionSkipped(kind string) {
	m.skipped.WithLabelValues(kind).Inc()
}

// EventHandled implements messaging.HandlerObserver.
func (m *Engine) EventHandled(eventType shared.EventType, duration time.Duration, err error) {
	m.handlerDuration.WithLabelValues(string(eventType)).Observe(duration.Seconds())
	if err != nil {
		m.handlerErrors.WithLabelValues(string(eventType)).Inc()
	}
}

// JobRan implements scheduler.Observer.
func (m *Engine) JobRan(jobName string, duration time.Duration, err error) {
	m.jobDuration.WithLabelValues(jobName).Observe(duration.Seconds())
	if err != nil {
		m.jobFailures.WithLabelValues(jobName).Inc()
	}
}

// DependencyChecked implements jobs.HealthRecorder.
func (m *Engine) DependencyChecked(name string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.dependencyUp.WithLabelValues(name).Set(v)
}
