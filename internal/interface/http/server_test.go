package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlax/gamification-engine/internal/application/command"
	"github.com/powlax/gamification-engine/internal/application/query"
	"github.com/powlax/gamification-engine/internal/domain/badge"
	"github.com/powlax/gamification-engine/internal/domain/notification"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
	"github.com/powlax/gamification-engine/internal/infrastructure/metrics"
	"github.com/powlax/gamification-engine/internal/infrastructure/persistence/memory"
	"github.com/powlax/gamification-engine/internal/infrastructure/scheduler/jobs"
)

var now = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	server *Server
	feed   *memory.NotificationFeed
	health *jobs.DependencyHealthJob
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := quietLogger()
	clock := func() time.Time { return now }

	store := memory.NewStore()
	catalog := memory.NewCatalog([]badge.Definition{
		{Key: "first-workout", Name: "First Workout", EarnedByType: badge.EarnedByMilestone, WorkoutRequirement: 1, MaximumEarnings: 1},
	}, nil)

	reg := prometheus.NewRegistry()
	m, err := metrics.NewEngine(reg)
	require.NoError(t, err)

	streaks := command.NewStreakManager(store, nil, command.StreakManagerConfig{Logger: logger, Clock: clock, Metrics: m})
	badges := command.NewBadgeEngine(catalog, store, store, store, nil, command.BadgeEngineConfig{Logger: logger, Clock: clock, Metrics: m})
	ranks := command.NewRankProgression(catalog, store.Ranks(), nil, command.RankProgressionConfig{Logger: logger, Clock: clock, Metrics: m})
	cfg := command.DefaultCompleteWorkoutConfig()
	cfg.Logger, cfg.Clock, cfg.Metrics = logger, clock, m
	workouts := command.NewCompleteWorkoutHandler(streaks, badges, ranks, store, nil, nil, cfg)

	feed := memory.NewNotificationFeed(10)
	health := jobs.NewDependencyHealthJob(m, logger)

	server := NewServer(DefaultConfig(), Dependencies{
		Status: query.NewGetGamificationStatusHandler(store, store, store, catalog, store.Ranks(), catalog, query.GamificationStatusConfig{
			Clock: clock,
		}),
		Preview:       query.NewPreviewWorkoutPointsHandler(store, streak.DefaultPolicy(), nil),
		Workouts:      workouts,
		Notifications: feed,
		Readiness:     health,
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:        logger,
	})
	return &testEnv{server: server, feed: feed, health: health}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var resp JSONResponse
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestServer_CompleteWorkoutAndStatus(t *testing.T) {
	env := newTestEnv(t)
	evt := map[string]interface{}{
		"user_id":      "player-1",
		"session_id":   "s-1",
		"drills":       []map[string]interface{}{{"id": "d1", "difficulty_score": 3}},
		"submitted_at": now,
	}

	rec, resp := env.do(t, http.MethodPost, "/api/v1/workouts", evt)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, false, data["duplicate"])
	assert.Len(t, data["new_badges"], 1)

	rec, resp = env.do(t, http.MethodPost, "/api/v1/workouts", evt)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["duplicate"])

	rec, resp = env.do(t, http.MethodGet, "/api/v1/users/player-1/gamification", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := resp.Data.(map[string]interface{})
	assert.Equal(t, 1.0, status["streak"].(map[string]interface{})["current"])

	rec, _ = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gamification_workouts_processed_total{duplicate="true"} 1`)
}

func TestServer_CompleteWorkoutUsesSubmittedAt(t *testing.T) {
	env := newTestEnv(t)
	yesterday := now.AddDate(0, 0, -1)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/workouts", map[string]interface{}{
		"user_id":      "player-1",
		"session_id":   "s-late",
		"drills":       []map[string]interface{}{{"id": "d1", "difficulty_score": 3}},
		"submitted_at": yesterday,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, resp := env.do(t, http.MethodGet, "/api/v1/users/player-1/gamification", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := resp.Data.(map[string]interface{})["streak"].(map[string]interface{})
	assert.Equal(t, "2024-05-31", st["last_activity_date"])
	assert.Equal(t, true, st["at_risk"])

	rec, resp = env.do(t, http.MethodPost, "/api/v1/workouts", map[string]interface{}{
		"user_id":      "player-1",
		"session_id":   "s-old",
		"completed_at": yesterday,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", resp.Error.Code)
}

func TestServer_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/workouts", map[string]string{"user_id": "player-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "validation_error", resp.Error.Code)

	rec, resp = env.do(t, http.MethodPost, "/api/v1/workouts", map[string]string{"unknown": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", resp.Error.Code)
}

func TestServer_Preview(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/users/player-1/workouts/preview", PreviewRequest{
		Drills: nil,
		At:     now,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, 1.0, data["projected_streak"])
	assert.Equal(t, true, data["is_first_today"])
}

func TestServer_Notifications(t *testing.T) {
	env := newTestEnv(t)
	n, err := notification.NewNotification("player-1", notification.TypeRankUp, "Welcome to Varsity", "moved up", now)
	require.NoError(t, err)
	require.NoError(t, env.feed.Record(context.Background(), n))

	rec, resp := env.do(t, http.MethodGet, "/api/v1/users/player-1/notifications?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := resp.Data.([]interface{})
	require.Len(t, list, 1)

	_, resp = env.do(t, http.MethodGet, "/api/v1/users/nobody/notifications", nil)
	assert.Empty(t, resp.Data)
}

func TestServer_Readiness(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.health.Add("postgres", func(context.Context) error { return errors.New("down") })
	require.NoError(t, env.health.Run(context.Background()))

	rec, resp := env.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", resp.Data.(map[string]interface{})["status"])

	rec, _ = env.do(t, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteDomainError(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{Logger: quietLogger()})
	cases := []struct {
		err  error
		code int
	}{
		{shared.ErrEmptyUserID, http.StatusBadRequest},
		{shared.ErrNotFound, http.StatusNotFound},
		{shared.WrapError("streak", "Update", shared.ErrConflict, "too many concurrent updates", shared.ErrStreakVersion), http.StatusConflict},
		{shared.ErrLockNotAcquired, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		s.writeDomainError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}
