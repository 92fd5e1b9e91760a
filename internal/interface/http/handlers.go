package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/powlax/gamification-engine/internal/application/command"
	"github.com/powlax/gamification-engine/internal/application/query"
	"github.com/powlax/gamification-engine/internal/domain/badge"
	"github.com/powlax/gamification-engine/internal/domain/notification"
	"github.com/powlax/gamification-engine/internal/domain/rank"
	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": s.Uptime().String(),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReady answers 503 while any backing store failed its last probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Readiness == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	body := map[string]interface{}{
		"status":       "ready",
		"dependencies": s.deps.Readiness.Statuses(),
	}
	if !s.deps.Readiness.Healthy() {
		body["status"] = "not_ready"
		writeJSON(w, r, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, r, http.StatusOK, body)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.deps.Jobs.ListJobs())
}

// ══════════════════════════════════════════════════════════════════════════════
// GAMIFICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStatus handles GET /api/v1/users/{id}/gamification
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.Status.Handle(r.Context(), query.GetGamificationStatusQuery{
		UserID:        r.PathValue("id"),
		IncludeHidden: getQueryParamBool(r, "include_hidden"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleGetNotifications handles GET /api/v1/users/{id}/notifications
func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}

	list, err := s.deps.Notifications.Recent(r.Context(), shared.UserID(userID), getQueryParamInt(r, "limit", 20))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []notification.Notification{}
	}
	writeJSON(w, r, http.StatusOK, list)
}

// PreviewRequest is the body of a points preview.
type PreviewRequest struct {
	Drills []scoring.Drill `json:"drills"`
	At     time.Time       `json:"at"`
}

// handlePreviewWorkout handles POST /api/v1/users/{id}/workouts/preview
func (s *Server) handlePreviewWorkout(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !s.decode(w, r, &req) {
		return
	}

	dto, err := s.deps.Preview.Handle(r.Context(), query.PreviewWorkoutPointsQuery{
		UserID:          r.PathValue("id"),
		Drills:          req.Drills,
		At:              req.At,
		FirstTodayBonus: s.config.FirstTodayBonus,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// WorkoutResponse is the outcome of a scored session.
type WorkoutResponse struct {
	UserID           string                 `json:"user_id"`
	SessionID        string                 `json:"session_id"`
	Duplicate        bool                   `json:"duplicate"`
	Score            *scoring.WorkoutScore  `json:"score,omitempty"`
	Streak           *streak.State          `json:"streak,omitempty"`
	StreakTransition streak.Transition      `json:"streak_transition,omitempty"`
	StreakMilestone  *streak.Milestone      `json:"streak_milestone,omitempty"`
	Totals           scoring.CategoryPoints `json:"totals"`
	NewBadges        []badge.UserBadge      `json:"new_badges"`
	Rank             *rank.UserRankInfo     `json:"rank,omitempty"`
}

// handleCompleteWorkout handles POST /api/v1/workouts
func (s *Server) handleCompleteWorkout(w http.ResponseWriter, r *http.Request) {
	var evt command.WorkoutCompletionEvent
	if !s.decode(w, r, &evt) {
		return
	}
	if evt.CorrelationID == "" {
		evt.CorrelationID = getRequestID(r.Context())
	}

	result, err := s.deps.Workouts.Handle(r.Context(), evt)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := WorkoutResponse{
		UserID:           string(result.UserID),
		SessionID:        string(result.SessionID),
		Duplicate:        result.Duplicate,
		Score:            result.Score,
		Streak:           result.Streak,
		StreakTransition: result.StreakTransition,
		StreakMilestone:  result.StreakMilestone,
		Totals:           result.Totals,
		NewBadges:        result.NewBadges,
		Rank:             result.Rank,
	}
	if resp.NewBadges == nil {
		resp.NewBadges = []badge.UserBadge{}
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, r, status, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

// writeDomainError maps error kinds to status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var de *shared.DomainError
	message := err.Error()
	if errors.As(err, &de) {
		message = de.Message
	}

	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", message)
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", message)
	case shared.IsConflict(err):
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusConflict, "conflict", message)
	case shared.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", message)
	default:
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", getRequestID(r.Context()),
			"error", err,
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}
