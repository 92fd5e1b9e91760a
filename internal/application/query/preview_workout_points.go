package query

import (
	"context"
	"fmt"
	"time"

	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
	"github.com/powlax/gamification-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREVIEW WORKOUT POINTS QUERY
// Scores a planned workout as if it were completed now, using the user's
// current streak. Nothing is written.
// ══════════════════════════════════════════════════════════════════════════════

// PreviewWorkoutPointsQuery contains the planned workout.
type PreviewWorkoutPointsQuery struct {
	UserID string
	Drills []scoring.Drill

	// At is the planned completion time. Zero means now.
	At time.Time

	// FirstTodayBonus mirrors the engine's feature flag.
	FirstTodayBonus bool
}

// Validate validates the query.
func (q PreviewWorkoutPointsQuery) Validate() error {
	if q.UserID == "" {
		return shared.ErrEmptyUserID
	}
	return nil
}

// WorkoutPreviewDTO is the projected outcome.
type WorkoutPreviewDTO struct {
	Score           scoring.WorkoutScore `json:"score"`
	ProjectedStreak int                  `json:"projected_streak"`
	Transition      streak.Transition    `json:"transition"`
	IsFirstToday    bool                 `json:"is_first_today"`
	Milestone       *streak.Milestone    `json:"milestone,omitempty"`
}

// PreviewWorkoutPointsHandler handles PreviewWorkoutPointsQuery.
type PreviewWorkoutPointsHandler struct {
	streakRepo streak.Repository
	policy     streak.Policy
	location   *time.Location
	clock      func() time.Time
}

// NewPreviewWorkoutPointsHandler creates a new handler.
func NewPreviewWorkoutPointsHandler(streakRepo streak.Repository, policy streak.Policy, location *time.Location) *PreviewWorkoutPointsHandler {
	if location == nil {
		location = timeutil.DefaultLocation
	}
	return &PreviewWorkoutPointsHandler{
		streakRepo: streakRepo,
		policy:     policy,
		location:   location,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the query.
func (h *PreviewWorkoutPointsHandler) Handle(ctx context.Context, q PreviewWorkoutPointsQuery) (*WorkoutPreviewDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	userID := shared.UserID(q.UserID)
	at := q.At
	if at.IsZero() {
		at = h.clock()
	}

	st, err := h.streakRepo.Get(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("preview: failed to load streak: %w", err)
		}
		st = streak.NewState(userID, h.policy.MaxFreezes)
	}

	date := timeutil.CalendarDate(at, h.location)
	firstToday := q.FirstTodayBonus && st.FirstActivityOn(date)
	next := h.policy.Apply(st, date, at)

	return &WorkoutPreviewDTO{
		Score:           scoring.CalculateWorkoutPoints(q.Drills, next.State.CurrentStreak, firstToday),
		ProjectedStreak: next.State.CurrentStreak,
		Transition:      next.Transition,
		IsFirstToday:    firstToday,
		Milestone:       next.Milestone,
	}, nil
}
