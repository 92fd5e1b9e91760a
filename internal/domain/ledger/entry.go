// Package ledger records every points credit a user receives. Cumulative
// totals are the sum of entries; one workout entry exists per session.
package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
)

// Source says why points were credited.
type Source string

const (
	SourceWorkout         Source = "workout"
	SourceStreakMilestone Source = "streak_milestone"
)

// Entry is one credit. (UserID, SessionID, Source) is unique.
type Entry struct {
	ID          string                 `json:"id"`
	UserID      shared.UserID          `json:"user_id"`
	SessionID   shared.SessionID       `json:"session_id"`
	Source      Source                 `json:"source"`
	Points      scoring.CategoryPoints `json:"points"`
	Fingerprint string                 `json:"fingerprint,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewEntry creates an entry with a fresh ID.
func NewEntry(userID shared.UserID, sessionID shared.SessionID, source Source, points scoring.CategoryPoints, at time.Time) Entry {
	return Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Source:    source,
		Points:    points,
		CreatedAt: at,
	}
}

// Fingerprint hashes the submitted drill list so a replayed session can be
// compared with the one originally scored.
func Fingerprint(userID shared.UserID, sessionID shared.SessionID, drills []scoring.Drill) (string, error) {
	payload, err := json.Marshal(struct {
		UserID    shared.UserID    `json:"u"`
		SessionID shared.SessionID `json:"s"`
		Drills    []scoring.Drill  `json:"d"`
	}{userID, sessionID, drills})
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// WorkoutCommit is everything one completion writes atomically: the ledger
// entries keyed by session and the new streak state.
type WorkoutCommit struct {
	Streak  *streak.State
	Entries []Entry
}

// Repository persists ledger entries and cumulative totals.
type Repository interface {
	// Totals returns the user's cumulative points; zero for unknown users.
	Totals(ctx context.Context, userID shared.UserID) (scoring.CategoryPoints, error)

	// FindWorkout returns the workout entry for a session or an error
	// matching shared.ErrNotFound.
	FindWorkout(ctx context.Context, userID shared.UserID, sessionID shared.SessionID) (*Entry, error)

	// CommitWorkout writes the entries and saves the streak state in one
	// transaction. It fails with shared.ErrDuplicateSession when the
	// session's workout entry already exists and with shared.ErrStreakVersion
	// when the streak version is stale; in both cases nothing is written.
	// On success c.Streak.Version is incremented and the new totals returned.
	CommitWorkout(ctx context.Context, c WorkoutCommit) (scoring.CategoryPoints, error)
}
