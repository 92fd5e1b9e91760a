package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/powlax/gamification-engine/internal/domain/shared"
	"github.com/powlax/gamification-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StreakRepository implements streak.Repository for PostgreSQL.
type StreakRepository struct {
	conn *Connection
}

var _ streak.Repository = (*StreakRepository)(nil)

// NewStreakRepository creates a new StreakRepository.
func NewStreakRepository(conn *Connection) *StreakRepository {
	return &StreakRepository{conn: conn}
}

// Get returns the stored state or shared.ErrStreakNotFound.
func (r *StreakRepository) Get(ctx context.Context, userID shared.UserID) (*streak.State, error) {
	return getStreak(ctx, r.conn, userID)
}

// Save writes the state with an optimistic version check.
func (r *StreakRepository) Save(ctx context.Context, state *streak.State) error {
	return saveStreak(ctx, r.conn, state)
}

func getStreak(ctx context.Context, q Querier, userID shared.UserID) (*streak.State, error) {
	query := `
		SELECT user_id, current_streak, longest_streak, last_activity_date,
		       freeze_count, last_freeze_used, freezes_used, total_workouts,
		       updated_at, version
		FROM user_streaks
		WHERE user_id = $1
	`

	var (
		st           streak.State
		lastActivity *time.Time
	)
	err := q.QueryRow(ctx, query, userID.String()).Scan(
		&st.UserID,
		&st.CurrentStreak,
		&st.LongestStreak,
		&lastActivity,
		&st.FreezeCount,
		&st.LastFreezeUsed,
		&st.FreezesUsed,
		&st.TotalWorkouts,
		&st.UpdatedAt,
		&st.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStreakNotFound
		}
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	if lastActivity != nil {
		st.LastActivityDate = lastActivity.UTC()
	}
	if st.LastFreezeUsed != nil {
		t := st.LastFreezeUsed.UTC()
		st.LastFreezeUsed = &t
	}
	return &st, nil
}

// saveStreak inserts (Version 0) or updates where the version matches, then
// bumps state.Version. Zero rows affected means another writer got there first.
func saveStreak(ctx context.Context, q Querier, state *streak.State) error {
	var lastActivity *time.Time
	if state.HasActivity() {
		lastActivity = &state.LastActivityDate
	}

	var (
		query string
		args  []interface{}
	)
	if state.Version == 0 {
		query = `
			INSERT INTO user_streaks (
				user_id, current_streak, longest_streak, last_activity_date,
				freeze_count, last_freeze_used, freezes_used, total_workouts,
				updated_at, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
			ON CONFLICT (user_id) DO NOTHING
		`
		args = []interface{}{
			state.UserID.String(), state.CurrentStreak, state.LongestStreak, lastActivity,
			state.FreezeCount, state.LastFreezeUsed, state.FreezesUsed, state.TotalWorkouts,
			state.UpdatedAt,
		}
	} else {
		query = `
			UPDATE user_streaks SET
				current_streak = $2,
				longest_streak = $3,
				last_activity_date = $4,
				freeze_count = $5,
				last_freeze_used = $6,
				freezes_used = $7,
				total_workouts = $8,
				updated_at = $9,
				version = version + 1
			WHERE user_id = $1 AND version = $10
		`
		args = []interface{}{
			state.UserID.String(), state.CurrentStreak, state.LongestStreak, lastActivity,
			state.FreezeCount, state.LastFreezeUsed, state.FreezesUsed, state.TotalWorkouts,
			state.UpdatedAt, state.Version,
		}
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStreakVersion
	}

	state.Version++
	return nil
}
