package postgres

import (
	"context"
	"fmt"

	"github.com/powlax/gamification-engine/internal/domain/rank"
	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RankRepository implements rank.Repository for PostgreSQL.
type RankRepository struct {
	conn *Connection
}

var _ rank.Repository = (*RankRepository)(nil)

// NewRankRepository creates a new RankRepository.
func NewRankRepository(conn *Connection) *RankRepository {
	return &RankRepository{conn: conn}
}

// Get returns the stored record.
func (r *RankRepository) Get(ctx context.Context, userID shared.UserID) (*rank.UserRank, error) {
	query := `
		SELECT user_id, total_points, current_tier, updated_at, version
		FROM user_ranks
		WHERE user_id = $1
	`

	var ur rank.UserRank
	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(
		&ur.UserID, &ur.TotalPoints, &ur.CurrentTier, &ur.UpdatedAt, &ur.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("rank", "Find", shared.ErrNotFound, "rank not found", nil)
		}
		return nil, fmt.Errorf("failed to get rank: %w", err)
	}
	return &ur, nil
}

// Save writes the record with an optimistic version check.
func (r *RankRepository) Save(ctx context.Context, ur *rank.UserRank) error {
	var (
		query string
		args  []interface{}
	)
	if ur.Version == 0 {
		query = `
			INSERT INTO user_ranks (user_id, total_points, current_tier, updated_at, version)
			VALUES ($1, $2, $3, $4, 1)
			ON CONFLICT (user_id) DO NOTHING
		`
		args = []interface{}{ur.UserID.String(), ur.TotalPoints, ur.CurrentTier, ur.UpdatedAt}
	} else {
		query = `
			UPDATE user_ranks SET
				total_points = $2,
				current_tier = $3,
				updated_at = $4,
				version = version + 1
			WHERE user_id = $1 AND version = $5
		`
		args = []interface{}{ur.UserID.String(), ur.TotalPoints, ur.CurrentTier, ur.UpdatedAt, ur.Version}
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to save rank: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRankVersion
	}

	ur.Version++
	return nil
}
