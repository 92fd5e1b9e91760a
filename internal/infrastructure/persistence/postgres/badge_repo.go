package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/powlax/gamification-engine/internal/domain/badge"
	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements badge.Repository for PostgreSQL.
type BadgeRepository struct {
	conn *Connection
}

var _ badge.Repository = (*BadgeRepository)(nil)

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

// ListByUser returns the user's earned badges sorted by key.
func (r *BadgeRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]badge.UserBadge, error) {
	query := `
		SELECT id::text, user_id, badge_key, earn_count, earned_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY badge_key
	`

	rows, err := r.conn.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query user badges: %w", err)
	}
	defer rows.Close()

	out := make([]badge.UserBadge, 0)
	for rows.Next() {
		ub, err := scanUserBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user badge: %w", err)
		}
		out = append(out, *ub)
	}
	return out, rows.Err()
}

// Award increments earn_count by one while it is below req.Limit. The insert,
// the limit check and the increment are one statement, so concurrent awards
// can never push earn_count past the limit.
func (r *BadgeRepository) Award(ctx context.Context, req badge.AwardRequest) (*badge.UserBadge, bool, error) {
	if req.Limit < 1 {
		return nil, false, nil
	}

	query := `
		INSERT INTO user_badges (id, user_id, badge_key, earn_count, earned_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (user_id, badge_key) DO UPDATE SET
			earn_count = user_badges.earn_count + 1,
			earned_at = EXCLUDED.earned_at
		WHERE user_badges.earn_count < $5
		RETURNING id::text, user_id, badge_key, earn_count, earned_at
	`

	ub, err := scanUserBadge(r.conn.QueryRow(ctx, query,
		uuid.NewString(), req.UserID.String(), req.BadgeKey, req.At, req.Limit))
	if err == nil {
		return ub, true, nil
	}
	if !IsNoRows(err) {
		return nil, false, fmt.Errorf("failed to award badge: %w", err)
	}

	// The row exists and is already at the limit.
	current, err := scanUserBadge(r.conn.QueryRow(ctx, `
		SELECT id::text, user_id, badge_key, earn_count, earned_at
		FROM user_badges
		WHERE user_id = $1 AND badge_key = $2
	`, req.UserID.String(), req.BadgeKey))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read capped badge: %w", err)
	}
	return current, false, nil
}

func scanUserBadge(row pgx.Row) (*badge.UserBadge, error) {
	var ub badge.UserBadge
	if err := row.Scan(&ub.ID, &ub.UserID, &ub.BadgeKey, &ub.EarnCount, &ub.EarnedAt); err != nil {
		return nil, err
	}
	return &ub, nil
}
