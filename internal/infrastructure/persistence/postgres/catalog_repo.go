package postgres

import (
	"context"
	"fmt"

	"github.com/powlax/gamification-engine/internal/domain/badge"
	"github.com/powlax/gamification-engine/internal/domain/rank"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository serves badge and rank definitions from PostgreSQL.
type CatalogRepository struct {
	conn *Connection
}

var (
	_ badge.Catalog = (*CatalogRepository)(nil)
	_ rank.Catalog  = (*CatalogRepository)(nil)
)

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// BadgeDefinitions returns the badge catalog ordered by key.
func (r *CatalogRepository) BadgeDefinitions(ctx context.Context) ([]badge.Definition, error) {
	query := `
		SELECT key, name, category, earned_by_type, points_type_required,
		       points_required, maximum_earnings, is_hidden, workout_requirement
		FROM badge_definitions
		ORDER BY key
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query badge definitions: %w", err)
	}
	defer rows.Close()

	var out []badge.Definition
	for rows.Next() {
		var d badge.Definition
		if err := rows.Scan(
			&d.Key, &d.Name, &d.Category, &d.EarnedByType, &d.PointsTypeRequired,
			&d.PointsRequired, &d.MaximumEarnings, &d.IsHidden, &d.WorkoutRequirement,
		); err != nil {
			return nil, fmt.Errorf("failed to scan badge definition: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RankDefinitions returns the ladder ordered by tier, or the default ladder
// when the table is empty.
func (r *CatalogRepository) RankDefinitions(ctx context.Context) ([]rank.Definition, error) {
	rows, err := r.conn.Query(ctx, `SELECT tier, threshold_points, title FROM rank_definitions ORDER BY tier`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rank definitions: %w", err)
	}
	defer rows.Close()

	var out []rank.Definition
	for rows.Next() {
		var d rank.Definition
		if err := rows.Scan(&d.Tier, &d.ThresholdPoints, &d.Title); err != nil {
			return nil, fmt.Errorf("failed to scan rank definition: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return rank.DefaultDefinitions(), nil
	}
	return out, nil
}

// UpsertBadgeDefinition adds or replaces a catalog entry. The key is
// normalized the same way evaluation normalizes it.
func (r *CatalogRepository) UpsertBadgeDefinition(ctx context.Context, d badge.Definition) error {
	d = d.Normalized()
	if err := d.Validate(); err != nil {
		return err
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO badge_definitions (
			key, name, category, earned_by_type, points_type_required,
			points_required, maximum_earnings, is_hidden, workout_requirement
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (key) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			earned_by_type = EXCLUDED.earned_by_type,
			points_type_required = EXCLUDED.points_type_required,
			points_required = EXCLUDED.points_required,
			maximum_earnings = EXCLUDED.maximum_earnings,
			is_hidden = EXCLUDED.is_hidden,
			workout_requirement = EXCLUDED.workout_requirement
	`,
		d.Key, d.Name, d.Category, string(d.EarnedByType), d.PointsTypeRequired,
		d.PointsRequired, d.MaximumEarnings, d.IsHidden, d.WorkoutRequirement,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert badge definition: %w", err)
	}
	return nil
}
