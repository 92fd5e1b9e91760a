package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/powlax/gamification-engine/internal/domain/ledger"
	"github.com/powlax/gamification-engine/internal/domain/scoring"
	"github.com/powlax/gamification-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements ledger.Repository for PostgreSQL.
type LedgerRepository struct {
	conn *Connection
}

var _ ledger.Repository = (*LedgerRepository)(nil)

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

const totalsColumns = `lax_credit, attack_tokens, defense_dollars, midfield_medals,
	rebound_rewards, lax_iq_points, flex_points`

func scanTotals(row pgx.Row) (scoring.CategoryPoints, error) {
	var p scoring.CategoryPoints
	err := row.Scan(
		&p.LaxCredit,
		&p.AttackTokens,
		&p.DefenseDollars,
		&p.MidfieldMedals,
		&p.ReboundRewards,
		&p.LaxIQPoints,
		&p.FlexPoints,
	)
	return p, err
}

// Totals returns the user's cumulative points; zero for unknown users.
func (r *LedgerRepository) Totals(ctx context.Context, userID shared.UserID) (scoring.CategoryPoints, error) {
	query := `SELECT ` + totalsColumns + ` FROM user_point_totals WHERE user_id = $1`

	totals, err := scanTotals(r.conn.QueryRow(ctx, query, userID.String()))
	if err != nil {
		if IsNoRows(err) {
			return scoring.CategoryPoints{}, nil
		}
		return scoring.CategoryPoints{}, fmt.Errorf("failed to get totals: %w", err)
	}
	return totals, nil
}

// FindWorkout returns the workout entry for a session.
func (r *LedgerRepository) FindWorkout(ctx context.Context, userID shared.UserID, sessionID shared.SessionID) (*ledger.Entry, error) {
	query := `
		SELECT id::text, user_id, session_id, source, points, COALESCE(fingerprint, ''), created_at
		FROM points_ledger
		WHERE user_id = $1 AND session_id = $2 AND source = $3
	`

	e, err := scanEntry(r.conn.QueryRow(ctx, query, userID.String(), sessionID.String(), string(ledger.SourceWorkout)))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("ledger", "FindWorkout", shared.ErrNotFound, "session not recorded", nil)
		}
		return nil, fmt.Errorf("failed to find workout: %w", err)
	}
	return e, nil
}

// History returns a user's newest ledger entries.
func (r *LedgerRepository) History(ctx context.Context, userID shared.UserID, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id::text, user_id, session_id, source, points, COALESCE(fingerprint, ''), created_at
		FROM points_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC, source
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// CommitWorkout writes the entries, the streak and the running totals in one
// transaction. A replayed session hits the unique key and rolls everything back.
func (r *LedgerRepository) CommitWorkout(ctx context.Context, c ledger.WorkoutCommit) (scoring.CategoryPoints, error) {
	var (
		userID  shared.UserID
		credit  scoring.CategoryPoints
		totals  scoring.CategoryPoints
		version int64
	)
	for _, e := range c.Entries {
		userID = e.UserID
		credit = credit.Add(e.Points)
	}
	if c.Streak != nil {
		version = c.Streak.Version
		if userID == "" {
			userID = c.Streak.UserID
		}
	}

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, e := range c.Entries {
			if err := insertEntry(ctx, tx, e); err != nil {
				return err
			}
		}

		if c.Streak != nil {
			if err := saveStreak(ctx, tx, c.Streak); err != nil {
				return err
			}
		}

		var err error
		if len(c.Entries) == 0 {
			totals, err = scanTotals(tx.QueryRow(ctx,
				`SELECT `+totalsColumns+` FROM user_point_totals WHERE user_id = $1`, userID.String()))
			if IsNoRows(err) {
				return nil
			}
			return err
		}
		totals, err = addTotals(ctx, tx, userID, credit)
		return err
	})
	if err != nil {
		// The version was bumped inside the rolled-back transaction.
		if c.Streak != nil {
			c.Streak.Version = version
		}
		return scoring.CategoryPoints{}, err
	}
	return totals, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, e ledger.Entry) error {
	points, err := json.Marshal(e.Points)
	if err != nil {
		return fmt.Errorf("failed to marshal points: %w", err)
	}

	var fingerprint *string
	if e.Fingerprint != "" {
		fingerprint = &e.Fingerprint
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO points_ledger (id, user_id, session_id, source, points, total_points, fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, session_id, source) DO NOTHING
	`,
		e.ID, e.UserID.String(), e.SessionID.String(), string(e.Source),
		points, e.Points.Sum(), fingerprint, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrDuplicateSession
	}
	return nil
}

func addTotals(ctx context.Context, tx pgx.Tx, userID shared.UserID, p scoring.CategoryPoints) (scoring.CategoryPoints, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO user_point_totals (user_id, `+totalsColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			lax_credit = user_point_totals.lax_credit + EXCLUDED.lax_credit,
			attack_tokens = user_point_totals.attack_tokens + EXCLUDED.attack_tokens,
			defense_dollars = user_point_totals.defense_dollars + EXCLUDED.defense_dollars,
			midfield_medals = user_point_totals.midfield_medals + EXCLUDED.midfield_medals,
			rebound_rewards = user_point_totals.rebound_rewards + EXCLUDED.rebound_rewards,
			lax_iq_points = user_point_totals.lax_iq_points + EXCLUDED.lax_iq_points,
			flex_points = user_point_totals.flex_points + EXCLUDED.flex_points,
			updated_at = NOW()
		RETURNING `+totalsColumns,
		userID.String(),
		p.LaxCredit, p.AttackTokens, p.DefenseDollars, p.MidfieldMedals,
		p.ReboundRewards, p.LaxIQPoints, p.FlexPoints,
	)

	totals, err := scanTotals(row)
	if err != nil {
		return scoring.CategoryPoints{}, fmt.Errorf("failed to update totals: %w", err)
	}
	return totals, nil
}

func scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var (
		e      ledger.Entry
		points []byte
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Source, &points, &e.Fingerprint, &e.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(points, &e.Points); err != nil {
		return nil, fmt.Errorf("failed to unmarshal points: %w", err)
	}
	return &e, nil
}
