package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: STREAKS AND POINTS LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration001 = `
-- One row per user, written with an optimistic version check.
CREATE TABLE IF NOT EXISTS user_streaks (
    user_id VARCHAR(128) PRIMARY KEY,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    freeze_count INTEGER NOT NULL DEFAULT 2,
    last_freeze_used DATE,
    freezes_used INTEGER NOT NULL DEFAULT 0,
    total_workouts INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    version BIGINT NOT NULL DEFAULT 1,

    CONSTRAINT valid_streak CHECK (current_streak >= 0 AND current_streak <= longest_streak),
    CONSTRAINT valid_freezes CHECK (freeze_count >= 0),
    CONSTRAINT valid_workouts CHECK (total_workouts >= 0)
);

-- Every credit. The unique key makes a replayed session a no-op.
CREATE TABLE IF NOT EXISTS points_ledger (
    id UUID PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL,
    session_id VARCHAR(128) NOT NULL,
    source VARCHAR(32) NOT NULL,
    points JSONB NOT NULL,
    total_points BIGINT NOT NULL,
    fingerprint VARCHAR(64),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_points_ledger_session UNIQUE (user_id, session_id, source),
    CONSTRAINT valid_source CHECK (source IN ('workout', 'streak_milestone')),
    CONSTRAINT valid_total CHECK (total_points >= 0)
);

CREATE INDEX IF NOT EXISTS idx_points_ledger_user_created ON points_ledger(user_id, created_at DESC);

-- Running totals maintained in the same transaction as the ledger insert.
CREATE TABLE IF NOT EXISTS user_point_totals (
    user_id VARCHAR(128) PRIMARY KEY,
    lax_credit BIGINT NOT NULL DEFAULT 0,
    attack_tokens BIGINT NOT NULL DEFAULT 0,
    defense_dollars BIGINT NOT NULL DEFAULT 0,
    midfield_medals BIGINT NOT NULL DEFAULT 0,
    rebound_rewards BIGINT NOT NULL DEFAULT 0,
    lax_iq_points BIGINT NOT NULL DEFAULT 0,
    flex_points BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: BADGES AND RANKS
// ══════════════════════════════════════════════════════════════════════════════

const migration002 = `
CREATE TABLE IF NOT EXISTS badge_definitions (
    key VARCHAR(128) PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    category VARCHAR(100) NOT NULL DEFAULT '',
    earned_by_type VARCHAR(32) NOT NULL,
    points_type_required VARCHAR(32) NOT NULL DEFAULT '',
    points_required BIGINT NOT NULL DEFAULT 0,
    maximum_earnings INTEGER NOT NULL DEFAULT 1,
    is_hidden BOOLEAN NOT NULL DEFAULT FALSE,
    workout_requirement INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- earn_count only grows, one conditional upsert at a time.
CREATE TABLE IF NOT EXISTS user_badges (
    id UUID PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL,
    badge_key VARCHAR(128) NOT NULL,
    earn_count INTEGER NOT NULL DEFAULT 1,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_user_badges UNIQUE (user_id, badge_key),
    CONSTRAINT valid_earn_count CHECK (earn_count >= 1)
);

CREATE INDEX IF NOT EXISTS idx_user_badges_user ON user_badges(user_id);

CREATE TABLE IF NOT EXISTS rank_definitions (
    tier INTEGER PRIMARY KEY,
    threshold_points BIGINT NOT NULL UNIQUE,
    title VARCHAR(100) NOT NULL
);

INSERT INTO rank_definitions (tier, threshold_points, title) VALUES
    (1, 0, 'Rookie'),
    (2, 100, 'Junior Varsity'),
    (3, 500, 'Varsity'),
    (4, 1000, 'All-Conference'),
    (5, 2500, 'All-State'),
    (6, 5000, 'All-American'),
    (7, 10000, 'Elite'),
    (8, 25000, 'Legend'),
    (9, 50000, 'Hall of Fame'),
    (10, 100000, 'GOAT')
ON CONFLICT (tier) DO NOTHING;

CREATE TABLE IF NOT EXISTS user_ranks (
    user_id VARCHAR(128) PRIMARY KEY,
    total_points BIGINT NOT NULL DEFAULT 0,
    current_tier INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    version BIGINT NOT NULL DEFAULT 1,

    CONSTRAINT valid_rank CHECK (total_points >= 0 AND current_tier >= 0)
);
`
