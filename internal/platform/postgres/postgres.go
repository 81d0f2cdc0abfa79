// Package postgres opens the engine's PostgreSQL handle and owns the schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver

	"stagevote/internal/platform/config"
)

// Open connects via the pgx stdlib driver and verifies the connection.
// Returns (nil, nil) when no DSN is configured so callers can fall back to
// in-memory stores.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// EnsureSchema creates all tables the engine needs. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS competitions (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    tier TEXT NOT NULL CHECK (tier IN ('local', 'national', 'global')),
    country TEXT NOT NULL DEFAULT '',
    parent_id UUID REFERENCES competitions(id),
    status TEXT NOT NULL CHECK (status IN
        ('draft', 'open_for_participants', 'voting_open', 'voting_closed', 'finalized')),
    window_start TIMESTAMPTZ NOT NULL,
    window_end TIMESTAMPTZ NOT NULL,
    advancement_quota INT NOT NULL DEFAULT 0,
    allow_sibling_overlap BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_competitions_parent ON competitions(parent_id);
CREATE INDEX IF NOT EXISTS idx_competitions_status ON competitions(status);
CREATE INDEX IF NOT EXISTS idx_competitions_tier_country ON competitions(tier, country);

-- At most one active advancement destination per (tier, country): concurrent
-- sibling finalizes racing to create the same destination resolve here, one
-- insert winning and the loser re-finding it. Local competitions are
-- organizer-created in multiples and never an advancement destination.
CREATE UNIQUE INDEX IF NOT EXISTS uniq_competitions_active_destination
    ON competitions (tier, country)
    WHERE status <> 'finalized' AND tier <> 'local';

CREATE TABLE IF NOT EXISTS participants (
    id UUID PRIMARY KEY,
    competition_id UUID NOT NULL REFERENCES competitions(id),
    user_id UUID NOT NULL,
    country TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'withdrawn')),
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (competition_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_participants_competition ON participants(competition_id);

-- The ledger is insert-only. The unique index is the authoritative
-- enforcement of one accepted vote per (competition, participant, voter).
CREATE TABLE IF NOT EXISTS votes (
    id UUID PRIMARY KEY,
    competition_id UUID NOT NULL REFERENCES competitions(id),
    participant_id UUID NOT NULL REFERENCES participants(id),
    voter_id UUID NOT NULL,
    fingerprint TEXT NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('cast', 'retraction')),
    cast_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (competition_id, participant_id, voter_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_votes_competition ON votes(competition_id);
CREATE INDEX IF NOT EXISTS idx_votes_voter ON votes(competition_id, voter_id);

CREATE TABLE IF NOT EXISTS advancements (
    id UUID PRIMARY KEY,
    source_competition_id UUID NOT NULL REFERENCES competitions(id),
    participant_id UUID NOT NULL REFERENCES participants(id),
    destination_competition_id UUID NOT NULL REFERENCES competitions(id),
    destination_participant_id UUID NOT NULL REFERENCES participants(id),
    rank_at_source INT NOT NULL,
    vote_count INT NOT NULL DEFAULT 0,
    advanced_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (source_competition_id, participant_id)
);

CREATE INDEX IF NOT EXISTS idx_advancements_source ON advancements(source_competition_id);
CREATE INDEX IF NOT EXISTS idx_advancements_destination ON advancements(destination_competition_id);
`
