package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"stagevote/internal/ledger"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/sentinel"
)

// PostgresStore persists the vote ledger.
//
// The votes table carries
//
//	UNIQUE (competition_id, participant_id, voter_id, kind)
//
// which is the storage-level enforcement of the one-accepted-vote invariant.
// Append never updates or deletes; the table is insert-only.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, v ledger.Vote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO votes (id, competition_id, participant_id, voter_id, fingerprint, kind, cast_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(v.ID), uuid.UUID(v.CompetitionID), uuid.UUID(v.ParticipantID),
		uuid.UUID(v.VoterID), v.Fingerprint, string(v.Kind), v.CastAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("append vote: %w", err)
	}
	return nil
}

// net counts casts as +1 and retractions as -1 in SQL.
const netExpr = `COALESCE(SUM(CASE WHEN kind = 'retraction' THEN -1 ELSE 1 END), 0)`

func (s *PostgresStore) Count(ctx context.Context, competitionID domain.CompetitionID, participantID domain.ParticipantID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT `+netExpr+` FROM votes WHERE competition_id = $1 AND participant_id = $2`,
		uuid.UUID(competitionID), uuid.UUID(participantID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountAll(ctx context.Context, competitionID domain.CompetitionID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT `+netExpr+` FROM votes WHERE competition_id = $1`,
		uuid.UUID(competitionID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count all votes: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Counts(ctx context.Context, competitionID domain.CompetitionID) (map[domain.ParticipantID]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT participant_id, `+netExpr+`
		 FROM votes WHERE competition_id = $1
		 GROUP BY participant_id`,
		uuid.UUID(competitionID))
	if err != nil {
		return nil, fmt.Errorf("count votes per participant: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ParticipantID]int)
	for rows.Next() {
		var id uuid.UUID
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan vote count: %w", err)
		}
		counts[domain.ParticipantID(id)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vote counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) HasCast(ctx context.Context, competitionID domain.CompetitionID, participantID domain.ParticipantID, voterID domain.VoterID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM votes
			WHERE competition_id = $1 AND participant_id = $2 AND voter_id = $3 AND kind = 'cast'
		)`,
		uuid.UUID(competitionID), uuid.UUID(participantID), uuid.UUID(voterID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existing cast: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CountCastsByVoter(ctx context.Context, competitionID domain.CompetitionID, voterID domain.VoterID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE competition_id = $1 AND voter_id = $2 AND kind = 'cast'`,
		uuid.UUID(competitionID), uuid.UUID(voterID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count voter casts: %w", err)
	}
	return count, nil
}
