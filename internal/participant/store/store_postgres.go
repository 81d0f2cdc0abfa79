package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"stagevote/internal/participant"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/sentinel"
)

// PostgresStore persists participants. The participants table carries a
// UNIQUE (competition_id, user_id) constraint; Save surfaces its violation as
// sentinel.ErrConflict so the idempotent advancement path can treat it as
// already-created.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) Save(ctx context.Context, p participant.Participant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (id, competition_id, user_id, country, status, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(p.ID), uuid.UUID(p.CompetitionID), uuid.UUID(p.UserID),
		p.Country, string(p.Status), p.AppliedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ParticipantID) (participant.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, competition_id, user_id, country, status, applied_at
		FROM participants WHERE id = $1`, uuid.UUID(id))
	return scanParticipant(row)
}

func (s *PostgresStore) FindByCompetitionAndUser(ctx context.Context, competitionID domain.CompetitionID, userID domain.UserID) (participant.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, competition_id, user_id, country, status, applied_at
		FROM participants WHERE competition_id = $1 AND user_id = $2`,
		uuid.UUID(competitionID), uuid.UUID(userID))
	return scanParticipant(row)
}

func (s *PostgresStore) ListByCompetition(ctx context.Context, competitionID domain.CompetitionID) ([]participant.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, competition_id, user_id, country, status, applied_at
		FROM participants WHERE competition_id = $1
		ORDER BY applied_at, id`, uuid.UUID(competitionID))
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []participant.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountApproved(ctx context.Context, competitionID domain.CompetitionID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM participants
		WHERE competition_id = $1 AND status = $2`,
		uuid.UUID(competitionID), string(participant.StatusApproved),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count approved: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id domain.ParticipantID, status participant.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE participants SET status = $1 WHERE id = $2`,
		string(status), uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("update participant status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update participant status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (participant.Participant, error) {
	var (
		p       participant.Participant
		id      uuid.UUID
		comp    uuid.UUID
		user    uuid.UUID
		status  string
		country sql.NullString
	)
	err := row.Scan(&id, &comp, &user, &country, &status, &p.AppliedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return participant.Participant{}, sentinel.ErrNotFound
		}
		return participant.Participant{}, fmt.Errorf("scan participant: %w", err)
	}
	p.ID = domain.ParticipantID(id)
	p.CompetitionID = domain.CompetitionID(comp)
	p.UserID = domain.UserID(user)
	p.Country = country.String
	p.Status = participant.Status(status)
	return p, nil
}
