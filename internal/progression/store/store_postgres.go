package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"stagevote/internal/progression"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/sentinel"
)

// PostgresStore persists advancements. The table carries
//
//	UNIQUE (source_competition_id, participant_id)
//
// so a finalize retry that re-saves the same winner set collapses into
// conflicts instead of double-advancing.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, a progression.Advancement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO advancements
			(id, source_competition_id, participant_id, destination_competition_id,
			 destination_participant_id, rank_at_source, vote_count, advanced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(a.ID), uuid.UUID(a.SourceCompetitionID), uuid.UUID(a.ParticipantID),
		uuid.UUID(a.DestinationCompetitionID), uuid.UUID(a.DestinationParticipantID),
		a.Rank, a.VoteCount, a.AdvancedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save advancement: %w", err)
	}
	return nil
}

const selectAdvancement = `
	SELECT id, source_competition_id, participant_id, destination_competition_id,
	       destination_participant_id, rank_at_source, vote_count, advanced_at
	FROM advancements`

func (s *PostgresStore) ListBySource(ctx context.Context, sourceID domain.CompetitionID) ([]progression.Advancement, error) {
	rows, err := s.db.QueryContext(ctx,
		selectAdvancement+` WHERE source_competition_id = $1 ORDER BY rank_at_source`,
		uuid.UUID(sourceID))
	if err != nil {
		return nil, fmt.Errorf("list advancements by source: %w", err)
	}
	defer rows.Close()
	return collectAdvancements(rows)
}

func (s *PostgresStore) ListByDestination(ctx context.Context, destinationID domain.CompetitionID) ([]progression.Advancement, error) {
	rows, err := s.db.QueryContext(ctx,
		selectAdvancement+` WHERE destination_competition_id = $1 ORDER BY rank_at_source`,
		uuid.UUID(destinationID))
	if err != nil {
		return nil, fmt.Errorf("list advancements by destination: %w", err)
	}
	defer rows.Close()
	return collectAdvancements(rows)
}

func collectAdvancements(rows *sql.Rows) ([]progression.Advancement, error) {
	var out []progression.Advancement
	for rows.Next() {
		var (
			a                               progression.Advancement
			id, srcID, partID, dstID, dstPartID uuid.UUID
		)
		if err := rows.Scan(&id, &srcID, &partID, &dstID, &dstPartID, &a.Rank, &a.VoteCount, &a.AdvancedAt); err != nil {
			return nil, fmt.Errorf("scan advancement: %w", err)
		}
		a.ID = domain.AdvancementID(id)
		a.SourceCompetitionID = domain.CompetitionID(srcID)
		a.ParticipantID = domain.ParticipantID(partID)
		a.DestinationCompetitionID = domain.CompetitionID(dstID)
		a.DestinationParticipantID = domain.ParticipantID(dstPartID)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate advancements: %w", err)
	}
	return out, nil
}
