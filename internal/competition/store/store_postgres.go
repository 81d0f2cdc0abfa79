package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"stagevote/internal/competition"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/sentinel"
)

// PostgresStore persists competitions. Status transitions use a conditional
// UPDATE so the compare-and-swap holds across replicas, not only in-process.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStore) Save(ctx context.Context, c competition.Competition) error {
	var parent any
	if c.ParentID != nil {
		parent = uuid.UUID(*c.ParentID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO competitions
			(id, name, tier, country, parent_id, status, window_start, window_end,
			 advancement_quota, allow_sibling_overlap, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(c.ID), c.Name, string(c.Tier), c.Country, parent, string(c.Status),
		c.Window.Start, c.Window.End, c.AdvancementQuota, c.AllowSiblingOverlap, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save competition: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.CompetitionID) (competition.Competition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, tier, country, parent_id, status, window_start, window_end,
		       advancement_quota, allow_sibling_overlap, created_at
		FROM competitions WHERE id = $1`, uuid.UUID(id))
	return scanCompetition(row)
}

func (s *PostgresStore) ListSiblings(ctx context.Context, parentID domain.CompetitionID) ([]competition.Competition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, tier, country, parent_id, status, window_start, window_end,
		       advancement_quota, allow_sibling_overlap, created_at
		FROM competitions WHERE parent_id = $1`, uuid.UUID(parentID))
	if err != nil {
		return nil, fmt.Errorf("list siblings: %w", err)
	}
	defer rows.Close()
	return collectCompetitions(rows)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status competition.Status) ([]competition.Competition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, tier, country, parent_id, status, window_start, window_end,
		       advancement_quota, allow_sibling_overlap, created_at
		FROM competitions WHERE status = $1`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	defer rows.Close()
	return collectCompetitions(rows)
}

func (s *PostgresStore) FindDestination(ctx context.Context, tier competition.Tier, country string) (competition.Competition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, tier, country, parent_id, status, window_start, window_end,
		       advancement_quota, allow_sibling_overlap, created_at
		FROM competitions
		WHERE tier = $1 AND country = $2 AND status <> $3
		ORDER BY created_at
		LIMIT 1`, string(tier), country, string(competition.StatusFinalized))
	return scanCompetition(row)
}

func (s *PostgresStore) TransitionStatus(ctx context.Context, id domain.CompetitionID, from, to competition.Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE competitions SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), uuid.UUID(id), string(from))
	if err != nil {
		return fmt.Errorf("transition status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition status: %w", err)
	}
	if affected == 0 {
		// Either the competition is missing or the CAS lost; distinguish so
		// callers can surface the right error.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM competitions WHERE id = $1)`, uuid.UUID(id),
		).Scan(&exists); err != nil {
			return fmt.Errorf("transition status: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) SetParent(ctx context.Context, id, parentID domain.CompetitionID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE competitions SET parent_id = $1 WHERE id = $2`,
		uuid.UUID(parentID), uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("set parent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set parent: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompetition(row rowScanner) (competition.Competition, error) {
	var (
		c       competition.Competition
		id      uuid.UUID
		tier    string
		status  string
		parent  uuid.NullUUID
		country sql.NullString
	)
	err := row.Scan(&id, &c.Name, &tier, &country, &parent, &status,
		&c.Window.Start, &c.Window.End, &c.AdvancementQuota, &c.AllowSiblingOverlap, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return competition.Competition{}, sentinel.ErrNotFound
		}
		return competition.Competition{}, fmt.Errorf("scan competition: %w", err)
	}
	c.ID = domain.CompetitionID(id)
	c.Tier = competition.Tier(tier)
	c.Status = competition.Status(status)
	c.Country = country.String
	if parent.Valid {
		p := domain.CompetitionID(parent.UUID)
		c.ParentID = &p
	}
	return c, nil
}

func collectCompetitions(rows *sql.Rows) ([]competition.Competition, error) {
	var out []competition.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate competitions: %w", err)
	}
	return out, nil
}
