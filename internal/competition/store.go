package competition

import (
	"context"

	"stagevote/pkg/domain"
)

// Store is interface-driven so the in-memory and PostgreSQL implementations
// are interchangeable and services stay testable with fresh stores per test.
type Store interface {
	// Save inserts a new competition. Returns sentinel.ErrConflict when the
	// ID already exists.
	Save(ctx context.Context, c Competition) error

	FindByID(ctx context.Context, id domain.CompetitionID) (Competition, error)

	// ListSiblings returns competitions sharing the given parent.
	ListSiblings(ctx context.Context, parentID domain.CompetitionID) ([]Competition, error)

	// ListByStatus returns competitions in the given status; the scheduler
	// sweeps these at window boundaries.
	ListByStatus(ctx context.Context, status Status) ([]Competition, error)

	// FindDestination returns a non-finalized competition at the given tier
	// and country ("" for global) that advancing participants can attach to.
	// Returns sentinel.ErrNotFound when none exists.
	FindDestination(ctx context.Context, tier Tier, country string) (Competition, error)

	// TransitionStatus compare-and-swaps the status from `from` to `to`.
	// Returns sentinel.ErrInvalidState when the stored status is not `from`,
	// keeping transitions monotonic under concurrent writers.
	TransitionStatus(ctx context.Context, id domain.CompetitionID, from, to Status) error

	// SetParent links a competition to its destination parent. Used when
	// finalize creates the destination lazily.
	SetParent(ctx context.Context, id, parentID domain.CompetitionID) error
}
