package participant

import (
	"context"

	"stagevote/pkg/domain"
)

// Store abstracts participant persistence so services can run against the
// in-memory implementation in tests and PostgreSQL in production.
type Store interface {
	// Save inserts a new participant. Returns sentinel.ErrConflict when the
	// user already has an entry in the competition.
	Save(ctx context.Context, p Participant) error

	FindByID(ctx context.Context, id domain.ParticipantID) (Participant, error)

	FindByCompetitionAndUser(ctx context.Context, competitionID domain.CompetitionID, userID domain.UserID) (Participant, error)

	// ListByCompetition returns all participants ordered by application time,
	// earliest first. The ordering is part of the contract: the leaderboard
	// tie-break depends on it.
	ListByCompetition(ctx context.Context, competitionID domain.CompetitionID) ([]Participant, error)

	// CountApproved returns how many approved participants the competition
	// has. Opening voting requires at least one.
	CountApproved(ctx context.Context, competitionID domain.CompetitionID) (int, error)

	UpdateStatus(ctx context.Context, id domain.ParticipantID, status Status) error
}
