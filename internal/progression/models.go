// Package progression finalizes competitions and advances winners up the
// tier hierarchy.
package progression

import (
	"context"
	"time"

	"stagevote/pkg/domain"
)

// Advancement records one participant's promotion from a finalized source
// competition into its destination. One advancement per (source, participant);
// the storage constraint makes finalize retries idempotent.
type Advancement struct {
	ID                       domain.AdvancementID
	SourceCompetitionID      domain.CompetitionID
	DestinationCompetitionID domain.CompetitionID

	// ParticipantID identifies the entry in the source competition. The
	// destination holds a fresh participant record for the same user.
	ParticipantID            domain.ParticipantID
	DestinationParticipantID domain.ParticipantID

	Rank       int
	VoteCount  int
	AdvancedAt time.Time
}

// Result is the outcome of a finalize call.
type Result struct {
	CompetitionID domain.CompetitionID

	// AlreadyFinalized is set when this call found the work done and
	// returned the existing records instead of repeating it.
	AlreadyFinalized bool

	// Winners are ordered by source rank. Empty when the competition had no
	// eligible participants or a zero advancement quota.
	Winners []Advancement

	// DestinationID is set when winners advanced somewhere. Nil for
	// terminal-tier competitions and empty winner sets.
	DestinationID *domain.CompetitionID

	FinalizedAt time.Time
}

// Store persists advancement records.
type Store interface {
	// Save inserts an advancement. Returns sentinel.ErrConflict when the
	// (source, participant) pair is already recorded.
	Save(ctx context.Context, a Advancement) error

	// ListBySource returns advancements out of a competition, ordered by rank.
	ListBySource(ctx context.Context, sourceID domain.CompetitionID) ([]Advancement, error)

	// ListByDestination returns advancements into a competition, ordered by rank.
	ListByDestination(ctx context.Context, destinationID domain.CompetitionID) ([]Advancement, error)
}
