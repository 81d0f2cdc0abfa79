// Package ledger is the authoritative, append-only record of accepted votes.
//
// Counts are always derivable from the ledger alone; everything else in the
// engine (participant vote_count, leaderboards) is a projection over it.
package ledger

import (
	"context"
	"time"

	"stagevote/pkg/domain"
)

// Kind distinguishes ledger entry types. A retraction never mutates the cast
// it supersedes; it is a second append-only record against the same tuple.
type Kind string

const (
	KindCast       Kind = "cast"
	KindRetraction Kind = "retraction"
)

// Vote is one immutable ledger entry.
type Vote struct {
	ID            domain.VoteID
	CompetitionID domain.CompetitionID
	ParticipantID domain.ParticipantID
	VoterID       domain.VoterID

	// Fingerprint is the keyed hash of the voter's IP, never the raw address.
	Fingerprint string

	Kind   Kind
	CastAt time.Time
}

// Store is the persistence contract for the ledger.
//
// Append enforces uniqueness of (competition_id, participant_id, voter_id,
// kind) at the storage layer. This is the final line of defense against the
// race between FraudGuard's duplicate pre-check and the write: two concurrent
// submissions for the same tuple resolve to exactly one accepted append and
// one sentinel.ErrConflict.
type Store interface {
	Append(ctx context.Context, v Vote) error

	// Count returns accepted casts minus retractions for one participant.
	Count(ctx context.Context, competitionID domain.CompetitionID, participantID domain.ParticipantID) (int, error)

	// CountAll returns the net accepted votes across the competition.
	CountAll(ctx context.Context, competitionID domain.CompetitionID) (int, error)

	// Counts returns the net count per participant, the leaderboard's input.
	Counts(ctx context.Context, competitionID domain.CompetitionID) (map[domain.ParticipantID]int, error)

	// HasCast reports whether the voter already has an accepted cast for the
	// participant. FraudGuard's duplicate pre-check; advisory only, the
	// Append constraint is authoritative.
	HasCast(ctx context.Context, competitionID domain.CompetitionID, participantID domain.ParticipantID, voterID domain.VoterID) (bool, error)

	// CountCastsByVoter returns how many distinct participants the voter has
	// an accepted cast for in the competition. Drives the optional
	// one-vote-total-per-competition policy.
	CountCastsByVoter(ctx context.Context, competitionID domain.CompetitionID, voterID domain.VoterID) (int, error)
}
