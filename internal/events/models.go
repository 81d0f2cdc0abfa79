// Package events carries the engine's typed outbound events.
//
// Events are emitted after the durable write they describe (emit-after-commit)
// so consumers never observe speculative state. Delivery to external sinks is
// best-effort notification/audit; the ledger remains the source of truth.
package events

import (
	"time"

	"github.com/google/uuid"

	"stagevote/pkg/domain"
)

// Type enumerates the event kinds the engine emits.
type Type string

const (
	TypeVoteAccepted         Type = "vote_accepted"
	TypeVoteRejected         Type = "vote_rejected"
	TypeParticipantAdvanced  Type = "participant_advanced"
	TypeCompetitionFinalized Type = "competition_finalized"
)

// Event is the transport-agnostic envelope. Fields are populated per type;
// unused fields stay zero and are omitted on the wire. The ID fields are
// UUID array types, so they need omitzero; omitempty never fires for arrays.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	CompetitionID domain.CompetitionID `json:"competition_id"`
	ParticipantID domain.ParticipantID `json:"participant_id,omitzero"`
	VoterID       domain.VoterID       `json:"voter_id,omitzero"`

	Reason   string `json:"reason,omitempty"`
	NewCount int    `json:"new_count,omitempty"`

	Winners           []domain.ParticipantID `json:"winners,omitempty"`
	FromCompetitionID domain.CompetitionID   `json:"from_competition_id,omitzero"`
	ToCompetitionID   domain.CompetitionID   `json:"to_competition_id,omitzero"`
}

func newEvent(t Type, competitionID domain.CompetitionID, occurredAt time.Time) Event {
	return Event{
		ID:            uuid.New(),
		Type:          t,
		OccurredAt:    occurredAt,
		CompetitionID: competitionID,
	}
}

// VoteAccepted reports a durably appended vote and the resulting count.
func VoteAccepted(competitionID domain.CompetitionID, participantID domain.ParticipantID, newCount int, at time.Time) Event {
	e := newEvent(TypeVoteAccepted, competitionID, at)
	e.ParticipantID = participantID
	e.NewCount = newCount
	return e
}

// VoteRejected reports an admission rejection and its reason.
func VoteRejected(competitionID domain.CompetitionID, participantID domain.ParticipantID, voterID domain.VoterID, reason string, at time.Time) Event {
	e := newEvent(TypeVoteRejected, competitionID, at)
	e.ParticipantID = participantID
	e.VoterID = voterID
	e.Reason = reason
	return e
}

// ParticipantAdvanced reports one advancement into the next tier.
func ParticipantAdvanced(participantID domain.ParticipantID, from, to domain.CompetitionID, at time.Time) Event {
	e := newEvent(TypeParticipantAdvanced, from, at)
	e.ParticipantID = participantID
	e.FromCompetitionID = from
	e.ToCompetitionID = to
	return e
}

// CompetitionFinalized reports a completed finalize with the winner set.
func CompetitionFinalized(competitionID domain.CompetitionID, winners []domain.ParticipantID, at time.Time) Event {
	e := newEvent(TypeCompetitionFinalized, competitionID, at)
	e.Winners = winners
	return e
}
