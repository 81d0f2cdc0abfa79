package participant

import (
	"time"

	"stagevote/pkg/domain"
	dErrors "stagevote/pkg/domain-errors"
)

// Status is the participant application state within one competition.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
)

// ParseStatus validates external input into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusApproved, StatusRejected, StatusWithdrawn:
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid participant status: "+s)
}

// Participant is one user's entry in one competition.
//
// VoteCount and Rank are projections derived from the vote ledger. They are
// never authoritative: the ledger count for (competition, participant) is
// always the source of truth and the projection must be recomputable from it.
type Participant struct {
	ID            domain.ParticipantID
	CompetitionID domain.CompetitionID
	UserID        domain.UserID
	Country       string
	Status        Status
	AppliedAt     time.Time

	// Derived, populated on read paths only.
	VoteCount int
	Rank      int
}

// Eligible reports whether the participant may receive votes.
func (p Participant) Eligible() bool {
	return p.Status == StatusApproved
}
