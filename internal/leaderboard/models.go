// Package leaderboard projects the vote ledger into ranked standings.
//
// Standings are a pure projection: recomputable at any time from the ledger
// and the participant roster, never stored as authoritative state.
package leaderboard

import (
	"time"

	"stagevote/pkg/domain"
)

// Entry is one participant's position in the standings.
type Entry struct {
	Rank          int                  `json:"rank"`
	ParticipantID domain.ParticipantID `json:"participant_id"`
	UserID        domain.UserID        `json:"user_id"`
	Country       string               `json:"country,omitempty"`
	VoteCount     int                  `json:"vote_count"`
	AppliedAt     time.Time            `json:"applied_at"`
}

// Board is a full ordered standing for one competition at one instant.
type Board struct {
	CompetitionID domain.CompetitionID `json:"competition_id"`
	GeneratedAt   time.Time            `json:"generated_at"`
	TotalVotes    int                  `json:"total_votes"`
	Entries       []Entry              `json:"entries"`
}

// Query narrows and pages a standings read. Zero values mean no filter,
// no offset, and the default page size.
type Query struct {
	Country string
	Limit   int
	Offset  int
}

// DefaultLimit caps unbounded standings reads.
const DefaultLimit = 50
