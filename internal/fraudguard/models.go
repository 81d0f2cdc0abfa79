// Package fraudguard holds the admission-control vocabulary: the vote
// request, the decision, and the rejection reasons.
//
// Rejections are expected, non-fatal outcomes returned synchronously to the
// caller. They are values, never errors that escape the system boundary.
package fraudguard

import (
	"stagevote/pkg/domain"
)

// RejectReason enumerates why a vote was refused, in the order the checks
// run. The first failing check short-circuits the rest.
type RejectReason string

const (
	ReasonVotingClosed          RejectReason = "VOTING_CLOSED"
	ReasonUnverifiedVoter       RejectReason = "UNVERIFIED_VOTER"
	ReasonIneligibleParticipant RejectReason = "INELIGIBLE_PARTICIPANT"
	ReasonRateLimited           RejectReason = "RATE_LIMITED"
	ReasonDuplicateVote         RejectReason = "DUPLICATE_VOTE"
)

// VoteRequest is one vote submission after transport decoding.
//
// VoterVerified is the externally supplied identity predicate: the engine
// never verifies identity itself. Fingerprint is the keyed hash of the
// client address, never the raw IP.
type VoteRequest struct {
	CompetitionID domain.CompetitionID
	ParticipantID domain.ParticipantID
	VoterID       domain.VoterID
	Fingerprint   string
	VoterVerified bool
}

// Decision is the admission outcome. NewCount is set only on acceptance and
// reflects the participant's count after the durable append.
type Decision struct {
	Accepted bool
	Reason   RejectReason
	NewCount int
}

// Accept builds an accepting decision.
func Accept(newCount int) Decision {
	return Decision{Accepted: true, NewCount: newCount}
}

// Reject builds a rejecting decision.
func Reject(reason RejectReason) Decision {
	return Decision{Reason: reason}
}
