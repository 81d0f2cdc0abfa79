// Package domain holds typed identifiers and shared enumerations.
//
// IDs are distinct UUID types so a ParticipantID can never be passed where a
// CompetitionID is expected. Construct via the Parse functions at trust
// boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "stagevote/pkg/domain-errors"
)

type (
	// CompetitionID identifies a competition at any tier.
	CompetitionID uuid.UUID

	// ParticipantID identifies a participant row within one competition.
	ParticipantID uuid.UUID

	// UserID identifies a platform user. Issued by the external identity
	// collaborator; opaque to the engine beyond equality.
	UserID uuid.UUID

	// VoterID identifies a verified voter. Issued by the external identity
	// collaborator; opaque to the engine beyond equality.
	VoterID uuid.UUID

	// VoteID identifies a single ledger entry.
	VoteID uuid.UUID

	// AdvancementID identifies an advancement record.
	AdvancementID uuid.UUID
)

func parse(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be nil")
	}
	return u, nil
}

// ParseCompetitionID validates external input into a CompetitionID.
func ParseCompetitionID(s string) (CompetitionID, error) {
	u, err := parse(s, "competition")
	return CompetitionID(u), err
}

// ParseParticipantID validates external input into a ParticipantID.
func ParseParticipantID(s string) (ParticipantID, error) {
	u, err := parse(s, "participant")
	return ParticipantID(u), err
}

// ParseUserID validates external input into a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parse(s, "user")
	return UserID(u), err
}

// ParseVoterID validates external input into a VoterID.
func ParseVoterID(s string) (VoterID, error) {
	u, err := parse(s, "voter")
	return VoterID(u), err
}

// ParseAdvancementID validates external input into an AdvancementID.
func ParseAdvancementID(s string) (AdvancementID, error) {
	u, err := parse(s, "advancement")
	return AdvancementID(u), err
}

func (id CompetitionID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id ParticipantID) String() string { return uuid.UUID(id).String() }
func (id VoterID) String() string       { return uuid.UUID(id).String() }
func (id VoteID) String() string        { return uuid.UUID(id).String() }
func (id AdvancementID) String() string { return uuid.UUID(id).String() }

func (id CompetitionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ParticipantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id VoterID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id VoteID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

// MarshalText implementations keep the canonical UUID form on the wire;
// defined types do not inherit uuid.UUID's marshalling.
func (id CompetitionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ParticipantID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id VoterID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id VoteID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id AdvancementID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *CompetitionID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = CompetitionID(u)
	return err
}

func (id *ParticipantID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = ParticipantID(u)
	return err
}

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = UserID(u)
	return err
}

func (id *VoterID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = VoterID(u)
	return err
}

func (id *VoteID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = VoteID(u)
	return err
}

func (id *AdvancementID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = AdvancementID(u)
	return err
}

// NewCompetitionID mints a fresh CompetitionID.
func NewCompetitionID() CompetitionID { return CompetitionID(uuid.New()) }

// NewParticipantID mints a fresh ParticipantID.
func NewParticipantID() ParticipantID { return ParticipantID(uuid.New()) }

// NewUserID mints a fresh UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewVoterID mints a fresh VoterID.
func NewVoterID() VoterID { return VoterID(uuid.New()) }

// NewVoteID mints a fresh VoteID.
func NewVoteID() VoteID { return VoteID(uuid.New()) }

// NewAdvancementID mints a fresh AdvancementID.
func NewAdvancementID() AdvancementID { return AdvancementID(uuid.New()) }
