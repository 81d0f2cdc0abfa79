package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "stagevote/pkg/domain-errors"
)

// TestParseID_Invariants validates that IDs must be valid, non-empty,
// non-nil UUIDs at trust boundaries.
func TestParseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseCompetitionID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseVoterID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseParticipantID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		v := uuid.New()
		id, err := ParseParticipantID(v.String())
		require.NoError(t, err)
		assert.Equal(t, ParticipantID(v), id)
	})
}

// TestTypeDistinction documents the compile-time invariant that the typed IDs
// are not interchangeable. If types became aliases, the commented lines would
// start to compile.
func TestTypeDistinction(t *testing.T) {
	competitionID := CompetitionID(uuid.New())
	voterID := VoterID(uuid.New())

	// var _ CompetitionID = voterID // compile error
	// var _ VoterID = competitionID // compile error

	assert.NotEqual(t, uuid.UUID(competitionID), uuid.UUID(voterID))
}
