package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagevote/pkg/domain"
)

// Unset ID fields must vanish from the wire rather than serialize as the
// zero UUID.
func TestEventWireOmitsUnsetIDs(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e := VoteAccepted(domain.NewCompetitionID(), domain.NewParticipantID(), 3, at)

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Contains(t, decoded, "competition_id")
	assert.Contains(t, decoded, "participant_id")
	assert.Equal(t, float64(3), decoded["new_count"])

	assert.NotContains(t, decoded, "voter_id")
	assert.NotContains(t, decoded, "from_competition_id")
	assert.NotContains(t, decoded, "to_competition_id")
	assert.NotContains(t, decoded, "winners")
	assert.NotContains(t, decoded, "reason")
}

func TestVoteRejectedCarriesVoterAndReason(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	voterID := domain.NewVoterID()
	e := VoteRejected(domain.NewCompetitionID(), domain.NewParticipantID(), voterID, "DUPLICATE_VOTE", at)

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, voterID.String(), decoded["voter_id"])
	assert.Equal(t, "DUPLICATE_VOTE", decoded["reason"])
}
