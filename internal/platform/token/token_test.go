package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	dErrors "stagevote/pkg/domain-errors"
)

func TestIssueAndValidate(t *testing.T) {
	svc := NewService("test-signing-key", "stagevote")

	signed, err := svc.Issue("alex", time.Minute)
	require.NoError(t, err)

	claims, err := svc.Validate(signed)
	require.NoError(t, err)
	require.Equal(t, "alex", claims.Subject)
	require.Equal(t, RoleOrganizer, claims.Role)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewService("test-signing-key", "stagevote")

	signed, err := svc.Issue("alex", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Validate(signed)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsWrongKey(t *testing.T) {
	signed, err := NewService("key-one", "stagevote").Issue("alex", time.Minute)
	require.NoError(t, err)

	_, err = NewService("key-two", "stagevote").Validate(signed)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	signed, err := NewService("test-signing-key", "someone-else").Issue("alex", time.Minute)
	require.NoError(t, err)

	_, err = NewService("test-signing-key", "stagevote").Validate(signed)
	require.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewService("test-signing-key", "stagevote").Validate("not-a-token")
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
