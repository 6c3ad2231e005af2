package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(now *time.Time) *Issuer {
	return NewIssuer("s3cret", "workforce", 15*time.Minute, 7*24*time.Hour, func() time.Time { return *now })
}

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	iss := newTestIssuer(&now)

	pair, err := iss.Issue(42, "Ana", "supervisor")
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), pair.AccessExpiresAt)

	claims, err := iss.Parse(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AdvisorID)
	assert.Equal(t, "supervisor", claims.Role)
	assert.Equal(t, "42", claims.Subject)

	_, err = iss.Parse(pair.Refresh)
	assert.ErrorIs(t, err, ErrWrongType, "refresh tokens are not accepted as access tokens")

	now = now.Add(16 * time.Minute)
	_, err = iss.Parse(pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	renewed, err := iss.Refresh(pair.Refresh)
	require.NoError(t, err)
	claims, err = iss.Parse(renewed.Access)
	require.NoError(t, err)
	assert.Equal(t, "Ana", claims.Name)
}

func TestParse_Rejects(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	iss := newTestIssuer(&now)

	other := NewIssuer("different", "workforce", time.Minute, time.Hour, func() time.Time { return now })
	pair, err := other.Issue(1, "", "")
	require.NoError(t, err)
	_, err = iss.Parse(pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign := NewIssuer("s3cret", "someone-else", time.Minute, time.Hour, func() time.Time { return now })
	pair, err = foreign.Issue(1, "", "")
	require.NoError(t, err)
	_, err = iss.Parse(pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Type: TypeAccess}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
