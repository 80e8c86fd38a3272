package app

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthenticatorRejectsMalformedStaticTokens(t *testing.T) {
	_, err := NewAuthenticator("", []string{"just-a-token"})
	assert.Error(t, err)

	_, err = NewAuthenticator("", []string{":token"})
	assert.Error(t, err)
}

func TestStateRoundTrip(t *testing.T) {
	auth, err := NewAuthenticator("", []string{"host-1:tok"})
	require.NoError(t, err)

	state, err := auth.SignState("host-1", time.Now())
	require.NoError(t, err)

	host, err := auth.VerifyState(state)
	require.NoError(t, err)
	assert.Equal(t, "host-1", host)
}

func TestStateExpires(t *testing.T) {
	auth, err := NewAuthenticator(testSecret, nil)
	require.NoError(t, err)

	state, err := auth.SignState("host-1", time.Now().Add(-stateTTL-time.Minute))
	require.NoError(t, err)

	_, err = auth.VerifyState(state)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestHostTokenIsNotAState(t *testing.T) {
	auth, err := NewAuthenticator(testSecret, nil)
	require.NoError(t, err)

	_, err = auth.VerifyState(hostToken(t, "host-1"))
	assert.Error(t, err)
}

func TestHostTokenRequiresSubject(t *testing.T) {
	auth, err := NewAuthenticator(testSecret, nil)
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = auth.parseHostToken(tok)
	assert.Error(t, err)
}
