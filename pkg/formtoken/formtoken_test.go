package formtoken_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/loginkit/pkg/formtoken"
)

func newIssuer(t *testing.T, ttl time.Duration) *formtoken.Issuer {
	t.Helper()

	i, err := formtoken.NewIssuer(formtoken.Config{Secret: "test-secret", TTL: ttl})
	require.NoError(t, err)
	return i
}

func TestGenerateVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	i := newIssuer(t, time.Hour)
	token, err := i.Generate("login")
	require.NoError(t, err)
	require.NoError(t, i.Verify(token, "login"))
}

func TestTokenIsActionScoped(t *testing.T) {
	t.Parallel()

	i := newIssuer(t, time.Hour)
	token, err := i.Generate("login")
	require.NoError(t, err)

	err = i.Verify(token, "register")
	require.ErrorIs(t, err, formtoken.ErrInvalidToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	t.Parallel()

	i := newIssuer(t, -time.Minute)
	token, err := i.Generate("login")
	require.NoError(t, err)

	err = i.Verify(token, "login")
	require.ErrorIs(t, err, formtoken.ErrInvalidToken)
}

func TestForgedTokenRejected(t *testing.T) {
	t.Parallel()

	i := newIssuer(t, time.Hour)
	other := newIssuer(t, time.Hour)

	token, err := other.Generate("login")
	require.NoError(t, err)

	err = i.Verify(token, "login")
	require.ErrorIs(t, err, formtoken.ErrInvalidToken)
}

func TestMalformedTokensRejected(t *testing.T) {
	t.Parallel()

	i := newIssuer(t, time.Hour)
	for _, token := range []string{"", "abc", "a.b.c", "!!!.???"} {
		assert.ErrorIs(t, i.Verify(token, "login"), formtoken.ErrInvalidToken, "token %q", token)
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := formtoken.NewIssuer(formtoken.Config{})
	require.ErrorIs(t, err, formtoken.ErrInvalidConfig)
}
