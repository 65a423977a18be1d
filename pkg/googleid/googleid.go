// Package googleid verifies Google ID token assertions for federated login.
//
// Verification prefers local signature checks against Google's published
// JWKS. When local verification is disabled, the verifier falls back to
// Google's tokeninfo introspection endpoint. Regardless of the path taken,
// the audience, issuer, and expiry claims are always checked before an
// assertion is accepted.
package googleid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrymomot/loginkit/pkg/logger"
)

// Config holds the verifier settings.
type Config struct {
	ClientID          string        `env:"GOOGLE_CLIENT_ID,required"`
	JWKSURL           string        `env:"GOOGLE_JWKS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs"`
	TokenInfoURL      string        `env:"GOOGLE_TOKENINFO_URL" envDefault:"https://oauth2.googleapis.com/tokeninfo"`
	HTTPTimeout       time.Duration `env:"GOOGLE_HTTP_TIMEOUT" envDefault:"10s"`
	LocalVerification bool          `env:"GOOGLE_LOCAL_VERIFICATION" envDefault:"true"`
}

func (c Config) validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: client ID is required", ErrInvalidConfig)
	}
	return nil
}

// ErrInvalidConfig is returned by NewVerifier for unusable settings.
var ErrInvalidConfig = errors.New("googleid: invalid config")

// knownIssuers are the only issuer values Google emits for ID tokens.
var knownIssuers = map[string]struct{}{
	"accounts.google.com":         {},
	"https://accounts.google.com": {},
}

// Assertion is the verified identity carried by a Google ID token.
type Assertion struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	GivenName     string
	FamilyName    string
	PictureURL    string
}

// Verifier checks raw ID token strings and returns verified assertions.
type Verifier struct {
	cfg    Config
	client *http.Client
	keys   *jwksCache
	log    *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithHTTPClient replaces the HTTP client used for JWKS and tokeninfo calls.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) { v.client = c }
}

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) { v.log = l }
}

// NewVerifier builds a Verifier from cfg.
func NewVerifier(cfg Config, opts ...Option) (*Verifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	v := &Verifier{
		cfg: cfg,
		log: logger.Noop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.client == nil {
		v.client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if cfg.LocalVerification {
		v.keys = newJWKSCache(cfg.JWKSURL, v.client)
	}
	return v, nil
}

// Verify checks rawToken and returns its assertion, or a rejection error
// wrapping ErrTokenRejected.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Assertion, error) {
	if rawToken == "" {
		return nil, ErrMalformedToken
	}

	var (
		assertion *Assertion
		audience  string
		issuer    string
		expiry    time.Time
		err       error
	)
	if v.keys != nil {
		assertion, audience, issuer, expiry, err = v.verifyLocal(ctx, rawToken)
	} else {
		assertion, audience, issuer, expiry, err = v.introspect(ctx, rawToken)
	}
	if err != nil {
		v.log.DebugContext(ctx, "token verification failed",
			logger.Component("googleid"), logger.Error(err))
		return nil, err
	}

	if audience != v.cfg.ClientID {
		return nil, ErrAudienceMismatch
	}
	if _, ok := knownIssuers[issuer]; !ok {
		return nil, ErrUnknownIssuer
	}
	if !expiry.After(time.Now()) {
		return nil, ErrExpired
	}

	return assertion, nil
}

type idTokenClaims struct {
	jwt.RegisteredClaims

	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

func (v *Verifier) verifyLocal(ctx context.Context, rawToken string) (*Assertion, string, string, time.Time, error) {
	claims := &idTokenClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.key(ctx, kid)
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, "", "", time.Time{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, "", "", time.Time{}, ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, "", "", time.Time{}, ErrBadSignature
		default:
			return nil, "", "", time.Time{}, fmt.Errorf("%w: %v", ErrTokenRejected, err)
		}
	}

	var aud string
	if len(claims.Audience) > 0 {
		aud = claims.Audience[0]
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	return &Assertion{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		PictureURL:    claims.Picture,
	}, aud, claims.Issuer, exp, nil
}

// Truncate shortens a raw token for audit context so that the full
// credential never lands in persistent logs.
func Truncate(rawToken string) string {
	const keep = 10
	if len(rawToken) <= keep {
		return rawToken
	}
	return rawToken[:keep] + "..."
}
