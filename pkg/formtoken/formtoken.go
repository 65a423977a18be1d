// Package formtoken issues and verifies action-scoped anti-forgery tokens
// for form submissions. A token is a compact JSON payload carrying the form
// action and expiry, signed with a truncated HMAC-SHA256 signature.
package formtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidConfig is returned by NewIssuer for unusable settings.
	ErrInvalidConfig = errors.New("formtoken: invalid config")
	// ErrInvalidToken means the token is structurally broken, forged,
	// expired, or bound to a different action. Callers should not
	// distinguish further.
	ErrInvalidToken = errors.New("formtoken: invalid token")
)

// Config holds the token settings.
type Config struct {
	Secret string        `env:"FORM_TOKEN_SECRET,required"`
	TTL    time.Duration `env:"FORM_TOKEN_TTL" envDefault:"12h"`
}

type payload struct {
	Action    string `json:"a"`
	ExpiresAt int64  `json:"e"`
}

// Issuer mints and checks tokens bound to a single form action.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an Issuer from cfg.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: secret is required", ErrInvalidConfig)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{secret: []byte(cfg.Secret), ttl: ttl}, nil
}

// Generate mints a token for the given form action.
func (i *Issuer) Generate(action string) (string, error) {
	data, err := json.Marshal(payload{
		Action:    action,
		ExpiresAt: time.Now().Add(i.ttl).Unix(),
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data) + "." + i.sign(data), nil
}

// Verify checks that token is authentic, unexpired, and bound to action.
// All failure modes collapse into ErrInvalidToken.
func (i *Issuer) Verify(token, action string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return ErrInvalidToken
	}

	data, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(i.sign(data))) != 1 {
		return ErrInvalidToken
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return ErrInvalidToken
	}
	if p.Action != action {
		return ErrInvalidToken
	}
	if time.Now().Unix() > p.ExpiresAt {
		return ErrInvalidToken
	}
	return nil
}

func (i *Issuer) sign(data []byte) string {
	h := hmac.New(sha256.New, i.secret)
	h.Write(data)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)[:8])
}
