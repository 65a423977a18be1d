// Package captcha verifies third-party challenge-response tokens through a
// server-to-server call to the provider's siteverify endpoint.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/loginkit/pkg/logger"
)

// Config holds the challenge verification settings.
type Config struct {
	Enabled   bool          `env:"CAPTCHA_ENABLED" envDefault:"false"`
	SiteKey   string        `env:"CAPTCHA_SITE_KEY"`
	SecretKey string        `env:"CAPTCHA_SECRET_KEY"`
	VerifyURL string        `env:"CAPTCHA_VERIFY_URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`
	Timeout   time.Duration `env:"CAPTCHA_TIMEOUT" envDefault:"10s"`
}

var (
	// ErrInvalidConfig is returned by NewVerifier for unusable settings.
	ErrInvalidConfig = errors.New("captcha: invalid config")
	// ErrChallengeFailed means the provider rejected the response token.
	ErrChallengeFailed = errors.New("captcha: challenge verification failed")
)

// Verifier performs the server-side challenge check. A transport failure
// counts as a failed challenge: the check fails closed.
type Verifier struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithHTTPClient replaces the HTTP client used for siteverify calls.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) { v.client = c }
}

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) { v.log = l }
}

// NewVerifier builds a Verifier from cfg.
func NewVerifier(cfg Config, opts ...Option) (*Verifier, error) {
	if cfg.Enabled && (cfg.SecretKey == "" || cfg.VerifyURL == "") {
		return nil, fmt.Errorf("%w: secret key and verify URL are required", ErrInvalidConfig)
	}

	v := &Verifier{
		cfg: cfg,
		log: logger.Noop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.client == nil {
		v.client = &http.Client{Timeout: cfg.Timeout}
	}
	return v, nil
}

// Enabled reports whether challenge verification is active.
func (v *Verifier) Enabled() bool { return v.cfg.Enabled }

// SiteKey returns the public key rendered into the challenge widget.
func (v *Verifier) SiteKey() string { return v.cfg.SiteKey }

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks the client-supplied response token. A nil return means the
// challenge passed; every other outcome wraps ErrChallengeFailed. When the
// verifier is disabled, Verify always passes.
func (v *Verifier) Verify(ctx context.Context, responseToken, remoteIP string) error {
	if !v.cfg.Enabled {
		return nil
	}
	if responseToken == "" {
		return fmt.Errorf("%w: empty response token", ErrChallengeFailed)
	}

	form := url.Values{
		"secret":   {v.cfg.SecretKey},
		"response": {responseToken},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.WarnContext(ctx, "challenge provider unreachable",
			logger.Component("captcha"), logger.Error(err))
		return fmt.Errorf("%w: %v", ErrChallengeFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrChallengeFailed, resp.StatusCode)
	}

	var result siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeFailed, err)
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", ErrChallengeFailed, strings.Join(result.ErrorCodes, ", "))
	}
	return nil
}
