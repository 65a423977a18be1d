// Package passcheck scores candidate passwords against a fixed policy.
//
// Assessment is a pure function of the input and configuration: no
// randomness, no external calls, identical input always yields identical
// output.
package passcheck

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	uppercaseRegex   = regexp.MustCompile(`[A-Z]`)
	lowercaseRegex   = regexp.MustCompile(`[a-z]`)
	digitRegex       = regexp.MustCompile(`[0-9]`)
	specialCharRegex = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// MaxScore caps the accumulated strength score.
const MaxScore = 4

// Config controls the evaluator policy.
type Config struct {
	Enabled   bool `env:"PASSCHECK_ENABLED" envDefault:"true"`
	MinLength int  `env:"PASSCHECK_MIN_LENGTH" envDefault:"8"`
	MinScore  int  `env:"PASSCHECK_MIN_SCORE" envDefault:"2"`
}

func (c Config) validate() error {
	if c.MinLength < 1 {
		return fmt.Errorf("%w: min length must be positive", ErrInvalidConfig)
	}
	if c.MinScore < 0 || c.MinScore > MaxScore {
		return fmt.Errorf("%w: min score must be between 0 and %d", ErrInvalidConfig, MaxScore)
	}
	return nil
}

// ErrInvalidConfig is returned by NewEvaluator for unusable settings.
var ErrInvalidConfig = errors.New("passcheck: invalid config")

// Assessment is the transient result of evaluating one candidate password.
// It is computed on demand and never persisted.
type Assessment struct {
	Valid   bool
	Score   int
	Message string
}

// Evaluator assesses passwords. The zero value is not usable; construct
// with NewEvaluator.
type Evaluator struct {
	cfg Config
}

// NewEvaluator builds an Evaluator from cfg.
func NewEvaluator(cfg Config) (*Evaluator, error) {
	if cfg.Enabled {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
	}
	return &Evaluator{cfg: cfg}, nil
}

// Assess evaluates password against the configured policy. The checks run
// in a fixed order: minimum length short-circuits first, then the common
// password denylist, then the accumulated strength score.
func (e *Evaluator) Assess(password string) Assessment {
	if !e.cfg.Enabled {
		return Assessment{Valid: true}
	}

	if len(password) < e.cfg.MinLength {
		return Assessment{
			Valid:   false,
			Score:   0,
			Message: fmt.Sprintf("password must be at least %d characters long", e.cfg.MinLength),
		}
	}

	if commonPasswords[strings.ToLower(password)] {
		return Assessment{
			Valid:   false,
			Score:   0,
			Message: "password is too common, please choose a different one",
		}
	}

	score := e.score(password)
	if score < e.cfg.MinScore {
		return Assessment{
			Valid:   false,
			Score:   score,
			Message: "password is too weak, add more character variety",
		}
	}

	return Assessment{Valid: true, Score: score}
}

// score accumulates one point per independent signal, capped at MaxScore.
func (e *Evaluator) score(password string) int {
	score := 0
	if len(password) >= 8 {
		score++
	}
	if len(password) >= 12 {
		score++
	}
	if uppercaseRegex.MatchString(password) && lowercaseRegex.MatchString(password) {
		score++
	}
	if digitRegex.MatchString(password) {
		score++
	}
	if specialCharRegex.MatchString(password) {
		score++
	}
	if score > MaxScore {
		score = MaxScore
	}
	return score
}
