// Package ratelimit implements a fixed-window request limiter keyed by an
// arbitrary string, usually a client address.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config controls the window.
type Config struct {
	Limit  int           `env:"RATE_LIMIT_MAX" envDefault:"20"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
}

func (c Config) validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %v", ErrInvalidConfig, c.Window)
	}
	return nil
}

// ErrInvalidConfig is returned by NewLimiter for unusable settings.
var ErrInvalidConfig = errors.New("ratelimit: invalid config")

// Store counts hits per key within a window. Incr returns the count
// including the current hit; the first hit in a window starts its expiry.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}

// Result reports the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Remaining int64
}

// Limiter is a fixed-window counter over a Store.
type Limiter struct {
	store Store
	cfg   Config
}

// NewLimiter builds a Limiter from cfg.
func NewLimiter(store Store, cfg Config) (*Limiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Limiter{store: store, cfg: cfg}, nil
}

// Allow consumes one hit for key and reports whether it fit the window.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	count, err := l.store.Incr(ctx, key, l.cfg.Window)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: count hit: %w", err)
	}

	remaining := int64(l.cfg.Limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(l.cfg.Limit),
		Remaining: remaining,
	}, nil
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}
