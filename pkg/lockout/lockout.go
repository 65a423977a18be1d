// Package lockout tracks failed authentication attempts per client address
// and engages a time-windowed lock once a threshold is crossed.
//
// State is keyed by address, not by targeted account: everyone behind a
// shared NAT locks out together. That is a deliberate simplicity tradeoff
// carried over from the original product, not a bug.
package lockout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dmitrymomot/loginkit/pkg/logger"
)

// Config controls the failure threshold and lock window.
type Config struct {
	Enabled     bool          `env:"LOCKOUT_ENABLED" envDefault:"true"`
	MaxAttempts int           `env:"LOCKOUT_MAX_ATTEMPTS" envDefault:"5"`
	Window      time.Duration `env:"LOCKOUT_WINDOW" envDefault:"15m"`
}

func (c Config) validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max attempts must be positive, got %d", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %v", ErrInvalidConfig, c.Window)
	}
	return nil
}

// Record is the per-address counter and lock state persisted by a Store.
type Record struct {
	Attempts    int       `json:"attempts"`
	LockedUntil time.Time `json:"locked_until,omitzero"`
}

// Status is the lock state reported to callers.
type Status struct {
	Locked bool
	Until  time.Time
}

// RemainingMinutes returns the ceiling-rounded minutes until the lock lifts,
// at least 1 while locked, 0 when unlocked.
func (s Status) RemainingMinutes() int {
	if !s.Locked {
		return 0
	}
	mins := int(math.Ceil(time.Until(s.Until).Minutes()))
	if mins < 1 {
		mins = 1
	}
	return mins
}

// Store persists lockout records with a TTL. Get/Put is read-then-write, not
// compare-and-swap: concurrent failures from one address can under-count
// attempts. Known weakness, acceptable for brute-force mitigation.
type Store interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Put(ctx context.Context, key string, rec Record, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Tracker implements the failure counter and lock state machine.
type Tracker struct {
	store Store
	cfg   Config
	log   *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets a custom logger for the tracker.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// NewTracker creates a lockout tracker backed by the given store.
func NewTracker(store Store, cfg Config, opts ...Option) (*Tracker, error) {
	if cfg.Enabled {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
	}

	t := &Tracker{
		store: store,
		cfg:   cfg,
		log:   logger.Noop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// RecordFailure increments the counter for the address. When the counter
// reaches the configured threshold, the lock engages for the configured
// window and the counter resets to zero. The returned status reflects the
// state after this failure so callers can react to a newly engaged lock.
func (t *Tracker) RecordFailure(ctx context.Context, addr string) (Status, error) {
	if !t.cfg.Enabled {
		return Status{}, nil
	}

	key := addressKey(addr)

	rec, _, err := t.store.Get(ctx, key)
	if err != nil {
		return Status{}, fmt.Errorf("lockout: failed to read record: %w", err)
	}

	rec.Attempts++

	var status Status
	if rec.Attempts >= t.cfg.MaxAttempts {
		rec.LockedUntil = time.Now().Add(t.cfg.Window)
		rec.Attempts = 0
		status = Status{Locked: true, Until: rec.LockedUntil}

		t.log.Warn("address locked after repeated failures",
			logger.Component("lockout"),
			slog.Int("max_attempts", t.cfg.MaxAttempts),
			slog.Duration("window", t.cfg.Window),
		)
	}

	if err := t.store.Put(ctx, key, rec, t.cfg.Window); err != nil {
		return Status{}, fmt.Errorf("lockout: failed to persist record: %w", err)
	}

	return status, nil
}

// CheckLock reports whether the address is currently locked. It never mutates
// stored state, so repeated calls are idempotent.
func (t *Tracker) CheckLock(ctx context.Context, addr string) (Status, error) {
	if !t.cfg.Enabled {
		return Status{}, nil
	}

	rec, ok, err := t.store.Get(ctx, addressKey(addr))
	if err != nil {
		return Status{}, fmt.Errorf("lockout: failed to read record: %w", err)
	}
	if !ok || rec.LockedUntil.IsZero() || !time.Now().Before(rec.LockedUntil) {
		return Status{}, nil
	}

	return Status{Locked: true, Until: rec.LockedUntil}, nil
}

// Clear removes the record for the address. Called on successful
// authentication so a legitimate user resets their own counter.
func (t *Tracker) Clear(ctx context.Context, addr string) error {
	if !t.cfg.Enabled {
		return nil
	}
	if err := t.store.Delete(ctx, addressKey(addr)); err != nil {
		return fmt.Errorf("lockout: failed to clear record: %w", err)
	}
	return nil
}

// addressKey hashes the address so stores never hold raw client addresses.
func addressKey(addr string) string {
	sum := sha256.Sum256([]byte(addr))
	return "lockout:" + hex.EncodeToString(sum[:16])
}
