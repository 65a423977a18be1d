// Package securitylog is an append-only sink for authentication security
// events with privacy-preserving client address handling and age-based
// retention.
//
// Recording is best-effort: a broken or missing storage backend must never
// block the authentication flow it instruments, so Record swallows storage
// errors after logging them at debug level.
package securitylog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/loginkit/pkg/clientip"
	"github.com/dmitrymomot/loginkit/pkg/logger"
)

// Config controls the sink.
type Config struct {
	Enabled       bool   `env:"SECURITY_LOG_ENABLED" envDefault:"true"`
	HashSecret    string `env:"SECURITY_LOG_HASH_SECRET,required"`
	RetentionDays int    `env:"SECURITY_LOG_RETENTION_DAYS" envDefault:"90"`
}

// contextExtractor pulls a string out of a request context.
type contextExtractor func(context.Context) (string, bool)

// Recorder writes security events to a Storage backend.
type Recorder struct {
	storage   Storage
	hasher    *clientip.Hasher
	enabled   bool
	log       *slog.Logger
	accountID contextExtractor
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the operational logger used for critical-event mirroring
// and storage failure diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.log = l }
}

// WithAccountIDExtractor resolves the acting account from the request
// context when the event context does not name one explicitly.
func WithAccountIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(r *Recorder) { r.accountID = fn }
}

// NewRecorder creates a security event recorder.
func NewRecorder(storage Storage, cfg Config, opts ...Option) *Recorder {
	r := &Recorder{
		storage: storage,
		hasher:  clientip.NewHasher(cfg.HashSecret),
		enabled: cfg.Enabled,
		log:     logger.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one event. No-op when logging is disabled. The client
// address is resolved from the context, masked for display and hashed for
// aggregation; the raw address never reaches storage. Storage failures are
// swallowed: logging is best-effort by contract.
func (r *Recorder) Record(ctx context.Context, eventType EventType, message string, eventCtx map[string]any) {
	if !r.enabled {
		return
	}

	addr := clientip.GetIPFromContext(ctx)
	if addr == "" {
		addr = clientip.Unknown
	}

	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Message:   message,
		IPMasked:  clientip.Mask(addr),
		IPHash:    r.hasher.Hash(addr),
		AccountID: r.resolveAccountID(ctx, eventCtx),
		Context:   eventCtx,
		CreatedAt: time.Now(),
	}

	if criticalTypes[eventType] {
		r.log.Warn(message,
			logger.Component("securitylog"),
			logger.EventType(string(eventType)),
			logger.IPHash(event.IPHash),
		)
	}

	if r.storage == nil {
		return
	}
	if err := r.storage.Store(ctx, event); err != nil {
		r.log.Debug("failed to store security event",
			logger.Component("securitylog"),
			logger.EventType(string(eventType)),
			logger.Error(err),
		)
	}
}

// List returns up to limit events, most recent first.
func (r *Recorder) List(ctx context.Context, limit int) ([]Event, error) {
	if r.storage == nil {
		return nil, nil
	}
	return r.storage.List(ctx, limit)
}

// Clear deletes all stored events. Callers gate this behind their own
// privilege checks.
func (r *Recorder) Clear(ctx context.Context) error {
	if r.storage == nil {
		return nil
	}
	return r.storage.Clear(ctx)
}

// PruneOlderThan deletes events older than the given age.
func (r *Recorder) PruneOlderThan(ctx context.Context, age time.Duration) error {
	if r.storage == nil {
		return nil
	}

	removed, err := r.storage.DeleteOlderThan(ctx, time.Now().Add(-age))
	if err != nil {
		return err
	}
	if removed > 0 {
		r.log.Info("pruned aged security events",
			logger.Component("securitylog"),
			slog.Int64("removed", removed),
		)
	}
	return nil
}

func (r *Recorder) resolveAccountID(ctx context.Context, eventCtx map[string]any) string {
	if eventCtx != nil {
		if id, ok := eventCtx["account_id"].(string); ok && id != "" {
			return id
		}
	}
	if r.accountID != nil {
		if id, ok := r.accountID(ctx); ok {
			return id
		}
	}
	return ""
}
