package securitylog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/loginkit/pkg/logger"
)

// Pruner runs the retention sweep on a fixed schedule. The sweep is
// fire-and-forget: nothing observes its result beyond the operational log.
type Pruner struct {
	recorder  *Recorder
	retention time.Duration
	interval  time.Duration
	log       *slog.Logger

	stop      chan struct{}
	closeOnce sync.Once
}

// PrunerOption configures a Pruner.
type PrunerOption func(*Pruner)

// WithPruneInterval overrides the sweep cadence; the default is daily.
func WithPruneInterval(interval time.Duration) PrunerOption {
	return func(p *Pruner) { p.interval = interval }
}

// WithPrunerLogger sets a custom logger.
func WithPrunerLogger(l *slog.Logger) PrunerOption {
	return func(p *Pruner) { p.log = l }
}

// NewPruner creates a retention pruner deleting events older than
// retentionDays. Call Start to begin the sweep and Close to stop it.
func NewPruner(recorder *Recorder, retentionDays int, opts ...PrunerOption) *Pruner {
	if retentionDays <= 0 {
		retentionDays = 90
	}

	p := &Pruner{
		recorder:  recorder,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  24 * time.Hour,
		log:       logger.Noop(),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the sweep goroutine. One sweep runs immediately so a
// long-stopped deployment catches up on restart.
func (p *Pruner) Start() {
	go func() {
		p.sweep()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.sweep()
			case <-p.stop:
				return
			}
		}
	}()
}

// Close stops the sweep goroutine. Safe to call multiple times.
func (p *Pruner) Close() {
	p.closeOnce.Do(func() {
		close(p.stop)
	})
}

func (p *Pruner) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := p.recorder.PruneOlderThan(ctx, p.retention); err != nil {
		p.log.Error("security event prune failed",
			logger.Component("securitylog"),
			logger.Error(err),
		)
	}
}
