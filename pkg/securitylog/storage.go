package securitylog

import (
	"context"
	"time"
)

// Storage persists security events. Implementations must keep stored events
// immutable: rows are appended, listed, cleared or pruned, never edited.
type Storage interface {
	// Store appends one event.
	Store(ctx context.Context, event Event) error

	// List returns up to limit events, most recent first.
	List(ctx context.Context, limit int) ([]Event, error)

	// Clear deletes all events.
	Clear(ctx context.Context) error

	// DeleteOlderThan deletes events created before the cutoff and reports
	// how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
