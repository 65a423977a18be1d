package securitylog

import (
	"context"
	"sync"
	"time"
)

// DefaultMemoryCapacity bounds the in-memory storage to the most recent
// events.
const DefaultMemoryCapacity = 1000

// MemoryStorage keeps the most recent events in memory, newest first.
// Suitable for tests and small single-instance deployments.
type MemoryStorage struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewMemoryStorage creates an in-memory storage holding at most capacity
// events; zero or negative capacity falls back to DefaultMemoryCapacity.
func NewMemoryStorage(capacity int) *MemoryStorage {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStorage{capacity: capacity}
}

func (ms *MemoryStorage) Store(ctx context.Context, event Event) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.events = append([]Event{event}, ms.events...)
	if len(ms.events) > ms.capacity {
		ms.events = ms.events[:ms.capacity]
	}
	return nil
}

func (ms *MemoryStorage) List(ctx context.Context, limit int) ([]Event, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if limit <= 0 || limit > len(ms.events) {
		limit = len(ms.events)
	}

	out := make([]Event, limit)
	copy(out, ms.events[:limit])
	return out, nil
}

func (ms *MemoryStorage) Clear(ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.events = nil
	return nil
}

func (ms *MemoryStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	kept := ms.events[:0]
	var removed int64
	for _, e := range ms.events {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	ms.events = kept
	return removed, nil
}
