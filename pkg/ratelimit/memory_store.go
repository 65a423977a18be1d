package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is an in-process Store for single-instance deployments and
// tests. Expired windows are dropped lazily on the next hit.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]memoryWindow)}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.windows[key]
	if !ok || now.After(w.expiresAt) {
		w = memoryWindow{expiresAt: now.Add(window)}
	}
	w.count++
	s.windows[key] = w
	return w.count, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}
