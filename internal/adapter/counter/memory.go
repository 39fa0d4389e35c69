package counter

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryStore is an in-process counter store with per-key expiry. It backs
// single-node deployments without Redis and the test suite.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the stored count for (token, window); expired or missing
// keys read as 0.
func (s *MemoryStore) Get(_ context.Context, token, window string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[counterKey(token, window)]
	if !ok || s.now().After(entry.expiresAt) {
		return 0, nil
	}
	return entry.count, nil
}

// SetWithTTL stores the count for (token, window) with the given expiry,
// replacing any prior entry under one lock acquisition.
func (s *MemoryStore) SetWithTTL(_ context.Context, token, window string, count int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[counterKey(token, window)] = memoryEntry{
		count:     count,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}
