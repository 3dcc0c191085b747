package session

import (
	"context"
	"sync"
	"time"
)

// memoryEntry pairs a record with its store-level deadline (the absolute
// session lifetime, distinct from the bearer token's own expiry).
type memoryEntry struct {
	rec      TokenRecord
	deadline time.Time
}

// MemoryStore is an in-process token record store. Suitable for a single
// instance; records do not survive restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)
var _ ExpiredSweeper = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*TokenRecord, error) {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if s.now().After(entry.deadline) {
		_ = s.Delete(ctx, sessionID)
		return nil, nil
	}

	rec := entry.rec
	return &rec, nil
}

func (s *MemoryStore) Put(ctx context.Context, sessionID string, rec TokenRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[sessionID] = memoryEntry{
		rec:      rec,
		deadline: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, sessionID)
	return nil
}

// DeleteExpired removes entries past their deadline and returns the count.
func (s *MemoryStore) DeleteExpired(ctx context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, entry := range s.entries {
		if now.After(entry.deadline) {
			delete(s.entries, id)
			count++
		}
	}
	return count, nil
}
