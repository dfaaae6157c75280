package flash

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	result    Result
	expiresAt time.Time
}

// LocalStore implements Store in process memory.
// This is suitable for single-instance deployments.
type LocalStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]localEntry
	now     func() time.Time
}

// NewLocalStore creates an in-memory store. A non-positive ttl means DefaultTTL.
func NewLocalStore(ttl time.Duration) *LocalStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LocalStore{
		ttl:     ttl,
		entries: make(map[string]localEntry),
		now:     time.Now,
	}
}

// Set stores r for sessionID, replacing any unread value.
func (s *LocalStore) Set(_ context.Context, sessionID string, r *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.entries[sessionID] = localEntry{result: *r, expiresAt: now.Add(s.ttl)}
	return nil
}

// Take returns and removes the value for sessionID.
func (s *LocalStore) Take(_ context.Context, sessionID string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sessionID]
	if !ok {
		return nil, nil
	}
	delete(s.entries, sessionID)
	if !s.now().Before(entry.expiresAt) {
		return nil, nil
	}
	r := entry.result
	return &r, nil
}

// Len reports the number of stored values, expired ones included.
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// pruneLocked drops expired entries so abandoned sessions do not accumulate.
func (s *LocalStore) pruneLocked(now time.Time) {
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}

// Close is a no-op for the local store.
func (s *LocalStore) Close() error {
	return nil
}
