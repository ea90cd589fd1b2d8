package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/bomsync/internal/domain/shared"
)

// pruneEvery is the number of writes between expiry sweeps
const pruneEvery = 256

// InMemoryIdempotencyStore keeps dedupe keys in process memory. Expired keys
// are ignored on read and swept every pruneEvery writes, so no background
// goroutine is needed. Suitable for a single instance and for tests.
type InMemoryIdempotencyStore struct {
	mu      sync.Mutex
	expiry  map[string]time.Time
	writes  int
	closed  bool
	nowFunc func() time.Time
}

// NewInMemoryIdempotencyStore creates an empty store
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{
		expiry:  make(map[string]time.Time),
		nowFunc: time.Now,
	}
}

// MarkProcessed claims key for ttl. The first caller gets true; later callers
// get false until the claim lapses.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if until, ok := s.expiry[key]; ok && now.Before(until) {
		return false, nil
	}
	s.expiry[key] = now.Add(ttl)

	s.writes++
	if s.writes%pruneEvery == 0 {
		s.pruneLocked(now)
	}
	return true, nil
}

// IsProcessed reports whether key holds a live claim
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.expiry[key]
	return ok && s.nowFunc().Before(until), nil
}

// Close drops every claim. Calling it again is a no-op.
func (s *InMemoryIdempotencyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.expiry = make(map[string]time.Time)
	}
	return nil
}

// Prune removes lapsed claims and returns how many were dropped
func (s *InMemoryIdempotencyStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.nowFunc())
}

func (s *InMemoryIdempotencyStore) pruneLocked(now time.Time) int {
	dropped := 0
	for key, until := range s.expiry {
		if !now.Before(until) {
			delete(s.expiry, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of stored claims, lapsed ones included
func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiry)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
