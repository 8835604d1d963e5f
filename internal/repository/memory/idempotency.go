package memory

import (
	"context"
	"sync"
	"time"

	"splitpay/internal/clock"
	"splitpay/internal/repository"
)

type idempotencyEntry struct {
	value   []byte
	expires time.Time
}

// IdempotencyStore keeps replayable HTTP responses in process memory.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
	clock   clock.Clock
}

// NewIdempotencyStore creates a new in-memory IdempotencyStore.
func NewIdempotencyStore(clk clock.Clock) *IdempotencyStore {
	return &IdempotencyStore{entries: make(map[string]idempotencyEntry), clock: clk}
}

func (s *IdempotencyStore) live(key string) (idempotencyEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return idempotencyEntry{}, false
	}
	if !s.clock.Now().Before(e.expires) {
		delete(s.entries, key)
		return idempotencyEntry{}, false
	}
	return e, true
}

// Get returns the stored value for key.
func (s *IdempotencyStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Reserve stores value only if key is not set yet.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = idempotencyEntry{value: append([]byte(nil), value...), expires: s.clock.Now().Add(ttl)}
	return true, nil
}

// Set stores value under key.
func (s *IdempotencyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = idempotencyEntry{value: append([]byte(nil), value...), expires: s.clock.Now().Add(ttl)}
	return nil
}

// Delete removes key.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
