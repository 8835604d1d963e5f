package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"splitpay/internal/clock"
	"splitpay/internal/domain"
	"splitpay/internal/repository"
)

// DefaultSweepProbability is the chance that a write also drops expired entries.
const DefaultSweepProbability = 0.1

// ProgressStore is an in-process repository.ProgressStore. Expired entries
// are hidden from reads immediately and removed by a sweep that runs on a
// random subset of writes.
type ProgressStore struct {
	mu      sync.RWMutex
	entries map[string]*repository.StoredProgress

	clock            clock.Clock
	retention        time.Duration
	sweepProbability float64
	random           func() float64
}

// Option configures a ProgressStore.
type Option func(*ProgressStore)

// WithRetention overrides how long entries live after their last write.
func WithRetention(d time.Duration) Option {
	return func(s *ProgressStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSweepProbability overrides the chance in [0, 1] that a write sweeps.
func WithSweepProbability(p float64) Option {
	return func(s *ProgressStore) {
		if p >= 0 && p <= 1 {
			s.sweepProbability = p
		}
	}
}

// WithRandom overrides the random source used to decide on sweeps.
func WithRandom(fn func() float64) Option {
	return func(s *ProgressStore) {
		if fn != nil {
			s.random = fn
		}
	}
}

// NewProgressStore creates a new in-memory ProgressStore.
func NewProgressStore(clk clock.Clock, opts ...Option) *ProgressStore {
	s := &ProgressStore{
		entries:          make(map[string]*repository.StoredProgress),
		clock:            clk,
		retention:        repository.DefaultRetention,
		sweepProbability: DefaultSweepProbability,
		random:           rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repository.ProgressStore = (*ProgressStore)(nil)

// Save stores a new split payment.
func (s *ProgressStore) Save(ctx context.Context, entry *repository.StoredProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if existing, ok := s.entries[entry.Progress.ID]; ok && !s.expired(existing, now) {
		return repository.ErrAlreadyExists
	}

	s.entries[entry.Progress.ID] = copyEntry(entry, now)
	s.maybeSweep(now)
	return nil
}

// Get retrieves a split payment without bookkeeping fields.
func (s *ProgressStore) Get(ctx context.Context, id string) (*domain.SplitPaymentProgress, error) {
	entry, err := s.GetStored(ctx, id)
	if err != nil {
		return nil, err
	}
	return entry.Progress, nil
}

// GetStored retrieves a split payment with its bookkeeping fields.
func (s *ProgressStore) GetStored(ctx context.Context, id string) (*repository.StoredProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok || s.expired(entry, s.clock.Now()) {
		return nil, repository.ErrNotFound
	}
	return copyEntry(entry, entry.StoredAt), nil
}

// Update replaces an existing split payment.
func (s *ProgressStore) Update(ctx context.Context, entry *repository.StoredProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	existing, ok := s.entries[entry.Progress.ID]
	if !ok || s.expired(existing, now) {
		return repository.ErrNotFound
	}

	s.entries[entry.Progress.ID] = copyEntry(entry, now)
	s.maybeSweep(now)
	return nil
}

// Delete removes a split payment.
func (s *ProgressStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Exists reports whether a split payment is stored and not expired.
func (s *ProgressStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	return ok && !s.expired(entry, s.clock.Now()), nil
}

// Len returns the number of entries held, expired or not.
func (s *ProgressStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *ProgressStore) expired(entry *repository.StoredProgress, now time.Time) bool {
	return now.Sub(entry.StoredAt) >= s.retention
}

// maybeSweep must be called with s.mu held for writing.
func (s *ProgressStore) maybeSweep(now time.Time) {
	if s.sweepProbability <= 0 || s.random() >= s.sweepProbability {
		return
	}
	for id, entry := range s.entries {
		if s.expired(entry, now) {
			delete(s.entries, id)
		}
	}
}

func copyEntry(entry *repository.StoredProgress, storedAt time.Time) *repository.StoredProgress {
	return &repository.StoredProgress{
		Progress:  entry.Progress.Clone(),
		SessionID: entry.SessionID,
		StoredAt:  storedAt,
	}
}
