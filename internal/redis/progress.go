package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"splitpay/internal/clock"
	"splitpay/internal/domain"
	"splitpay/internal/repository"
)

const progressKeyPrefix = "splitpay:progress:"

// ProgressStore keeps split payment progress in Redis. Every write resets the
// key's TTL to the retention window, so Redis expiry does the cleanup.
type ProgressStore struct {
	client    *redis.Client
	clock     clock.Clock
	retention time.Duration
}

// NewProgressStore creates a new ProgressStore.
func NewProgressStore(client *redis.Client, clk clock.Clock, retention time.Duration) *ProgressStore {
	if retention <= 0 {
		retention = repository.DefaultRetention
	}
	return &ProgressStore{client: client, clock: clk, retention: retention}
}

func progressKey(id string) string {
	return progressKeyPrefix + id
}

// Save stores a new split payment.
func (s *ProgressStore) Save(ctx context.Context, entry *repository.StoredProgress) error {
	data, err := s.encode(entry)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, progressKey(entry.Progress.ID), data, s.retention).Result()
	if err != nil {
		return fmt.Errorf("save progress %s: %w", entry.Progress.ID, err)
	}
	if !ok {
		return repository.ErrAlreadyExists
	}
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
	data, err := s.client.Get(ctx, progressKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get progress %s: %w", id, err)
	}

	var entry repository.StoredProgress
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode progress %s: %w", id, err)
	}
	if entry.Progress == nil {
		return nil, repository.ErrNotFound
	}
	return &entry, nil
}

// Update replaces an existing split payment.
func (s *ProgressStore) Update(ctx context.Context, entry *repository.StoredProgress) error {
	data, err := s.encode(entry)
	if err != nil {
		return err
	}

	ok, err := s.client.SetXX(ctx, progressKey(entry.Progress.ID), data, s.retention).Result()
	if err != nil {
		return fmt.Errorf("update progress %s: %w", entry.Progress.ID, err)
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a split payment.
func (s *ProgressStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, progressKey(id)).Err()
}

// Exists reports whether a split payment is stored.
func (s *ProgressStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, progressKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *ProgressStore) encode(entry *repository.StoredProgress) ([]byte, error) {
	stored := repository.StoredProgress{
		Progress:  entry.Progress,
		SessionID: entry.SessionID,
		StoredAt:  s.clock.Now(),
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode progress %s: %w", entry.Progress.ID, err)
	}
	return data, nil
}
