package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func sessionLockKey(sessionID string) string {
	return fmt.Sprintf("lock:session:%s", sessionID)
}

// Acquire attempts to acquire the lock for the given terminal session.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, sessionLockKey(sessionID), "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// Release releases the lock for the given terminal session.
func (s *LockStore) Release(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionLockKey(sessionID)).Err()
}
