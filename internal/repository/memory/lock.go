package memory

import (
	"context"
	"sync"
	"time"

	"splitpay/internal/clock"
	"splitpay/internal/repository"
)

// SessionLocker is an in-process repository.SessionLocker.
type SessionLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock clock.Clock
}

// NewSessionLocker creates a new in-memory SessionLocker.
func NewSessionLocker(clk clock.Clock) *SessionLocker {
	return &SessionLocker{held: make(map[string]time.Time), clock: clk}
}

var _ repository.SessionLocker = (*SessionLocker)(nil)

// Acquire takes the lock for sessionID unless it is held and not yet expired.
func (l *SessionLocker) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if until, ok := l.held[sessionID]; ok && now.Before(until) {
		return false, nil
	}
	l.held[sessionID] = now.Add(ttl)
	return true, nil
}

// Release frees the lock for sessionID.
func (l *SessionLocker) Release(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, sessionID)
	return nil
}
