package repository

import (
	"context"
	"time"

	"splitpay/internal/domain"
)

// DefaultRetention is how long split payment progress is kept after its last write.
const DefaultRetention = 24 * time.Hour

// StoredProgress is a split payment as kept by a ProgressStore, with the
// bookkeeping that is never returned to status queries.
type StoredProgress struct {
	Progress  *domain.SplitPaymentProgress `json:"progress"`
	SessionID string                       `json:"session_id"`
	StoredAt  time.Time                    `json:"stored_at"`
}

// ProgressStore keeps in-flight and recently finished split payments.
// Entries older than the retention window are eventually dropped.
type ProgressStore interface {
	// Save stores a new split payment. Returns ErrAlreadyExists if the id is taken.
	Save(ctx context.Context, entry *StoredProgress) error

	// Get retrieves a split payment without bookkeeping fields.
	Get(ctx context.Context, id string) (*domain.SplitPaymentProgress, error)

	// GetStored retrieves a split payment with its bookkeeping fields.
	GetStored(ctx context.Context, id string) (*StoredProgress, error)

	// Update replaces an existing split payment. Returns ErrNotFound if absent.
	Update(ctx context.Context, entry *StoredProgress) error

	// Delete removes a split payment. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Exists reports whether a split payment is stored.
	Exists(ctx context.Context, id string) (bool, error)
}

// SessionLocker serializes split payments on one terminal session.
type SessionLocker interface {
	// Acquire takes the lock for sessionID. Returns false if it is already held.
	Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)

	// Release frees the lock for sessionID.
	Release(ctx context.Context, sessionID string) error
}

// SplitPaymentArchive keeps finished split payments for reconciliation.
type SplitPaymentArchive interface {
	// Archive records a finished split payment, replacing any earlier record.
	Archive(ctx context.Context, progress *domain.SplitPaymentProgress) error

	// ListNeedingVoid returns failed split payments that still hold approved
	// parts, newest first.
	ListNeedingVoid(ctx context.Context, limit int) ([]*domain.SplitPaymentProgress, error)
}
