package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"splitpay/internal/domain"
	"splitpay/internal/repository"
)

// SplitPaymentRepository is a PostgreSQL implementation of repository.SplitPaymentArchive.
type SplitPaymentRepository struct {
	q Querier
}

// NewSplitPaymentRepository creates a new PostgreSQL split payment archive.
func NewSplitPaymentRepository(db *sql.DB) *SplitPaymentRepository {
	return &SplitPaymentRepository{q: db}
}

var _ repository.SplitPaymentArchive = (*SplitPaymentRepository)(nil)

// Archive records a finished split payment.
func (r *SplitPaymentRepository) Archive(ctx context.Context, progress *domain.SplitPaymentProgress) error {
	payload, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("encode split payment %s: %w", progress.ID, err)
	}

	query := `
		INSERT INTO split_payments (id, status, reference, total, message, needs_void, payload, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			message = EXCLUDED.message,
			needs_void = EXCLUDED.needs_void,
			payload = EXCLUDED.payload,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.q.ExecContext(ctx, query,
		progress.ID,
		progress.Status,
		progress.Reference,
		progress.Total.Total.StringFixed(2),
		progress.Message,
		progress.NeedsVoid(),
		payload,
		progress.CreatedAt,
		progress.UpdatedAt,
	)

	return err
}

// ListNeedingVoid returns failed split payments with approved parts, newest first.
func (r *SplitPaymentRepository) ListNeedingVoid(ctx context.Context, limit int) ([]*domain.SplitPaymentProgress, error) {
	query := `
		SELECT payload FROM split_payments
		WHERE needs_void
		ORDER BY finished_at DESC
		LIMIT $1
	`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.SplitPaymentProgress
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var progress domain.SplitPaymentProgress
		if err := json.Unmarshal(payload, &progress); err != nil {
			return nil, fmt.Errorf("decode archived split payment: %w", err)
		}
		result = append(result, &progress)
	}

	return result, rows.Err()
}
