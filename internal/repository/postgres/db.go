package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

const splitPaymentsSchema = `
	CREATE TABLE IF NOT EXISTS split_payments (
		id          TEXT PRIMARY KEY,
		status      TEXT NOT NULL,
		reference   BIGINT NOT NULL,
		total       NUMERIC(12, 2) NOT NULL,
		message     TEXT NOT NULL,
		needs_void  BOOLEAN NOT NULL DEFAULT FALSE,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS split_payments_needs_void_idx
		ON split_payments (finished_at DESC) WHERE needs_void;
`

// EnsureSchema creates the split payment archive table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, splitPaymentsSchema); err != nil {
		return fmt.Errorf("create split_payments schema: %w", err)
	}
	return nil
}
