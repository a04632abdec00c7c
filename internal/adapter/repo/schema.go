package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"finestudio/internal/sqlinline"
)

// EnsureSchema creates the tables and indexes the repositories expect. Every
// statement is idempotent, so each binary runs it at startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		sqlinline.QCreateJobsTable,
		sqlinline.QCreateJobsOwnerIndex,
		sqlinline.QCreateJobsPendingIndex,
		sqlinline.QCreateCreditTransactionsTable,
		sqlinline.QCreateCreditTransactionsOwnerIndex,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
