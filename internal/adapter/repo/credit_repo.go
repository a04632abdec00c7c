package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"finestudio/internal/domain"
)

// CreditRepositoryPG implements domain.CreditRepository on PostgreSQL.
type CreditRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCreditRepository creates a new credit ledger backed by PostgreSQL.
func NewCreditRepository(pool *pgxpool.Pool) *CreditRepositoryPG {
	return &CreditRepositoryPG{pool: pool}
}

// Balance sums the owner's ledger.
func (r *CreditRepositoryPG) Balance(ctx context.Context, ownerID string) (int64, error) {
	query := `
SELECT COALESCE(SUM(amount), 0)
FROM credit_transactions
WHERE owner_id = $1;
`
	var balance int64
	if err := r.pool.QueryRow(ctx, query, ownerID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// Record appends a ledger entry.
func (r *CreditRepositoryPG) Record(ctx context.Context, tx *domain.CreditTransaction) error {
	query := `
INSERT INTO credit_transactions (id, owner_id, amount, reason, request_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.pool.Exec(ctx, query,
		tx.ID,
		tx.OwnerID,
		tx.Amount,
		tx.Reason,
		tx.RequestID,
		tx.CreatedAt,
	)
	return err
}

var _ domain.CreditRepository = (*CreditRepositoryPG)(nil)
