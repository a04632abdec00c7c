package domain

import (
	"context"
	"time"
)

// JobFilter narrows a job listing. Since bounds the visibility window; the
// zero value disables the bound. Kind and ProjectID are optional equality
// filters.
type JobFilter struct {
	Kind      JobKind
	ProjectID string
	Since     time.Time
}

// JobRepository defines persistence for job entities. MarkCompleted and
// MarkFailed apply a compare-and-set transition out of pending: when the job
// is already terminal they are no-ops returning the stored record unchanged,
// so duplicate webhook deliveries and poll/webhook races converge on a single
// terminal value. The returned bool reports whether this call performed the
// transition; callers must drive side effects (refunds, counters) off it, not
// off the resulting status.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByRequestID(ctx context.Context, requestID string) (*Job, error)
	MarkCompleted(ctx context.Context, requestID string, result []byte) (*Job, bool, error)
	MarkFailed(ctx context.Context, requestID string, message string) (*Job, bool, error)
	List(ctx context.Context, ownerID string, f JobFilter) ([]Job, error)
	ListPending(ctx context.Context, before time.Time) ([]Job, error)
}

// CreditRepository handles the credit ledger.
type CreditRepository interface {
	Balance(ctx context.Context, ownerID string) (int64, error)
	Record(ctx context.Context, tx *CreditTransaction) error
}
