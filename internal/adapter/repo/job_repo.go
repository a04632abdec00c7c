package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"finestudio/internal/domain"
)

const pgUniqueViolation = "23505"

// JobRepositoryPG implements domain.JobRepository on PostgreSQL. Terminal
// transitions rely on a conditional UPDATE so concurrent webhook and poll
// resolution for the same request id resolve first-writer-wins.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new pending job record. A request id already present maps
// to domain.ErrConflict.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, request_id, owner_id, model_id, kind, status, input, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.RequestID,
		job.OwnerID,
		job.ModelID,
		job.Kind,
		job.Status,
		job.Input,
		job.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

// GetByRequestID fetches a job by its provider-assigned request id.
func (r *JobRepositoryPG) GetByRequestID(ctx context.Context, requestID string) (*domain.Job, error) {
	query := selectJob + `WHERE request_id = $1;`
	return scanJob(r.pool.QueryRow(ctx, query, requestID))
}

// MarkCompleted transitions the job to completed if it is still pending and
// returns the stored record either way. The bool reports whether this call
// won the conditional update.
func (r *JobRepositoryPG) MarkCompleted(ctx context.Context, requestID string, result []byte) (*domain.Job, bool, error) {
	query := `
UPDATE jobs
SET status = $2, result = $3, completed_at = now()
WHERE request_id = $1 AND status = $4;
`
	tag, err := r.pool.Exec(ctx, query, requestID, domain.JobStatusCompleted, result, domain.JobStatusPending)
	if err != nil {
		return nil, false, err
	}
	job, err := r.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, false, err
	}
	return job, tag.RowsAffected() > 0, nil
}

// MarkFailed transitions the job to failed if it is still pending and returns
// the stored record either way. The bool reports whether this call won the
// conditional update.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, requestID string, message string) (*domain.Job, bool, error) {
	query := `
UPDATE jobs
SET status = $2, error_message = $3, completed_at = now()
WHERE request_id = $1 AND status = $4;
`
	tag, err := r.pool.Exec(ctx, query, requestID, domain.JobStatusFailed, message, domain.JobStatusPending)
	if err != nil {
		return nil, false, err
	}
	job, err := r.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, false, err
	}
	return job, tag.RowsAffected() > 0, nil
}

// List returns the owner's jobs newest first, bounded by the filter.
func (r *JobRepositoryPG) List(ctx context.Context, ownerID string, f domain.JobFilter) ([]domain.Job, error) {
	query := selectJob + `WHERE owner_id = $1 AND created_at >= $2`
	args := []any{ownerID, f.Since}
	if f.Kind != "" {
		args = append(args, f.Kind)
		query += ` AND kind = $3`
	}
	if f.ProjectID != "" {
		args = append(args, f.ProjectID)
		if f.Kind != "" {
			query += ` AND input->>'project_id' = $4`
		} else {
			query += ` AND input->>'project_id' = $3`
		}
	}
	query += ` ORDER BY created_at DESC;`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListPending returns jobs still pending that were created before the cutoff,
// oldest first. The reconciler uses it to pick up stalled work.
func (r *JobRepositoryPG) ListPending(ctx context.Context, before time.Time) ([]domain.Job, error) {
	query := selectJob + `WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC;`
	rows, err := r.pool.Query(ctx, query, domain.JobStatusPending, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

const selectJob = `
SELECT id, request_id, owner_id, model_id, kind, status, input, result, error_message, created_at, completed_at
FROM jobs
`

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var errMsg *string
	if err := row.Scan(
		&job.ID,
		&job.RequestID,
		&job.OwnerID,
		&job.ModelID,
		&job.Kind,
		&job.Status,
		&job.Input,
		&job.Result,
		&errMsg,
		&job.CreatedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if errMsg != nil {
		job.ErrorMessage = *errMsg
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
