// Package store provides in-memory implementations of the domain
// repositories. They back the development mode without a database and give
// tests the same transition semantics as the PostgreSQL adapters.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"finestudio/internal/domain"
)

// JobStore is a mutex-guarded domain.JobRepository keyed by request id.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

// NewJobStore returns an empty store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*domain.Job)}
}

// Create inserts a new job, failing with domain.ErrConflict when the request
// id is already present. The stored record is never mutated by the caller.
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.RequestID]; exists {
		return domain.ErrConflict
	}
	s.jobs[job.RequestID] = job.Clone()
	return nil
}

// GetByRequestID returns a copy of the stored job or domain.ErrNotFound.
func (s *JobStore) GetByRequestID(ctx context.Context, requestID string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[requestID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

// MarkCompleted transitions pending to completed. Already-terminal jobs are
// returned unchanged with applied=false so duplicate resolutions are no-ops.
func (s *JobStore) MarkCompleted(ctx context.Context, requestID string, result []byte) (*domain.Job, bool, error) {
	return s.transition(ctx, requestID, func(job *domain.Job) {
		job.Status = domain.JobStatusCompleted
		job.Result = append([]byte(nil), result...)
	})
}

// MarkFailed transitions pending to failed. Already-terminal jobs are
// returned unchanged with applied=false.
func (s *JobStore) MarkFailed(ctx context.Context, requestID string, message string) (*domain.Job, bool, error) {
	return s.transition(ctx, requestID, func(job *domain.Job) {
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = message
	})
}

func (s *JobStore) transition(ctx context.Context, requestID string, apply func(*domain.Job)) (*domain.Job, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[requestID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	applied := job.Status == domain.JobStatusPending
	if applied {
		apply(job)
		now := time.Now().UTC()
		job.CompletedAt = &now
	}
	return job.Clone(), applied, nil
}

// List returns the owner's jobs newest first, applying the filter.
func (s *JobStore) List(ctx context.Context, ownerID string, f domain.JobFilter) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var jobs []domain.Job
	for _, job := range s.jobs {
		if job.OwnerID != ownerID {
			continue
		}
		if !f.Since.IsZero() && job.CreatedAt.Before(f.Since) {
			continue
		}
		if f.Kind != "" && job.Kind != f.Kind {
			continue
		}
		if f.ProjectID != "" && job.ProjectID() != f.ProjectID {
			continue
		}
		jobs = append(jobs, *job.Clone())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// ListPending returns pending jobs created before the cutoff, oldest first.
func (s *JobStore) ListPending(ctx context.Context, before time.Time) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var jobs []domain.Job
	for _, job := range s.jobs {
		if job.Status != domain.JobStatusPending || !job.CreatedAt.Before(before) {
			continue
		}
		jobs = append(jobs, *job.Clone())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

var _ domain.JobRepository = (*JobStore)(nil)

// CreditLedger is an in-memory domain.CreditRepository.
type CreditLedger struct {
	mu  sync.RWMutex
	txs map[string][]domain.CreditTransaction
}

// NewCreditLedger returns an empty ledger.
func NewCreditLedger() *CreditLedger {
	return &CreditLedger{txs: make(map[string][]domain.CreditTransaction)}
}

// Balance sums the owner's ledger.
func (l *CreditLedger) Balance(ctx context.Context, ownerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var balance int64
	for _, tx := range l.txs[ownerID] {
		balance += tx.Amount
	}
	return balance, nil
}

// Record appends a ledger entry.
func (l *CreditLedger) Record(ctx context.Context, tx *domain.CreditTransaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs[tx.OwnerID] = append(l.txs[tx.OwnerID], *tx)
	return nil
}

var _ domain.CreditRepository = (*CreditLedger)(nil)
