// Package service implements the asynchronous generation job tracker:
// provider submission, pull- and push-path status resolution, and the credit
// accounting around both.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"finestudio/internal/domain"
	"finestudio/internal/metrics"
	"finestudio/internal/providers"
)

// Costs maps a job kind to the credits debited per submission. Kinds absent
// from the map are free.
type Costs map[domain.JobKind]int64

// DefaultCosts mirrors the product pricing tiers.
var DefaultCosts = Costs{
	domain.JobKindImage: 1,
	domain.JobKindAudio: 2,
	domain.JobKindVideo: 10,
}

// Jobs orchestrates the job lifecycle. All terminal transitions funnel
// through the store's compare-and-set, so webhook delivery, pull-path polling
// and the reconciler can race freely on the same request id.
type Jobs struct {
	store    domain.JobRepository
	credits  domain.CreditRepository
	registry *providers.Registry
	metrics  *metrics.Set
	logger   zerolog.Logger
	costs    Costs
}

// NewJobs wires the tracker. credits may be nil when accounting is disabled.
func NewJobs(store domain.JobRepository, credits domain.CreditRepository, registry *providers.Registry, set *metrics.Set, logger zerolog.Logger, costs Costs) *Jobs {
	if costs == nil {
		costs = DefaultCosts
	}
	return &Jobs{
		store:    store,
		credits:  credits,
		registry: registry,
		metrics:  set,
		logger:   logger,
		costs:    costs,
	}
}

// Submit validates the request, charges credits, calls the provider and
// records the pending job keyed by the provider-assigned request id. On any
// failure before or during the provider call no job is created.
func (s *Jobs) Submit(ctx context.Context, ownerID, modelID string, kind domain.JobKind, input json.RawMessage) (*domain.Job, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}
	if modelID == "" {
		return nil, fmt.Errorf("%w: model id is required", domain.ErrInvalidInput)
	}
	if !domain.KnownKind(kind) {
		return nil, fmt.Errorf("%w: unsupported kind %q", domain.ErrInvalidInput, kind)
	}
	if len(input) > 0 && !json.Valid(input) {
		return nil, fmt.Errorf("%w: input is not valid JSON", domain.ErrInvalidInput)
	}

	adapter, ok := s.registry.ForModel(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q", domain.ErrInvalidInput, modelID)
	}
	if !adapter.Configured() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotConfigured, adapter.Name())
	}

	cost := s.costs[kind]
	if cost > 0 && s.credits != nil {
		balance, err := s.credits.Balance(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("check balance: %w", err)
		}
		if balance < cost {
			return nil, domain.ErrInsufficientCredits
		}
	}

	requestID, err := adapter.Submit(ctx, providers.SubmitRequest{
		OwnerID: ownerID,
		ModelID: modelID,
		Kind:    kind,
		Input:   input,
	})
	if err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:        uuid.NewString(),
		RequestID: requestID,
		OwnerID:   ownerID,
		ModelID:   modelID,
		Kind:      kind,
		Status:    domain.JobStatusPending,
		Input:     input,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}
	if cost > 0 && s.credits != nil {
		s.record(ctx, ownerID, requestID, -cost, domain.CreditReasonGeneration)
	}
	if s.metrics != nil {
		s.metrics.JobsSubmitted.WithLabelValues(adapter.Name(), string(kind)).Inc()
	}
	s.logger.Info().
		Str("request_id", requestID).
		Str("model", modelID).
		Str("kind", string(kind)).
		Msg("job submitted")

	// Synchronous providers finish the work inside Submit; resolve the
	// outcome now, since no webhook or reconciler sweep will ever arrive
	// for this request id.
	if im, ok := adapter.(providers.Immediate); ok && im.Immediate() {
		if resolver, ok := adapter.(providers.Resolver); ok {
			outcome, err := resolver.Resolve(ctx, modelID, requestID)
			if err != nil {
				s.logger.Warn().Err(err).Str("request_id", requestID).Msg("immediate resolve failed")
			} else if outcome.Terminal() {
				resolved, _, err := s.ResolveOutcome(ctx, requestID, outcome)
				if err != nil {
					s.logger.Warn().Err(err).Str("request_id", requestID).Msg("immediate outcome not applied")
				} else {
					return resolved, nil
				}
			}
		}
	}
	return job.Clone(), nil
}

// ResolveOutcome applies a terminal provider outcome to the stored job. The
// returned bool reports whether this call performed the transition; false
// means the job was already terminal and the call was an idempotent no-op.
func (s *Jobs) ResolveOutcome(ctx context.Context, requestID string, outcome *providers.Outcome) (*domain.Job, bool, error) {
	if outcome == nil || !outcome.Terminal() {
		return nil, false, fmt.Errorf("%w: outcome is not terminal", domain.ErrInvalidInput)
	}
	existing, err := s.store.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, false, err
	}
	if existing.Terminal() {
		return existing, false, nil
	}

	// A concurrent writer may win the compare-and-set between the read and
	// the transition; the store reports whether this call changed anything,
	// and only the winner runs the refund and counter side effects.
	var job *domain.Job
	var applied bool
	switch outcome.Status {
	case domain.JobStatusCompleted:
		job, applied, err = s.store.MarkCompleted(ctx, requestID, outcome.Result)
	default:
		job, applied, err = s.store.MarkFailed(ctx, requestID, outcome.Error)
	}
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return job, false, nil
	}

	provider := "unknown"
	if adapter, ok := s.registry.ForModel(job.ModelID); ok {
		provider = adapter.Name()
	}
	if job.Status == domain.JobStatusFailed {
		if cost := s.costs[job.Kind]; cost > 0 && s.credits != nil {
			s.record(ctx, job.OwnerID, requestID, cost, domain.CreditReasonRefund)
		}
		if s.metrics != nil {
			s.metrics.JobsFailed.WithLabelValues(provider).Inc()
		}
		s.logger.Warn().Str("request_id", requestID).Str("error", job.ErrorMessage).Msg("job failed")
	} else {
		if s.metrics != nil {
			s.metrics.JobsCompleted.WithLabelValues(provider).Inc()
		}
		s.logger.Info().Str("request_id", requestID).Msg("job completed")
	}
	return job, true, nil
}

// Await is the pull path: it polls the provider's own status endpoint at the
// given interval until a terminal outcome is observed, then applies it.
// Exceeding maxWait fails with domain.ErrTimeout and leaves the job pending
// for later resolution.
func (s *Jobs) Await(ctx context.Context, requestID string, maxWait, pollInterval time.Duration) (*domain.Job, error) {
	job, err := s.store.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return job, nil
	}
	adapter, ok := s.registry.ForModel(job.ModelID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q", domain.ErrInvalidInput, job.ModelID)
	}
	resolver, ok := adapter.(providers.Resolver)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoStatusEndpoint, adapter.Name())
	}

	deadline := time.Now().Add(maxWait)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		outcome, err := resolver.Resolve(ctx, job.ModelID, requestID)
		if err != nil {
			s.logger.Debug().Err(err).Str("request_id", requestID).Msg("pull-path resolve failed, retrying")
		} else if outcome.Terminal() {
			resolved, _, err := s.ResolveOutcome(ctx, requestID, outcome)
			if err != nil {
				return nil, err
			}
			return resolved, nil
		}
		now := time.Now()
		if !now.Before(deadline) {
			if s.metrics != nil {
				s.metrics.AwaitTimeouts.Inc()
			}
			return nil, domain.ErrTimeout
		}
		wait := pollInterval
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		timer.Reset(wait)
	}
}

// ReconcilePending resolves jobs stuck pending longer than olderThan through
// their provider's pull path, if it has one. It returns the number of jobs it
// moved to a terminal state.
func (s *Jobs) ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	pending, err := s.store.ListPending(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for i := range pending {
		job := &pending[i]
		adapter, ok := s.registry.ForModel(job.ModelID)
		if !ok {
			continue
		}
		resolver, ok := adapter.(providers.Resolver)
		if !ok {
			continue
		}
		outcome, err := resolver.Resolve(ctx, job.ModelID, job.RequestID)
		if err != nil {
			s.logger.Warn().Err(err).Str("request_id", job.RequestID).Msg("reconcile resolve failed")
			continue
		}
		if !outcome.Terminal() {
			continue
		}
		if _, applied, err := s.ResolveOutcome(ctx, job.RequestID, outcome); err != nil {
			s.logger.Warn().Err(err).Str("request_id", job.RequestID).Msg("reconcile apply failed")
		} else if applied {
			resolved++
		}
	}
	return resolved, nil
}

// Get returns the owner's job for the request id. Jobs belonging to another
// owner read as not found.
func (s *Jobs) Get(ctx context.Context, ownerID, requestID string) (*domain.Job, error) {
	job, err := s.store.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// List returns the owner's jobs within the filter window, newest first.
func (s *Jobs) List(ctx context.Context, ownerID string, f domain.JobFilter) ([]domain.Job, error) {
	return s.store.List(ctx, ownerID, f)
}

func (s *Jobs) record(ctx context.Context, ownerID, requestID string, amount int64, reason string) {
	tx := &domain.CreditTransaction{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Amount:    amount,
		Reason:    reason,
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.credits.Record(ctx, tx); err != nil {
		// Ledger writes are best-effort around a job that already exists
		// upstream; losing one must not fail the request.
		s.logger.Error().Err(err).Str("request_id", requestID).Str("reason", reason).Msg("credit ledger write failed")
	}
}
