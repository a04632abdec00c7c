package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"finestudio/internal/domain"
)

func newJob(requestID, ownerID string, createdAt time.Time) *domain.Job {
	return &domain.Job{
		ID:        "job-" + requestID,
		RequestID: requestID,
		OwnerID:   ownerID,
		ModelID:   "fal-ai/flux/dev",
		Kind:      domain.JobKindImage,
		Status:    domain.JobStatusPending,
		Input:     json.RawMessage(`{"prompt":"a capy"}`),
		CreatedAt: createdAt,
	}
}

func TestCreateAndGet(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	job := newJob("r1", "u1", time.Now())
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	got, err := s.GetByRequestID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRequestID returned error: %v", err)
	}
	if got.Status != domain.JobStatusPending {
		t.Fatalf("status mismatch: got %q", got.Status)
	}
	if got.CompletedAt != nil || got.Result != nil || got.ErrorMessage != "" {
		t.Fatalf("pending job must have no terminal fields: %+v", got)
	}
}

func TestCreateDuplicateRequestID(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	if err := s.Create(ctx, newJob("r1", "u1", time.Now())); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	err := s.Create(ctx, newJob("r1", "u2", time.Now()))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// The original record is untouched.
	got, err := s.GetByRequestID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRequestID returned error: %v", err)
	}
	if got.OwnerID != "u1" {
		t.Fatalf("original job was overwritten: owner %q", got.OwnerID)
	}
}

func TestGetUnknownRequestID(t *testing.T) {
	s := NewJobStore()
	if _, err := s.GetByRequestID(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkCompletedSetsTerminalFields(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	if err := s.Create(ctx, newJob("r1", "u1", time.Now())); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	result := []byte(`{"url":"https://x/y.png"}`)
	job, applied, err := s.MarkCompleted(ctx, "r1", result)
	if err != nil {
		t.Fatalf("MarkCompleted returned error: %v", err)
	}
	if !applied {
		t.Fatal("first terminal transition must report applied")
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status mismatch: got %q", job.Status)
	}
	if string(job.Result) != string(result) {
		t.Fatalf("result mismatch: got %s", job.Result)
	}
	if job.CompletedAt == nil {
		t.Fatal("CompletedAt not set on terminal transition")
	}
	if job.ErrorMessage != "" {
		t.Fatalf("result and error must be mutually exclusive: %q", job.ErrorMessage)
	}
}

func TestTerminalTransitionsFirstWriterWins(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	if err := s.Create(ctx, newJob("r1", "u1", time.Now())); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	first, applied, err := s.MarkCompleted(ctx, "r1", []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("MarkCompleted returned error: %v", err)
	}
	if !applied {
		t.Fatal("first writer must report applied")
	}

	second, applied, err := s.MarkFailed(ctx, "r1", "late failure")
	if err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}
	if applied {
		t.Fatal("losing writer must report no transition")
	}
	if second.Status != domain.JobStatusCompleted {
		t.Fatalf("terminal state changed by second writer: %q", second.Status)
	}
	if second.ErrorMessage != "" {
		t.Fatalf("error set on completed job: %q", second.ErrorMessage)
	}
	if string(second.Result) != string(first.Result) {
		t.Fatalf("result changed by second writer: %s", second.Result)
	}
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatal("CompletedAt changed by second writer")
	}
}

func TestMarkFailedThenCompletedIsNoOp(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	if err := s.Create(ctx, newJob("r1", "u1", time.Now())); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, _, err := s.MarkFailed(ctx, "r1", "provider exploded"); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}

	job, applied, err := s.MarkCompleted(ctx, "r1", []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("MarkCompleted returned error: %v", err)
	}
	if applied {
		t.Fatal("transition on a terminal job must report not applied")
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("terminal state changed: %q", job.Status)
	}
	if job.ErrorMessage != "provider exploded" {
		t.Fatalf("error message changed: %q", job.ErrorMessage)
	}
	if job.Result != nil {
		t.Fatalf("result set on failed job: %s", job.Result)
	}
}

func TestTransitionUnknownRequestID(t *testing.T) {
	s := NewJobStore()
	if _, _, err := s.MarkCompleted(context.Background(), "nope", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListWindowAndOrdering(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	now := time.Now()
	if err := s.Create(ctx, newJob("old", "u1", now.Add(-25*time.Hour))); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := s.Create(ctx, newJob("recent", "u1", now.Add(-time.Hour))); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := s.Create(ctx, newJob("newest", "u1", now)); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := s.Create(ctx, newJob("other", "u2", now)); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	jobs, err := s.List(ctx, "u1", domain.JobFilter{Since: now.Add(-24 * time.Hour)})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs in window, got %d", len(jobs))
	}
	if jobs[0].RequestID != "newest" || jobs[1].RequestID != "recent" {
		t.Fatalf("ordering mismatch: %q, %q", jobs[0].RequestID, jobs[1].RequestID)
	}
}

func TestListProjectFilter(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	tagged := newJob("r1", "u1", time.Now())
	tagged.Input = json.RawMessage(`{"prompt":"x","project_id":"p1"}`)
	if err := s.Create(ctx, tagged); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := s.Create(ctx, newJob("r2", "u1", time.Now())); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	jobs, err := s.List(ctx, "u1", domain.JobFilter{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].RequestID != "r1" {
		t.Fatalf("project filter mismatch: %+v", jobs)
	}
}

func TestListPending(t *testing.T) {
	s := NewJobStore()
	ctx := context.Background()
	now := time.Now()
	if err := s.Create(ctx, newJob("stale", "u1", now.Add(-10*time.Minute))); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := s.Create(ctx, newJob("fresh", "u1", now)); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	done := newJob("done", "u1", now.Add(-20*time.Minute))
	if err := s.Create(ctx, done); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, _, err := s.MarkCompleted(ctx, "done", nil); err != nil {
		t.Fatalf("MarkCompleted returned error: %v", err)
	}

	pending, err := s.ListPending(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("ListPending returned error: %v", err)
	}
	if len(pending) != 1 || pending[0].RequestID != "stale" {
		t.Fatalf("expected only the stale pending job, got %+v", pending)
	}
}

func TestCreditLedgerBalance(t *testing.T) {
	l := NewCreditLedger()
	ctx := context.Background()
	entries := []int64{100, -10, -1, 5}
	for i, amount := range entries {
		tx := &domain.CreditTransaction{
			ID:      string(rune('a' + i)),
			OwnerID: "u1",
			Amount:  amount,
		}
		if err := l.Record(ctx, tx); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	balance, err := l.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("Balance returned error: %v", err)
	}
	if balance != 94 {
		t.Fatalf("balance mismatch: got %d want 94", balance)
	}
	other, err := l.Balance(ctx, "u2")
	if err != nil {
		t.Fatalf("Balance returned error: %v", err)
	}
	if other != 0 {
		t.Fatalf("empty ledger balance mismatch: got %d", other)
	}
}
