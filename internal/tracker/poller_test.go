package tracker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"finestudio/internal/domain"
)

func terminalJob(requestID string) *domain.Job {
	now := time.Now()
	return &domain.Job{
		ID:          "j-" + requestID,
		RequestID:   requestID,
		Status:      domain.JobStatusCompleted,
		CreatedAt:   now.Add(-time.Minute),
		CompletedAt: &now,
	}
}

func pendingJob(requestID string) *domain.Job {
	return &domain.Job{
		ID:        "j-" + requestID,
		RequestID: requestID,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now(),
	}
}

func TestPollerStopsAfterTerminal(t *testing.T) {
	var fetches atomic.Int64
	fetch := func(ctx context.Context) (*domain.Job, error) {
		if fetches.Add(1) < 3 {
			return pendingJob("r1"), nil
		}
		return terminalJob("r1"), nil
	}

	p := NewPoller(fetch, 5*time.Millisecond)
	updates := p.Start(context.Background())

	var last Update
	for u := range updates {
		if u.Err != nil {
			t.Fatalf("unexpected error update: %v", u.Err)
		}
		last = u
	}
	if !last.Job.Terminal() {
		t.Fatalf("final update is not terminal: %+v", last.Job)
	}

	after := fetches.Load()
	time.Sleep(30 * time.Millisecond)
	if fetches.Load() != after {
		t.Fatalf("poller kept fetching after terminal observation: %d -> %d", after, fetches.Load())
	}
}

func TestPollerFirstFetchIsImmediate(t *testing.T) {
	fetched := make(chan struct{}, 1)
	fetch := func(ctx context.Context) (*domain.Job, error) {
		select {
		case fetched <- struct{}{}:
		default:
		}
		return terminalJob("r1"), nil
	}

	p := NewPoller(fetch, time.Hour)
	updates := p.Start(context.Background())
	select {
	case <-fetched:
	case <-time.After(time.Second):
		t.Fatal("first fetch did not happen immediately")
	}
	for range updates {
	}
}

func TestPollerKeepsPollingThroughErrors(t *testing.T) {
	var fetches atomic.Int64
	fetch := func(ctx context.Context) (*domain.Job, error) {
		switch fetches.Add(1) {
		case 1:
			return nil, errors.New("connection reset")
		case 2:
			return nil, domain.ErrNotFound
		default:
			return terminalJob("r1"), nil
		}
	}

	p := NewPoller(fetch, 5*time.Millisecond)
	updates := p.Start(context.Background())

	var errored int
	var terminal bool
	for u := range updates {
		if u.Err != nil {
			errored++
			continue
		}
		if u.Job.Terminal() {
			terminal = true
		}
	}
	if errored != 2 {
		t.Fatalf("expected 2 transient error updates, got %d", errored)
	}
	if !terminal {
		t.Fatal("poller never surfaced the terminal state")
	}
}

func TestPollerCancelSuppressesInFlightResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	fetch := func(ctx context.Context) (*domain.Job, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return terminalJob("r1"), nil
	}

	p := NewPoller(fetch, 5*time.Millisecond)
	updates := p.Start(context.Background())

	<-started
	p.Cancel()
	close(release) // the fetch finishes only after cancellation

	for u := range updates {
		t.Fatalf("update delivered after Cancel returned: %+v", u)
	}
}

func TestPollerCancelReturnsWithoutReceiver(t *testing.T) {
	fetch := func(ctx context.Context) (*domain.Job, error) {
		return pendingJob("r1"), nil
	}

	p := NewPoller(fetch, time.Millisecond)
	p.Start(context.Background())
	// Give the loop time to block on the send with nobody receiving.
	time.Sleep(10 * time.Millisecond)

	returned := make(chan struct{})
	go func() {
		p.Cancel()
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel blocked while a delivery was pending")
	}
}

func TestPollerCancelStopsInterval(t *testing.T) {
	var fetches atomic.Int64
	fetch := func(ctx context.Context) (*domain.Job, error) {
		fetches.Add(1)
		return pendingJob("r1"), nil
	}

	p := NewPoller(fetch, time.Millisecond)
	updates := p.Start(context.Background())
	go func() {
		for range updates {
		}
	}()

	time.Sleep(10 * time.Millisecond)
	p.Cancel()
	after := fetches.Load()
	time.Sleep(20 * time.Millisecond)
	if fetches.Load() > after+1 {
		t.Fatalf("poller kept fetching after cancel: %d -> %d", after, fetches.Load())
	}
}
