// Package tracker holds the client-side pieces of the job lifecycle: the
// status poller a UI session runs per request id, and the optimistic monitor
// that mirrors submissions before the store confirms them.
package tracker

import (
	"context"
	"sync"
	"time"

	"finestudio/internal/domain"
)

// FetchFunc fetches the current job record, typically from the job store or
// the job query endpoint.
type FetchFunc func(ctx context.Context) (*domain.Job, error)

// Update is one observation delivered by the poller. Exactly one of Job and
// Err is set. A terminal Job is the final update; fetch errors are transient
// and polling continues after them.
type Update struct {
	Job *domain.Job
	Err error
}

// Poller watches a single request id until a terminal state is observed or
// the caller cancels. The first fetch happens immediately, then at a fixed
// interval. Cancel is synchronous: once it returns, no further update is
// delivered, even for a fetch already in flight.
type Poller struct {
	fetch    FetchFunc
	interval time.Duration

	mu        sync.Mutex
	cancelled bool
	cancel    context.CancelFunc
	stop      sync.Once
	done      chan struct{}
	updates   chan Update
}

// NewPoller builds a poller for one request id.
func NewPoller(fetch FetchFunc, interval time.Duration) *Poller {
	return &Poller{
		fetch:    fetch,
		interval: interval,
		done:     make(chan struct{}),
		updates:  make(chan Update),
	}
}

// Start launches the polling loop. The returned channel closes after the
// terminal update is delivered or the poller is cancelled; callers should
// drain it.
func (p *Poller) Start(ctx context.Context) <-chan Update {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	go p.loop(ctx)
	return p.updates
}

// Cancel stops the poller. When it returns, any in-flight fetch result has
// either already been delivered or will be discarded. Cancel never blocks on
// the consumer: closing done releases a deliver stuck on the send before the
// mutex below is taken.
func (p *Poller) Cancel() {
	p.stop.Do(func() { close(p.done) })
	p.mu.Lock()
	p.cancelled = true
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.updates)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-timer.C:
		}
		job, err := p.fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		terminal := err == nil && job.Terminal()
		if !p.deliver(ctx, Update{Job: job, Err: err}) {
			return
		}
		if terminal {
			return
		}
		timer.Reset(p.interval)
	}
}

// deliver hands an update to the consumer unless the poller was cancelled.
// Holding the lock across the send is what makes Cancel's guarantee hold: a
// send either completes before Cancel takes the lock, or aborts when Cancel
// closes done.
func (p *Poller) deliver(ctx context.Context, u Update) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		return false
	}
	select {
	case p.updates <- u:
		return true
	case <-p.done:
		return false
	case <-ctx.Done():
		return false
	}
}
