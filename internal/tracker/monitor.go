package tracker

import (
	"sort"
	"sync"

	"finestudio/internal/domain"
)

// Monitor is a session-scoped registry of optimistic job projections. A UI
// inserts a job the moment submission succeeds so the queue reflects the
// action immediately, then reconciles once an authoritative update arrives
// from the poller or a webhook-driven push. Nothing here is persisted;
// entries that never reconcile vanish with the session.
//
// Monitors are caller-owned: construct one per session and pass it down
// rather than sharing a package global.
type Monitor struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{jobs: make(map[string]domain.Job)}
}

// Add inserts or replaces the optimistic projection for the job's request id.
func (m *Monitor) Add(job domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.RequestID] = *job.Clone()
}

// Reconcile applies an authoritative record. Terminal records remove the
// entry; pending ones refresh the projection. It reports whether the request
// id was being tracked.
func (m *Monitor) Reconcile(job domain.Job) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, known := m.jobs[job.RequestID]
	if job.Terminal() {
		delete(m.jobs, job.RequestID)
		return known
	}
	m.jobs[job.RequestID] = *job.Clone()
	return known
}

// ActiveCount returns the number of tracked jobs still pending.
func (m *Monitor) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusPending {
			count++
		}
	}
	return count
}

// Get returns the tracked projection for a request id.
func (m *Monitor) Get(requestID string) (domain.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[requestID]
	return job, ok
}

// Snapshot returns the tracked projections newest first.
func (m *Monitor) Snapshot() []domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
