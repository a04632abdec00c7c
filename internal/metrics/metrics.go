// Package metrics exposes Prometheus instrumentation for the job tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook delivery results.
const (
	WebhookApplied   = "applied"
	WebhookDuplicate = "duplicate"
	WebhookMalformed = "malformed"
	WebhookUnknown   = "unknown"
)

// Set holds the collectors incremented by the job service.
type Set struct {
	registry *prometheus.Registry

	JobsSubmitted     *prometheus.CounterVec
	JobsCompleted     *prometheus.CounterVec
	JobsFailed        *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
	AwaitTimeouts     prometheus.Counter
}

// New registers the tracker collectors on a fresh registry.
func New() *Set {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Set{
		registry: registry,
		JobsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finestudio_jobs_submitted_total",
			Help: "Jobs accepted by a provider and recorded pending.",
		}, []string{"provider", "kind"}),
		JobsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finestudio_jobs_completed_total",
			Help: "Jobs resolved to the completed state.",
		}, []string{"provider"}),
		JobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finestudio_jobs_failed_total",
			Help: "Jobs resolved to the failed state.",
		}, []string{"provider"}),
		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finestudio_webhook_deliveries_total",
			Help: "Webhook deliveries by provider and handling result.",
		}, []string{"provider", "result"}),
		AwaitTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "finestudio_await_timeouts_total",
			Help: "Pull-path waits that exceeded their bound.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
