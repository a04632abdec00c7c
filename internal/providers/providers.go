// Package providers defines the capability contract implemented by every
// generation provider integration and the registry that routes model ids to
// integrations.
package providers

import (
	"context"
	"encoding/json"
	"strings"

	"finestudio/internal/domain"
)

// SubmitRequest is the normalized submission passed to any adapter.
type SubmitRequest struct {
	OwnerID string
	ModelID string
	Kind    domain.JobKind
	Input   json.RawMessage
}

// Outcome is a provider-reported result for one request id. Status pending
// means the provider has not finished yet.
type Outcome struct {
	Status domain.JobStatus
	Result json.RawMessage
	Error  string
}

// Terminal reports whether the outcome can be applied to the job store.
func (o *Outcome) Terminal() bool {
	return o != nil && (o.Status == domain.JobStatusCompleted || o.Status == domain.JobStatusFailed)
}

// Adapter submits work to one provider. Submit returns the provider-assigned
// request id; on any submission failure no job must be recorded, so adapters
// return an error without side effects. Configured reports whether the
// required credentials are present; unconfigured adapters fail fast before
// touching the network.
type Adapter interface {
	Name() string
	Configured() bool
	Submit(ctx context.Context, req SubmitRequest) (string, error)
}

// Resolver is the optional pull-path capability: querying the provider's own
// status endpoint for a previously submitted request.
type Resolver interface {
	Resolve(ctx context.Context, modelID, requestID string) (*Outcome, error)
}

// Immediate marks adapters whose Submit performs the work synchronously, so
// the outcome is resolvable the moment the request id is issued. The service
// resolves such submissions inline; no webhook or reconciler sweep will ever
// arrive for them.
type Immediate interface {
	Immediate() bool
}

// Registry routes model ids to adapters by prefix, longest prefix first.
type Registry struct {
	prefixes map[string]Adapter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{prefixes: make(map[string]Adapter)}
}

// Register binds a model id prefix to an adapter.
func (r *Registry) Register(prefix string, adapter Adapter) {
	r.prefixes[prefix] = adapter
}

// ForModel returns the adapter whose prefix matches the model id. The longest
// registered prefix wins.
func (r *Registry) ForModel(modelID string) (Adapter, bool) {
	var best Adapter
	bestLen := -1
	for prefix, adapter := range r.prefixes {
		if strings.HasPrefix(modelID, prefix) && len(prefix) > bestLen {
			best = adapter
			bestLen = len(prefix)
		}
	}
	return best, best != nil
}
