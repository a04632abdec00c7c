package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"finestudio/internal/domain"
	"finestudio/internal/metrics"
	"finestudio/internal/providers"
	"finestudio/internal/providers/fal"
	"finestudio/internal/providers/kie"
)

const maxWebhookBody = 4 << 20

// Webhook is the push path: a provider reports a terminal outcome for a
// request id. Redeliveries resolve to the same 200 because the underlying
// transition is idempotent.
func (a *App) Webhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		a.webhookResult(provider, metrics.WebhookMalformed)
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable payload")
		return
	}

	var requestID string
	var outcome *providers.Outcome
	switch provider {
	case "fal":
		requestID, outcome, err = fal.ParseWebhook(body)
	case "kie":
		requestID, outcome, err = kie.ParseWebhook(body)
	default:
		a.error(w, http.StatusNotFound, "not_found", "unknown provider")
		return
	}
	if err != nil {
		a.webhookResult(provider, metrics.WebhookMalformed)
		a.Logger.Warn().Err(err).Str("provider", provider).Msg("malformed webhook rejected")
		a.error(w, http.StatusBadRequest, "bad_request", "malformed payload")
		return
	}

	job, applied, err := a.Jobs.ResolveOutcome(r.Context(), requestID, outcome)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.webhookResult(provider, metrics.WebhookUnknown)
			a.error(w, http.StatusNotFound, "not_found", "unknown request id")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to apply outcome")
		return
	}
	if applied {
		a.webhookResult(provider, metrics.WebhookApplied)
	} else {
		a.webhookResult(provider, metrics.WebhookDuplicate)
	}
	a.json(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"request_id": job.RequestID,
		"job_status": job.Status,
	})
}

func (a *App) webhookResult(provider, result string) {
	if a.Metrics == nil {
		return
	}
	a.Metrics.WebhookDeliveries.WithLabelValues(provider, result).Inc()
}
