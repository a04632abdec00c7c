package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"finestudio/internal/domain"
	"finestudio/internal/middleware"
)

type submitJobRequest struct {
	ModelID string          `json:"model_id"`
	Kind    domain.JobKind  `json:"kind"`
	Input   json.RawMessage `json:"input"`
}

type jobPayload struct {
	ID          string           `json:"id"`
	RequestID   string           `json:"request_id"`
	ModelID     string           `json:"model_id"`
	Kind        domain.JobKind   `json:"kind"`
	Status      domain.JobStatus `json:"status"`
	Result      json.RawMessage  `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

func jobToPayload(job *domain.Job) jobPayload {
	return jobPayload{
		ID:          job.ID,
		RequestID:   job.RequestID,
		ModelID:     job.ModelID,
		Kind:        job.Kind,
		Status:      job.Status,
		Result:      job.Result,
		Error:       job.ErrorMessage,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
}

// SubmitJob accepts a generation request, forwards it to the provider and
// answers 202 with the pending job once the provider acknowledged it.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	input := withLocale(req.Input, middleware.LocaleFromContext(r.Context()))

	job, err := a.Jobs.Submit(r.Context(), ownerID, req.ModelID, req.Kind, input)
	if err != nil {
		a.submitError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, jobToPayload(job))
}

func (a *App) submitError(w http.ResponseWriter, err error) {
	var providerErr *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits for this generation")
	case errors.Is(err, domain.ErrNotConfigured):
		a.error(w, http.StatusServiceUnavailable, "provider_not_configured", err.Error())
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", "request id already tracked")
	case errors.As(err, &providerErr):
		a.error(w, http.StatusFailedDependency, "provider_error", providerErr.Message)
	default:
		a.error(w, http.StatusInternalServerError, "internal", "failed to submit job")
	}
}

// GetJob returns the owner's job for a request id.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	requestID := chi.URLParam(r, "request_id")
	if requestID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "request_id required")
		return
	}
	job, err := a.Jobs.Get(r.Context(), ownerID, requestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, jobToPayload(job))
}

// ListJobs returns the owner's jobs within the rolling visibility window,
// newest first. Optional query params narrow by kind or project id.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	filter := domain.JobFilter{
		Kind:      domain.JobKind(r.URL.Query().Get("kind")),
		ProjectID: r.URL.Query().Get("project_id"),
		Since:     time.Now().Add(-a.Config.VisibilityWindow),
	}
	if filter.Kind != "" && !domain.KnownKind(filter.Kind) {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported kind")
		return
	}
	jobs, err := a.Jobs.List(r.Context(), ownerID, filter)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	payloads := make([]jobPayload, 0, len(jobs))
	for i := range jobs {
		payloads = append(payloads, jobToPayload(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": payloads})
}

// withLocale embeds the resolved request locale into the input metadata when
// the caller did not set one, so providers can localize prompts.
func withLocale(input json.RawMessage, locale string) json.RawMessage {
	if locale == "" || len(input) == 0 {
		return input
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(input, &fields); err != nil {
		return input
	}
	if _, ok := fields["locale"]; ok {
		return input
	}
	fields["locale"] = json.RawMessage(`"` + locale + `"`)
	merged, err := json.Marshal(fields)
	if err != nil {
		return input
	}
	return merged
}
