package fal

import (
	"encoding/json"
	"errors"
	"fmt"

	"finestudio/internal/domain"
	"finestudio/internal/providers"
)

const (
	webhookStatusOK    = "OK"
	webhookStatusError = "ERROR"
)

type webhookPayload struct {
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
}

// ParseWebhook decodes a Fal completion callback into the request id and the
// terminal outcome it reports.
func ParseWebhook(body []byte) (string, *providers.Outcome, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil, fmt.Errorf("fal: decode webhook: %w", err)
	}
	if payload.RequestID == "" {
		return "", nil, errors.New("fal: webhook missing request_id")
	}
	switch payload.Status {
	case webhookStatusOK:
		return payload.RequestID, &providers.Outcome{
			Status: domain.JobStatusCompleted,
			Result: payload.Payload,
		}, nil
	case webhookStatusError:
		message := payload.Error
		if message == "" {
			message = "generation failed"
		}
		return payload.RequestID, &providers.Outcome{
			Status: domain.JobStatusFailed,
			Error:  message,
		}, nil
	default:
		return "", nil, fmt.Errorf("fal: webhook status %q", payload.Status)
	}
}
