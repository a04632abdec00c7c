package kie

import (
	"encoding/json"
	"errors"
	"fmt"

	"finestudio/internal/domain"
	"finestudio/internal/providers"
)

const (
	taskStateSuccess = "success"
	taskStateFail    = "fail"
)

type webhookPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID     string          `json:"taskId"`
		State      string          `json:"state"`
		ResultJSON json.RawMessage `json:"resultJson"`
		FailMsg    string          `json:"failMsg"`
	} `json:"data"`
}

// ParseWebhook decodes a Kie task callback into the task id and the terminal
// outcome it reports.
func ParseWebhook(body []byte) (string, *providers.Outcome, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil, fmt.Errorf("kie: decode webhook: %w", err)
	}
	if payload.Data.TaskID == "" {
		return "", nil, errors.New("kie: webhook missing taskId")
	}
	switch payload.Data.State {
	case taskStateSuccess:
		return payload.Data.TaskID, &providers.Outcome{
			Status: domain.JobStatusCompleted,
			Result: payload.Data.ResultJSON,
		}, nil
	case taskStateFail:
		message := payload.Data.FailMsg
		if message == "" {
			message = payload.Msg
		}
		if message == "" {
			message = "task failed"
		}
		return payload.Data.TaskID, &providers.Outcome{
			Status: domain.JobStatusFailed,
			Error:  message,
		}, nil
	default:
		return "", nil, fmt.Errorf("kie: webhook state %q", payload.Data.State)
	}
}
