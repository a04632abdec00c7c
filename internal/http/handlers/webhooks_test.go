package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"finestudio/internal/domain"
)

func submitTracked(t *testing.T, e *env, ownerID string) string {
	t.Helper()
	e.grant(t, ownerID, 20)
	rec := e.do(t, http.MethodPost, "/v1/jobs", ownerID, map[string]any{
		"model_id": "fal-ai/flux/dev",
		"kind":     "image",
		"input":    map[string]string{"prompt": "a red fox"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit: status %d, body %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		RequestID string `json:"request_id"`
	}
	decode(t, rec, &payload)
	return payload.RequestID
}

func deliverWebhook(t *testing.T, e *env, provider, body string) *struct {
	Code      int
	JobStatus string
} {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/webhooks/"+provider, "", json.RawMessage(body))
	out := &struct {
		Code      int
		JobStatus string
	}{Code: rec.Code}
	if rec.Code == http.StatusOK {
		var payload struct {
			JobStatus string `json:"job_status"`
		}
		decode(t, rec, &payload)
		out.JobStatus = payload.JobStatus
	}
	return out
}

func TestWebhookCompletesJob(t *testing.T) {
	e := newEnv(t)
	requestID := submitTracked(t, e, "user-1")

	body := `{"request_id":"` + requestID + `","status":"OK","payload":{"url":"https://cdn.example.com/out.png"}}`
	first := deliverWebhook(t, e, "fal", body)
	if first.Code != http.StatusOK || first.JobStatus != "completed" {
		t.Fatalf("first delivery: %+v", first)
	}

	job, err := e.jobs.GetByRequestID(context.Background(), requestID)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if job.Status != domain.JobStatusCompleted || job.CompletedAt == nil {
		t.Fatalf("job not completed: %+v", job)
	}
}

func TestWebhookRedeliveryIsIdempotent(t *testing.T) {
	e := newEnv(t)
	requestID := submitTracked(t, e, "user-1")

	body := `{"request_id":"` + requestID + `","status":"OK","payload":{"url":"https://cdn.example.com/out.png"}}`
	if out := deliverWebhook(t, e, "fal", body); out.Code != http.StatusOK {
		t.Fatalf("first delivery: %+v", out)
	}
	job, _ := e.jobs.GetByRequestID(context.Background(), requestID)
	completedAt := *job.CompletedAt

	second := deliverWebhook(t, e, "fal", body)
	if second.Code != http.StatusOK || second.JobStatus != "completed" {
		t.Fatalf("redelivery must succeed unchanged: %+v", second)
	}
	job, _ = e.jobs.GetByRequestID(context.Background(), requestID)
	if !job.CompletedAt.Equal(completedAt) {
		t.Fatal("redelivery mutated the job")
	}
}

func TestWebhookFailureRefundsCredits(t *testing.T) {
	e := newEnv(t)
	requestID := submitTracked(t, e, "user-1")
	before, _ := e.credits.Balance(context.Background(), "user-1")

	body := `{"request_id":"` + requestID + `","status":"ERROR","error":"nsfw content detected"}`
	out := deliverWebhook(t, e, "fal", body)
	if out.Code != http.StatusOK || out.JobStatus != "failed" {
		t.Fatalf("failure delivery: %+v", out)
	}

	job, _ := e.jobs.GetByRequestID(context.Background(), requestID)
	if job.ErrorMessage != "nsfw content detected" {
		t.Fatalf("error message not recorded: %+v", job)
	}
	after, _ := e.credits.Balance(context.Background(), "user-1")
	if after != before+1 {
		t.Fatalf("failed image job must refund 1 credit, balance went %d -> %d", before, after)
	}
}

func TestWebhookUnknownRequestID(t *testing.T) {
	e := newEnv(t)
	out := deliverWebhook(t, e, "fal", `{"request_id":"ghost","status":"OK","payload":{}}`)
	if out.Code != http.StatusNotFound {
		t.Fatalf("status %d", out.Code)
	}
}

func TestWebhookUnknownProvider(t *testing.T) {
	e := newEnv(t)
	out := deliverWebhook(t, e, "acme", `{}`)
	if out.Code != http.StatusNotFound {
		t.Fatalf("status %d", out.Code)
	}
}

func TestWebhookMalformedBody(t *testing.T) {
	e := newEnv(t)
	out := deliverWebhook(t, e, "fal", `{"status":"OK"}`)
	if out.Code != http.StatusBadRequest {
		t.Fatalf("status %d", out.Code)
	}
}

func TestKieWebhook(t *testing.T) {
	e := newEnv(t)
	requestID := submitTracked(t, e, "user-1")

	body := `{"code":200,"data":{"taskId":"` + requestID + `","state":"success","resultJson":{"resultUrls":["https://cdn.example.com/clip.mp4"]}}}`
	out := deliverWebhook(t, e, "kie", body)
	if out.Code != http.StatusOK || out.JobStatus != "completed" {
		t.Fatalf("kie delivery: %+v", out)
	}
}
