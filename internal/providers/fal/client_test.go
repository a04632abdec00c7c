package fal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"finestudio/internal/domain"
	"finestudio/internal/providers"
)

func TestSubmitReturnsRequestID(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"request_id": "req-123"})
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "secret", QueueBaseURL: srv.URL})
	requestID, err := c.Submit(context.Background(), providers.SubmitRequest{
		ModelID: "fal-ai/flux/dev",
		Input:   json.RawMessage(`{"prompt":"a red fox"}`),
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if requestID != "req-123" {
		t.Fatalf("request id mismatch: %q", requestID)
	}
	if gotPath != "/fal-ai/flux/dev" {
		t.Fatalf("path mismatch: %q", gotPath)
	}
	if gotAuth != "Key secret" {
		t.Fatalf("authorization mismatch: %q", gotAuth)
	}
	if gotBody["prompt"] != "a red fox" {
		t.Fatalf("body mismatch: %v", gotBody)
	}
}

func TestSubmitWithoutCredentials(t *testing.T) {
	c := NewClient(Options{})
	if c.Configured() {
		t.Fatal("client without key reports configured")
	}
	_, err := c.Submit(context.Background(), providers.SubmitRequest{ModelID: "fal-ai/flux/dev"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSubmitRejectionIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "prompt too long"})
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "secret", QueueBaseURL: srv.URL})
	_, err := c.Submit(context.Background(), providers.SubmitRequest{ModelID: "fal-ai/flux/dev"})
	var providerErr *domain.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.Message != "prompt too long" {
		t.Fatalf("message mismatch: %q", providerErr.Message)
	}
}

func TestResolveWhileQueued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fal-ai/flux/dev/requests/req-1/status" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "IN_PROGRESS", "queue_position": 0})
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "secret", QueueBaseURL: srv.URL})
	outcome, err := c.Resolve(context.Background(), "fal-ai/flux/dev", "req-1")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if outcome.Terminal() {
		t.Fatalf("queued request resolved terminal: %+v", outcome)
	}
}

func TestResolveCompletedFetchesResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fal-ai/flux/dev/requests/req-1/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "COMPLETED"})
	})
	mux.HandleFunc("/fal-ai/flux/dev/requests/req-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"images": []map[string]string{{"url": "https://x/y.png"}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(Options{APIKey: "secret", QueueBaseURL: srv.URL})
	outcome, err := c.Resolve(context.Background(), "fal-ai/flux/dev", "req-1")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if outcome.Status != domain.JobStatusCompleted {
		t.Fatalf("status mismatch: %q", outcome.Status)
	}
	var result struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	}
	if err := json.Unmarshal(outcome.Result, &result); err != nil {
		t.Fatalf("result not decodable: %v", err)
	}
	if len(result.Images) != 1 || result.Images[0].URL != "https://x/y.png" {
		t.Fatalf("result mismatch: %+v", result)
	}
}

func TestParseWebhook(t *testing.T) {
	requestID, outcome, err := ParseWebhook([]byte(`{
		"request_id": "req-1",
		"status": "OK",
		"payload": {"images":[{"url":"https://x/y.png"}]}
	}`))
	if err != nil {
		t.Fatalf("ParseWebhook returned error: %v", err)
	}
	if requestID != "req-1" || outcome.Status != domain.JobStatusCompleted {
		t.Fatalf("unexpected parse: %q %+v", requestID, outcome)
	}

	requestID, outcome, err = ParseWebhook([]byte(`{
		"request_id": "req-2",
		"status": "ERROR",
		"error": "nsfw filter triggered"
	}`))
	if err != nil {
		t.Fatalf("ParseWebhook returned error: %v", err)
	}
	if requestID != "req-2" || outcome.Status != domain.JobStatusFailed || outcome.Error != "nsfw filter triggered" {
		t.Fatalf("unexpected parse: %q %+v", requestID, outcome)
	}

	if _, _, err := ParseWebhook([]byte(`{"status":"OK"}`)); err == nil {
		t.Fatal("webhook without request_id accepted")
	}
	if _, _, err := ParseWebhook([]byte(`not json`)); err == nil {
		t.Fatal("malformed webhook accepted")
	}
}
