// Package fal integrates the Fal.ai queue API: submissions enter a queue and
// are resolved either by polling the status endpoint or by a webhook
// callback.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finestudio/internal/domain"
	"finestudio/internal/providers"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("fal: api key is required")

// Options configures the Fal queue client.
type Options struct {
	APIKey         string
	QueueBaseURL   string
	WebhookURL     string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Fal queue endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	webhookURL string
	httpClient *http.Client
}

type submitResponse struct {
	RequestID string `json:"request_id"`
	StatusURL string `json:"status_url"`
	Detail    any    `json:"detail"`
}

type statusResponse struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
}

const (
	queueStatusInQueue    = "IN_QUEUE"
	queueStatusInProgress = "IN_PROGRESS"
	queueStatusCompleted  = "COMPLETED"
)

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.QueueBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://queue.fal.run"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		webhookURL: strings.TrimSpace(opts.WebhookURL),
		httpClient: httpClient,
	}
}

// Name implements providers.Adapter.
func (c *Client) Name() string { return "fal" }

// Configured reports whether the client can perform remote calls.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Submit enqueues the request and returns the queue-assigned request id.
func (c *Client) Submit(ctx context.Context, req providers.SubmitRequest) (string, error) {
	if !c.Configured() {
		return "", ErrMissingAPIKey
	}
	endpoint := c.baseURL + "/" + strings.Trim(req.ModelID, "/")
	if c.webhookURL != "" {
		endpoint += "?fal_webhook=" + url.QueryEscape(c.webhookURL)
	}
	body := req.Input
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}
	raw, status, err := c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", &domain.ProviderError{Provider: c.Name(), Message: errorDetail(raw, status)}
	}
	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("fal: decode response: %w", err)
	}
	if decoded.RequestID == "" {
		return "", errors.New("fal: empty request id")
	}
	return decoded.RequestID, nil
}

// Resolve queries the queue status for the request and fetches the result
// once the queue reports completion. It implements providers.Resolver.
func (c *Client) Resolve(ctx context.Context, modelID, requestID string) (*providers.Outcome, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}
	base := c.baseURL + "/" + strings.Trim(modelID, "/") + "/requests/" + url.PathEscape(requestID)
	raw, status, err := c.do(ctx, http.MethodGet, base+"/status", nil)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("fal: status %d: %s", status, errorDetail(raw, status))
	}
	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("fal: decode status: %w", err)
	}
	switch decoded.Status {
	case queueStatusInQueue, queueStatusInProgress:
		return &providers.Outcome{Status: domain.JobStatusPending}, nil
	case queueStatusCompleted:
		return c.fetchResult(ctx, base)
	default:
		return nil, fmt.Errorf("fal: unexpected queue status %q", decoded.Status)
	}
}

func (c *Client) fetchResult(ctx context.Context, base string) (*providers.Outcome, error) {
	raw, status, err := c.do(ctx, http.MethodGet, base, nil)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		// A completed queue entry with a failing result fetch is a
		// generation failure reported by the provider.
		return &providers.Outcome{
			Status: domain.JobStatusFailed,
			Error:  errorDetail(raw, status),
		}, nil
	}
	return &providers.Outcome{
		Status: domain.JobStatusCompleted,
		Result: append(json.RawMessage(nil), raw...),
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, 0, fmt.Errorf("fal: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Key "+c.apiKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("fal: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("fal: read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

func errorDetail(raw []byte, status int) string {
	var detail struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil {
		if detail.Message != "" {
			return detail.Message
		}
		if len(detail.Detail) > 0 {
			return strings.Trim(string(detail.Detail), `"`)
		}
	}
	if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("status %d", status)
}

var (
	_ providers.Adapter  = (*Client)(nil)
	_ providers.Resolver = (*Client)(nil)
)
