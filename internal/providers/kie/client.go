// Package kie integrates the Kie.ai task API. Tasks are created with a
// callback URL and resolved exclusively through the webhook receiver; Kie has
// no pull path enabled here.
package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"finestudio/internal/domain"
	"finestudio/internal/providers"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("kie: api key is required")

// Options configures the Kie task client.
type Options struct {
	APIKey         string
	BaseURL        string
	CallbackURL    string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Kie task endpoints.
type Client struct {
	apiKey      string
	baseURL     string
	callbackURL string
	httpClient  *http.Client
}

type createTaskRequest struct {
	Model       string          `json:"model"`
	Input       json.RawMessage `json:"input"`
	CallBackURL string          `json:"callBackUrl,omitempty"`
}

type createTaskResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

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
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.kie.ai"
	}
	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		callbackURL: strings.TrimSpace(opts.CallbackURL),
		httpClient:  httpClient,
	}
}

// Name implements providers.Adapter.
func (c *Client) Name() string { return "kie" }

// Configured reports whether the client can perform remote calls.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Submit creates a task and returns the provider-assigned task id.
func (c *Client) Submit(ctx context.Context, req providers.SubmitRequest) (string, error) {
	if !c.Configured() {
		return "", ErrMissingAPIKey
	}
	input := req.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	payload := createTaskRequest{
		Model:       strings.TrimPrefix(req.ModelID, "kie/"),
		Input:       input,
		CallBackURL: c.callbackURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("kie: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/jobs/createTask", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("kie: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("kie: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("kie: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", &domain.ProviderError{Provider: c.Name(), Message: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}
	var decoded createTaskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("kie: decode response: %w", err)
	}
	if decoded.Code != 200 {
		return "", &domain.ProviderError{Provider: c.Name(), Message: decoded.Msg}
	}
	if decoded.Data.TaskID == "" {
		return "", errors.New("kie: empty task id")
	}
	return decoded.Data.TaskID, nil
}

var _ providers.Adapter = (*Client)(nil)
