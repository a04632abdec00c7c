// Package openrouter integrates the OpenRouter chat completions API. The API
// is synchronous, so Submit performs the whole call and caches the outcome
// under a locally generated request id; Resolve returns it immediately. The
// cache is session-scoped and never persisted.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finestudio/internal/domain"
	"finestudio/internal/providers"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("openrouter: api key is required")

// Options configures the OpenRouter client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the OpenRouter completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	outcomes map[string]*providers.Outcome
}

type submitInput struct {
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		outcomes:   make(map[string]*providers.Outcome),
	}
}

// Name implements providers.Adapter.
func (c *Client) Name() string { return "openrouter" }

// Configured reports whether the client can perform remote calls.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Immediate reports that submissions complete synchronously; callers resolve
// the outcome right after Submit instead of waiting on a callback.
func (c *Client) Immediate() bool { return true }

// Submit runs the completion and returns a generated request id whose outcome
// is immediately resolvable. A provider failure returns an error and caches
// nothing, so no job is ever recorded for a rejected submission.
func (c *Client) Submit(ctx context.Context, req providers.SubmitRequest) (string, error) {
	if !c.Configured() {
		return "", ErrMissingAPIKey
	}
	var input submitInput
	if err := json.Unmarshal(req.Input, &input); err != nil {
		return "", fmt.Errorf("openrouter: decode input: %w", err)
	}
	if strings.TrimSpace(input.Prompt) == "" {
		return "", errors.New("openrouter: prompt is required")
	}
	payload := chatRequest{Model: strings.TrimPrefix(req.ModelID, "openrouter/")}
	if input.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: input.System})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: input.Prompt})

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("openrouter: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openrouter: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openrouter: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openrouter: read response: %w", err)
	}
	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("openrouter: decode response: %w", err)
	}
	if resp.StatusCode >= 300 || decoded.Error != nil {
		message := fmt.Sprintf("status %d", resp.StatusCode)
		if decoded.Error != nil && decoded.Error.Message != "" {
			message = decoded.Error.Message
		}
		return "", &domain.ProviderError{Provider: c.Name(), Message: message}
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openrouter: empty completion")
	}

	result, err := json.Marshal(map[string]string{"text": decoded.Choices[0].Message.Content})
	if err != nil {
		return "", fmt.Errorf("openrouter: encode result: %w", err)
	}
	requestID := uuid.NewString()
	c.mu.Lock()
	c.outcomes[requestID] = &providers.Outcome{
		Status: domain.JobStatusCompleted,
		Result: result,
	}
	c.mu.Unlock()
	return requestID, nil
}

// Resolve returns the cached outcome for a request id issued by Submit. It
// implements providers.Resolver.
func (c *Client) Resolve(ctx context.Context, modelID, requestID string) (*providers.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	outcome, ok := c.outcomes[requestID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("openrouter: unknown request %q: %w", requestID, domain.ErrNotFound)
	}
	return outcome, nil
}

var (
	_ providers.Adapter   = (*Client)(nil)
	_ providers.Resolver  = (*Client)(nil)
	_ providers.Immediate = (*Client)(nil)
)
