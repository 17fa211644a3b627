// Package summarizer is an HTTP client for an OpenAI-compatible chat
// completions endpoint. The pipeline uses it to turn profile findings into a
// short narrative; it is the only network dependency of a profiling run.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 4 * time.Second
)

// ErrNoAPIKey is returned by Summarize when the client has no credentials.
var ErrNoAPIKey = errors.New("summarizer: api key not configured")

// APIError is a non-2xx response from the completions endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("summarizer: api error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("summarizer: api error: status=%d", e.StatusCode)
}

// Config controls a Client. Zero fields take the package defaults.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

// Client calls the chat completions endpoint with bounded retries.
// Safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	// sleep is replaced in tests to keep retry paths fast.
	sleep func(time.Duration)
}

// New builds a client from cfg, filling defaults for zero fields.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		sleep:       time.Sleep,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Summarize sends the system and user messages and returns the first choice's
// content.
//
// Retries up to the configured attempt limit with doubling, capped delays on
// timeouts, connection errors, 429, and 5xx responses. Other statuses fail
// immediately as an *APIError. Context cancellation wins over retries.
func (c *Client) Summarize(ctx context.Context, system, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	payload, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarizer: marshal request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"

	delay := c.baseDelay
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, retryable, err := c.attempt(ctx, endpoint, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable || attempt == c.maxAttempts {
			break
		}

		c.sleep(delay)
		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}
	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, endpoint string, payload []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("summarizer: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", isRetryableNetErr(err), fmt.Errorf("summarizer: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retry, apiErr
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("summarizer: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", false, errors.New("summarizer: response has no choices")
	}
	return out.Choices[0].Message.Content, false, nil
}

// errorMessage pulls the message out of an error body, tolerating both the
// nested {"error":{"message":...}} shape and a flat {"message":...}.
func errorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 8<<10))
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &envelope)
	if envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return envelope.Message
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}
