// Package openrouter implements models.ReasoningClient against the
// OpenRouter chat-completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/mavalente92/debatelens/internal/ai"
	"github.com/mavalente92/debatelens/internal/config"
	"github.com/mavalente92/debatelens/pkg/models"
)

const maxRetries = 3

// Client calls the OpenRouter chat-completions endpoint. Transient failures
// (network errors, 429, 5xx) are retried with exponential backoff; a model
// rejection surfaces as ai.ErrModelRejected and is never retried here, since
// the orchestrator handles model fallback.
type Client struct {
	cfg        config.OpenRouterConfig
	httpClient *http.Client
}

// NewClient creates a Client from config.
func NewClient(cfg config.OpenRouterConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// NewClientWithHTTP creates a Client with a custom http.Client (for testing).
func NewClientWithHTTP(cfg config.OpenRouterConfig, httpClient *http.Client) *Client {
	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) Name() string { return "openrouter" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Complete sends one chat-completion request and returns the assistant text.
func (c *Client) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if model == "" {
		model = c.cfg.DefaultModel
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		TopP:        0.9,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	var content string
	op := func() error {
		content, err = c.doRequest(ctx, body)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return content, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) (string, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://debatelens.app")
	req.Header.Set("X-Title", "DebateLens")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level failure: retryable.
		return "", fmt.Errorf("%w: %v", ai.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("%w: decode: %v", ai.ErrInvalidResponse, err))
	}
	if parsed.Error != nil {
		return "", backoff.Permanent(fmt.Errorf("%w: %s", ai.ErrInvalidResponse, parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", backoff.Permanent(ai.ErrInvalidResponse)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// classifyStatus maps an HTTP error status to a retryable or permanent error.
func classifyStatus(status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: http %d: %s", ai.ErrProviderUnavailable, status, snippet)
	case status == http.StatusNotFound || strings.Contains(strings.ToLower(snippet), "model"):
		return backoff.Permanent(fmt.Errorf("%w: http %d: %s", ai.ErrModelRejected, status, snippet))
	default:
		return backoff.Permanent(fmt.Errorf("openrouter: http %d: %s", status, snippet))
	}
}

var _ models.ReasoningClient = (*Client)(nil)
