// Package ai wraps the external text-completion service used for story
// enrichment. Every call runs under a named circuit breaker; structured
// responses are validated before they count as a success.
package ai

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

	"github.com/ekaracan/newspulse/app/breaker"
)

const (
	// Per-turn input ceilings applied client-side before sending.
	// ChatInputLimit is the default; callers making embedding-style
	// requests pass EmbeddingInputLimit via Options.MaxInputLength.
	ChatInputLimit      = 3500
	EmbeddingInputLimit = 2000

	standardTimeout = 30 * time.Second
	standardRetries = 2
	fastTimeout     = 15 * time.Second
	fastRetries     = 1
)

// ErrInvalidStructuredResponse marks a completion that could not be
// parsed as the requested JSON object. The breaker accounts it as a
// failure, and the caller's own fallback is preferred over any generic
// breaker fallback.
var ErrInvalidStructuredResponse = errors.New("invalid structured response")

// Client talks to an OpenAI-compatible chat completion endpoint. Two
// transports exist: the standard one trades latency for robustness, the
// fast one is for callers that need a fresh result quickly and tolerate
// hard failure better than delay.
type Client struct {
	endpoint     string
	fastEndpoint string
	apiKey       string
	model        string

	standardClient *http.Client
	fastClient     *http.Client

	registry *breaker.Registry
}

func NewClient(endpoint, fastEndpoint, apiKey, model string, registry *breaker.Registry) *Client {
	return &Client{
		endpoint:       endpoint,
		fastEndpoint:   fastEndpoint,
		apiKey:         apiKey,
		model:          model,
		standardClient: &http.Client{Timeout: standardTimeout},
		fastClient:     &http.Client{Timeout: fastTimeout},
		registry:       registry,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete issues a completion request through the circuit breaker and
// returns the raw response text.
func (c *Client) Complete(ctx context.Context, req Request, opts Options) (string, error) {
	circuit := opts.CircuitName
	if circuit == "" {
		circuit = "ai"
	}

	return breaker.Do(ctx, c.registry, circuit, func(ctx context.Context) (string, error) {
		return c.call(ctx, req, opts)
	}, opts.Fallback)
}

// call runs the request with retries against the selected transport.
func (c *Client) call(ctx context.Context, req Request, opts Options) (string, error) {
	endpoint := c.endpoint
	httpClient := c.standardClient
	retries := standardRetries
	if opts.UseFastClient {
		endpoint = c.fastEndpoint
		httpClient = c.fastClient
		retries = fastRetries
	}

	limit := opts.MaxInputLength
	if limit <= 0 {
		limit = ChatInputLimit
	}

	messages := make([]Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = Message{Role: m.Role, Content: Truncate(m.Content, limit)}
	}

	body := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.Structured {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		text, err := c.post(ctx, httpClient, endpoint, body)
		if err == nil {
			if req.Structured {
				if !json.Valid([]byte(strings.TrimSpace(text))) {
					return "", fmt.Errorf("%w: %s", ErrInvalidStructuredResponse, snippet(text))
				}
			}
			return text, nil
		}

		lastErr = err
	}

	return "", lastErr
}

func (c *Client) post(ctx context.Context, httpClient *http.Client, endpoint string, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("completion service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// Truncate caps s at limit runes.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func snippet(s string) string {
	return Truncate(strings.TrimSpace(s), 120)
}
