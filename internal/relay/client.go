// Package relay forwards a free-text question to a hosted text-generation
// provider using a caller-supplied key. Nothing is stored between requests.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/ej-indicator-service/internal/observability"
)

// Provider names a supported text-generation backend.
type Provider string

const (
	ProviderGroq    Provider = "groq"
	ProviderGemini  Provider = "gemini"
	ProviderMistral Provider = "mistral"
)

const systemPrompt = "You are an environmental justice expert. Provide concise, accurate answers about " +
	"environmental health, pollution, and justice issues based on real environmental data."

var (
	ErrMissingKey      = errors.New("provider key is required")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrEmptyQuestion   = errors.New("please enter a question")
)

// UpstreamError means the provider answered with a non-2xx status or an
// unreadable body.
type UpstreamError struct {
	Provider Provider
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s API error: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ParseProvider maps a header value to a provider. Empty selects groq.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProviderGroq, nil
	case ProviderGroq, ProviderGemini, ProviderMistral:
		return p, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownProvider, s)
	}
}

// Endpoints holds provider base URLs.
type Endpoints struct {
	Groq    string
	Gemini  string
	Mistral string
}

// DefaultEndpoints are the public provider APIs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Groq:    "https://api.groq.com/openai/v1/chat/completions",
		Gemini:  "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent",
		Mistral: "https://api.mistral.ai/v1/chat/completions",
	}
}

// Answer is a provider's reply.
type Answer struct {
	Provider Provider `json:"provider"`
	Text     string   `json:"text"`
}

// Client relays questions to providers.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a relay client.
func NewClient(endpoints Endpoints, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Ask sends question to provider authenticated with key.
func (c *Client) Ask(ctx context.Context, provider Provider, key, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	if strings.TrimSpace(key) == "" {
		return Answer{}, ErrMissingKey
	}

	text, err := c.ask(ctx, provider, key, question)
	outcome := "success"
	if err != nil {
		outcome = "error"
		c.logger.Warn("relay request failed", "provider", provider, "error", err)
	}
	c.metrics.RelayRequests.WithLabelValues(string(provider), outcome).Inc()
	if err != nil {
		return Answer{}, err
	}
	return Answer{Provider: provider, Text: text}, nil
}

func (c *Client) ask(ctx context.Context, provider Provider, key, question string) (string, error) {
	switch provider {
	case ProviderGroq:
		body := chatRequest{
			Model: "mixtral-8x7b-32768",
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: question},
			},
			MaxTokens:   500,
			Temperature: 0.7,
		}
		var resp chatResponse
		if err := c.post(ctx, provider, c.endpoints.Groq, "Bearer "+key, body, &resp); err != nil {
			return "", err
		}
		return resp.text(provider)

	case ProviderMistral:
		body := chatRequest{
			Model:     "mistral-small-latest",
			Messages:  []chatMessage{{Role: "user", Content: question}},
			MaxTokens: 500,
		}
		var resp chatResponse
		if err := c.post(ctx, provider, c.endpoints.Mistral, "Bearer "+key, body, &resp); err != nil {
			return "", err
		}
		return resp.text(provider)

	case ProviderGemini:
		body := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: question}}}}}
		endpoint := c.endpoints.Gemini + "?" + url.Values{"key": {key}}.Encode()
		var resp geminiResponse
		if err := c.post(ctx, provider, endpoint, "", body, &resp); err != nil {
			return "", err
		}
		return resp.text(provider)

	default:
		return "", fmt.Errorf("%w %q", ErrUnknownProvider, provider)
	}
}

func (c *Client) post(ctx context.Context, provider Provider, endpoint, auth string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Provider: provider, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Provider: provider, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Provider API request and response types.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (r chatResponse) text(p Provider) (string, error) {
	if len(r.Choices) == 0 {
		return "", &UpstreamError{Provider: p, Err: errors.New("no choices in response")}
	}
	return r.Choices[0].Message.Content, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (r geminiResponse) text(p Provider) (string, error) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", &UpstreamError{Provider: p, Err: errors.New("no candidates in response")}
	}
	return r.Candidates[0].Content.Parts[0].Text, nil
}
