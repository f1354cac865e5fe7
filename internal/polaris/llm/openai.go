package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/polarisbot/polaris/common/redact"
	"github.com/polarisbot/polaris/internal/polaris/settings"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second

	// Fixed sampling parameters, matching the deployed system.
	maxTokens   = 1024
	temperature = 0.7

	// maxBodyExcerpt caps how much of an error body reaches logs and errors.
	maxBodyExcerpt = 500
)

// Config configures the OpenAI-compatible prediction client.
type Config struct {
	// BaseURL overrides the API endpoint. Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	// Defaults to https://api.openai.com/v1 when empty.
	BaseURL string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// openAIClient implements Client against the OpenAI chat completions API.
// Credentials and the model identifier come from the settings table on every
// call, so operators can rotate them without a restart.
type openAIClient struct {
	cfg      Config
	settings *settings.Loader
	client   *http.Client
}

// New returns a Client backed by the OpenAI (or compatible) chat API.
// The returned client is safe for concurrent use.
func New(cfg Config, loader *settings.Loader) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &openAIClient{
		cfg:      cfg,
		settings: loader,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// Predict sends one system+user exchange and returns the trimmed response
// text. Missing credentials are a hard failure here even though settings
// loading only warned about them.
func (c *openAIClient) Predict(ctx context.Context, promptName, systemPrompt, userText string) (string, error) {
	cfg, err := c.settings.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("llm: load settings: %w", err)
	}

	apiKey := cfg.Get(settings.KeyAPIKey)
	model := cfg.Get(settings.KeyModel)
	if apiKey == "" || model == "" {
		return "", ErrNotConfigured
	}

	body := oaiRequest{
		Model: model,
		Messages: []oaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("llm: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		slog.Error("prediction call failed", "prompt", promptName, "err", err)
		return "", fmt.Errorf("llm: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		slog.Warn("prediction endpoint rate-limited", "prompt", promptName)
		return "", ErrRateLimit
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := excerptBody(respBody, apiKey)
		slog.Error("prediction endpoint error", "prompt", promptName,
			"status", resp.StatusCode, "body", excerpt)
		return "", &StatusError{Status: resp.StatusCode, Body: excerpt}
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		slog.Error("prediction response undecodable", "prompt", promptName, "err", err)
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if oaiResp.Error != nil {
		slog.Error("prediction API error", "prompt", promptName,
			"type", oaiResp.Error.Type, "message", oaiResp.Error.Message)
		return "", fmt.Errorf("%w: API error (%s): %s",
			ErrMalformedResponse, oaiResp.Error.Type, oaiResp.Error.Message)
	}

	if len(oaiResp.Choices) == 0 || oaiResp.Choices[0].Message.Content == "" {
		slog.Error("prediction response missing content", "prompt", promptName)
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	return strings.TrimSpace(oaiResp.Choices[0].Message.Content), nil
}

// excerptBody truncates an error body and strips the API key in case the
// endpoint echoes request headers back.
func excerptBody(body []byte, apiKey string) string {
	s := redact.String(string(body), apiKey)
	if len(s) > maxBodyExcerpt {
		s = s[:maxBodyExcerpt]
	}
	return s
}
