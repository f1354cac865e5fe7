// Package llm wraps the external chat-completion endpoint Polaris delegates
// all language understanding to.
//
// The pipeline makes two kinds of calls through the same Client interface:
// the router's handler-classification call ("query 1") and each specialist's
// text-to-structured-command call ("query 2"). They differ only in prompt;
// keeping them behind one interface keeps both independently stubbable in
// tests.
//
// Failures never escape as panics. Callers receive one of three shapes:
// ErrNotConfigured (credentials missing from settings), a *StatusError
// (non-2xx HTTP), or ErrMalformedResponse (2xx body without usable content).
// No call is ever retried — a single upstream failure fails the request.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when the settings table lacks the API key or
// model identifier at call time.
var ErrNotConfigured = errors.New("llm: API key or model not configured in settings")

// ErrMalformedResponse is returned when the endpoint answers 2xx but the body
// cannot be interpreted (JSON parse failure, no choices, empty content).
var ErrMalformedResponse = errors.New("llm: malformed response from endpoint")

// ErrRateLimit is returned when the upstream endpoint reports HTTP 429.
var ErrRateLimit = errors.New("llm: upstream rate limit exceeded")

// StatusError is a non-2xx HTTP outcome, carrying the status code and a
// truncated body excerpt for the audit log.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: endpoint returned HTTP %d: %s", e.Status, e.Body)
}

// Client performs exactly one prompt/response exchange per call.
//
// promptName identifies the prompt for logs and audit entries — full prompt
// bodies are never logged. Implementations must be safe for concurrent use.
type Client interface {
	Predict(ctx context.Context, promptName, systemPrompt, userText string) (string, error)
}
