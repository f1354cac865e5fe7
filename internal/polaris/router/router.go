// Package router implements the first-stage intent resolution: one
// constrained prediction call that picks a handler key from the merged
// manifest.
//
// Classification is a single generation call rather than an
// embedding/similarity search; the manifest-driven prompt makes the handler
// set data-configurable without code changes, and the general_chat fallback
// guarantees the pipeline always has a destination unless configuration
// itself is broken.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/polarisbot/polaris/internal/polaris/llm"
	"github.com/polarisbot/polaris/internal/polaris/manifest"
	"github.com/polarisbot/polaris/internal/polaris/store"
)

// FailureReason classifies why routing produced no handler.
type FailureReason string

const (
	// FailureHandlersUnavailable means the manifest could not be loaded.
	FailureHandlersUnavailable FailureReason = "handlers-unavailable"
	// FailurePrediction means the classification call itself failed.
	FailurePrediction FailureReason = "prediction-error"
	// FailureNoMatch means the model's answer matched nothing and the
	// general_chat fallback is also missing from the manifest.
	FailureNoMatch FailureReason = "no-match"
	// FailureInternal covers unexpected panics inside routing.
	FailureInternal FailureReason = "internal-exception"
)

// Decision is the transient outcome of one routing call. Either OK is true
// and Target/HandlerKey identify the specialist, or Reason/Detail describe
// the failure. Decisions are never persisted.
type Decision struct {
	OK         bool
	Target     string
	HandlerKey string
	// RawAnswer is the model's unsanitised reply, kept for debugging.
	RawAnswer string

	Reason FailureReason
	Detail string
}

// promptTmpl is the "query 1" system instruction. One printf verb: the
// rendered handler list.
const promptTmpl = `You are a "Query 1" router. Your ONLY job is to analyze the user's text and choose the single best HandlerKey from the provided list.

You must respond with ONLY the chosen HandlerKey and nothing else.

For example, if the user says "help me", you will respond with "help".
If you cannot find a good match, you MUST respond with "general_chat".

Here is the list of available handlers:
%s`

// Router picks one handler key for a piece of free text.
type Router struct {
	manifest *manifest.Loader
	client   llm.Client
	audit    *store.Store
}

// New creates a Router. audit may be nil in tests; mismatch events are then
// only logged through slog.
func New(loader *manifest.Loader, client llm.Client, audit *store.Store) *Router {
	return &Router{manifest: loader, client: client, audit: audit}
}

// Route resolves text to a handler. It never panics and never returns an
// unvalidated handler key: every key handed back has been checked against
// the manifest.
func (r *Router) Route(ctx context.Context, text string) (decision Decision) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("router panic", "panic", rec)
			decision = Decision{Reason: FailureInternal, Detail: fmt.Sprint(rec)}
		}
	}()

	m, err := r.manifest.Load(ctx)
	if err != nil {
		return Decision{Reason: FailureHandlersUnavailable, Detail: err.Error()}
	}

	prompt := fmt.Sprintf(promptTmpl, m.PromptList())
	answer, err := r.client.Predict(ctx, "query1_router", prompt, text)
	if err != nil {
		return Decision{Reason: FailurePrediction, Detail: err.Error()}
	}

	key := sanitizeKey(answer)
	if d, ok := m.Find(key); ok {
		return Decision{OK: true, Target: d.Target, HandlerKey: d.Key, RawAnswer: answer}
	}

	// The model produced a key that is not in the manifest. Record it for
	// audit, then fall back to general chat.
	slog.Warn("router: model answered with unknown handler key", "key", key)
	if r.audit != nil {
		r.audit.Audit(ctx, "WARN", "router_key_mismatch", "", store.AuditDetails{
			"text":       text,
			"chosen_key": key,
		})
	}

	if d, ok := m.Find(manifest.KeyGeneralChat); ok {
		return Decision{OK: true, Target: d.Target, HandlerKey: d.Key, RawAnswer: answer}
	}

	// Failsafe — configuration defines no usable default.
	return Decision{
		Reason: FailureNoMatch,
		Detail: fmt.Sprintf("unknown handler key %q and no %s fallback", key, manifest.KeyGeneralChat),
	}
}

// sanitizeKey normalises the model's reply: whitespace is trimmed and stray
// quotation/period characters the model tends to decorate answers with are
// stripped.
func sanitizeKey(answer string) string {
	trimmed := strings.TrimSpace(answer)
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '"', '\'':
			return -1
		}
		return r
	}, trimmed)
}
