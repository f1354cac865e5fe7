// Package pipeline runs one inbound message through the full assistant
// flow: rate limit, route, access check, dispatch, reply.
//
// Every stage degrades to a distinguishable user-visible message. Routing
// failures, access denials, missing specialists and internal panics each
// produce their own reply shape, so a user (and the audit log) can tell
// which stage gave up.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polarisbot/polaris/common/trace"
	"github.com/polarisbot/polaris/internal/polaris/llm"
	"github.com/polarisbot/polaris/internal/polaris/policy"
	"github.com/polarisbot/polaris/internal/polaris/registry"
	"github.com/polarisbot/polaris/internal/polaris/router"
	"github.com/polarisbot/polaris/internal/polaris/specialists"
	"github.com/polarisbot/polaris/internal/polaris/store"
)

// Orchestrator wires the stages together.
type Orchestrator struct {
	router   *router.Router
	gate     *policy.Gate
	registry *registry.Registry
	limiter  *llm.RateLimiter
	audit    *store.Store
}

// New creates the orchestrator. limiter may be nil to disable rate limiting.
func New(r *router.Router, g *policy.Gate, reg *registry.Registry, limiter *llm.RateLimiter, audit *store.Store) *Orchestrator {
	return &Orchestrator{router: r, gate: g, registry: reg, limiter: limiter, audit: audit}
}

// HandleMessage processes one user message and returns the reply text.
// It never returns an empty string; every outcome has a reply.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID, spaceID, text string) (reply string) {
	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	log := slog.With("trace_id", trace.FromContext(ctx), "user_id", userID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: panic recovered", "panic", r)
			o.audit.Audit(ctx, "ERROR", "pipeline_panic", userID, store.AuditDetails{
				"panic": fmt.Sprint(r),
			})
			reply = "🚨 Critical Error: something went wrong while handling your message. Please try again."
		}
	}()

	if o.limiter != nil && !o.limiter.Allow(userID) {
		log.Warn("pipeline: rate limited")
		return llm.RateLimitMessage
	}

	decision := o.router.Route(ctx, text)
	if !decision.OK {
		log.Warn("pipeline: routing failed", "reason", decision.Reason, "detail", decision.Detail)
		if decision.Reason == router.FailureNoMatch {
			// Nothing matched and no fallback exists. Echo so the user sees
			// the message was received but not understood.
			return "🤖 Echo: " + text
		}
		return fmt.Sprintf("⚠️ Router Fail: %s", decision.Reason)
	}

	if res := o.gate.Check(ctx, userID, decision.HandlerKey); !res.Allowed {
		log.Info("pipeline: access denied", "handler", decision.HandlerKey)
		return res.Message
	}

	specialist, err := o.registry.Resolve(decision.Target)
	if err != nil {
		log.Error("pipeline: unresolvable target", "target", decision.Target, "err", err)
		o.audit.Audit(ctx, "ERROR", "target_unresolvable", userID, store.AuditDetails{
			"target":      decision.Target,
			"handler_key": decision.HandlerKey,
		})
		return fmt.Sprintf("⚠️ Handler not found: %s", decision.Target)
	}

	resp := specialist.Handle(ctx, specialists.Request{
		Text:    text,
		UserID:  userID,
		SpaceID: spaceID,
	})
	log.Info("pipeline: handled", "handler", decision.HandlerKey, "ok", resp.OK)
	o.audit.Audit(ctx, "INFO", "message_handled", userID, store.AuditDetails{
		"handler_key": decision.HandlerKey,
		"ok":          resp.OK,
	})
	return resp.Message
}
