// Package policy implements the per-user entitlement gate that runs between
// routing and dispatch. A denied request never reaches a specialist.
//
// Policies live in the UserAccess table, one row per user identity. Absence
// of a row means default-deny: an implicit FREE policy with an empty
// allow-set. ADMIN level or a "*" wildcard entry grants everything.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/polarisbot/polaris/internal/polaris/store"
	"github.com/polarisbot/polaris/internal/polaris/tabular"
)

// AccessLevel is a user's entitlement tier.
type AccessLevel string

const (
	LevelFree  AccessLevel = "FREE"
	LevelAdmin AccessLevel = "ADMIN"
)

// Wildcard in an allow-set grants access to every handler.
const Wildcard = "*"

// UserPolicy is one user's entitlement record.
type UserPolicy struct {
	AccessLevel     AccessLevel
	AllowedHandlers []string
}

// Result is the outcome of an access check. Message is only set on denial.
type Result struct {
	Allowed bool
	Message string
}

// Gate checks handler access for user identities.
type Gate struct {
	src   tabular.Source
	audit *store.Store

	// breakGlass lists identities that receive an implicit ADMIN policy when
	// the policy table itself cannot be read, so operators are not locked out
	// by broken configuration. It comes from process configuration and is
	// empty by default; every use is audited.
	breakGlass map[string]struct{}
}

// NewGate creates a Gate. breakGlassAdmins may be empty (the safe default);
// audit may be nil in tests.
func NewGate(src tabular.Source, audit *store.Store, breakGlassAdmins []string) *Gate {
	bg := make(map[string]struct{}, len(breakGlassAdmins))
	for _, id := range breakGlassAdmins {
		if id != "" {
			bg[id] = struct{}{}
		}
	}
	return &Gate{src: src, audit: audit, breakGlass: bg}
}

// Check decides whether userID may execute handlerKey. Denials carry a
// user-visible message naming the handler and are written to the audit log;
// they are a first-class outcome, not a system failure.
func (g *Gate) Check(ctx context.Context, userID, handlerKey string) Result {
	p := g.loadPolicy(ctx, userID)

	if p.AccessLevel == LevelAdmin || contains(p.AllowedHandlers, Wildcard) {
		return Result{Allowed: true}
	}
	if contains(p.AllowedHandlers, handlerKey) {
		return Result{Allowed: true}
	}

	slog.Info("access denied", "user", userID, "handler", handlerKey)
	if g.audit != nil {
		g.audit.Audit(ctx, "INFO", "access_denied", userID, store.AuditDetails{
			"handler": handlerKey,
			"level":   string(p.AccessLevel),
		})
	}
	return Result{
		Allowed: false,
		Message: fmt.Sprintf("Access Denied: The handler '%s' requires a subscription upgrade.", handlerKey),
	}
}

// loadPolicy resolves userID's entitlement record. Store failures degrade to
// default-deny, except for configured break-glass identities.
func (g *Gate) loadPolicy(ctx context.Context, userID string) UserPolicy {
	denyAll := UserPolicy{AccessLevel: LevelFree}

	rows, err := g.src.ReadTable(ctx, tabular.TableUserAccess)
	if err != nil {
		slog.Error("policy: reading UserAccess failed", "err", err)
		if _, ok := g.breakGlass[userID]; ok {
			slog.Warn("policy: break-glass admin bypass engaged", "user", userID)
			if g.audit != nil {
				g.audit.Audit(ctx, "WARN", "break_glass_bypass", userID, nil)
			}
			return UserPolicy{AccessLevel: LevelAdmin, AllowedHandlers: []string{Wildcard}}
		}
		return denyAll
	}

	for _, row := range rows {
		email, ok := row.Field("User_Email", "user_email")
		if !ok || email != userID {
			continue
		}

		level := LevelFree
		if v, ok := row.Field("Access_Level", "access_level"); ok {
			level = AccessLevel(v)
		}

		var handlers []string
		if raw, ok := row.Field("Allowed_Handlers", "allowed_handlers"); ok {
			if err := json.Unmarshal([]byte(raw), &handlers); err != nil {
				slog.Warn("policy: unparsable Allowed_Handlers, treating as empty",
					"user", userID, "err", err)
				handlers = nil
			}
		}
		return UserPolicy{AccessLevel: level, AllowedHandlers: handlers}
	}

	return denyAll
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
