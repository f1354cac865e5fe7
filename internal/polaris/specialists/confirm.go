package specialists

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/polarisbot/polaris/internal/polaris/pending"
	"github.com/polarisbot/polaris/internal/polaris/store"
)

// Confirmation errors surfaced to the web entry point, which maps them onto
// the user-facing result pages.
var (
	// ErrAlreadyDone means the action was confirmed before: the link was
	// clicked twice, or two clicks raced and this one lost.
	ErrAlreadyDone = errors.New("confirm: action already completed")

	// ErrExpired means the confirmation window passed before the click.
	ErrExpired = errors.New("confirm: action expired")
)

// MailConfirmer executes a deferred mail send exactly once. It lives beside
// the Mail specialist because it replays the same MailCommand the draft flow
// persisted.
type MailConfirmer struct {
	pending *pending.Store
	port    MailPort
	audit   *store.Store

	// mu serializes confirmations so two simultaneous clicks on the same
	// link cannot both reach port.Send before either records completion.
	// The atomic PENDING → COMPLETED update in the store is the backstop
	// for processes outside this lock.
	mu sync.Mutex

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewMailConfirmer creates the confirmation executor.
func NewMailConfirmer(p *pending.Store, port MailPort, audit *store.Store) *MailConfirmer {
	return &MailConfirmer{pending: p, port: port, audit: audit, now: time.Now}
}

// Confirm looks up the pending action and executes the stored send.
// Completion is recorded only after the send succeeds, so a failed send
// leaves the action PENDING and the same link permits one retry. Returns the
// recipient address on success.
func (c *MailConfirmer) Confirm(ctx context.Context, actionID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	action, err := c.pending.Get(ctx, actionID)
	if err != nil {
		return "", err
	}
	if action.Status == pending.StatusCompleted {
		return "", fmt.Errorf("%w: %s", ErrAlreadyDone, actionID)
	}
	if action.IsExpired(c.now()) {
		c.audit.Audit(ctx, "WARN", "confirm_expired", action.UserID, store.AuditDetails{
			"action_id": actionID,
		})
		return "", fmt.Errorf("%w: %s", ErrExpired, actionID)
	}

	var cmd MailCommand
	if err := json.Unmarshal([]byte(action.PayloadJSON), &cmd); err != nil {
		return "", fmt.Errorf("confirm: decode stored command: %w", err)
	}

	if err := c.port.Send(ctx, cmd.To, cmd.Subject, cmd.Body); err != nil {
		c.audit.Audit(ctx, "ERROR", "confirm_send_failed", action.UserID, store.AuditDetails{
			"action_id": actionID,
			"error":     err.Error(),
		})
		return "", fmt.Errorf("confirm: send mail: %w", err)
	}

	if err := c.pending.Complete(ctx, actionID); err != nil {
		// The send already happened, so the click is reported as a success
		// either way; the stuck record is logged for an operator.
		slog.Error("confirm: mark completed after send", "action_id", actionID, "err", err)
	}

	c.audit.Audit(ctx, "INFO", "confirm_send_ok", action.UserID, store.AuditDetails{
		"action_id": actionID,
		"to":        cmd.To,
	})
	return cmd.To, nil
}
