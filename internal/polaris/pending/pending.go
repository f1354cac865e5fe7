// Package pending persists side effects awaiting human confirmation.
//
// A specialist that must not execute an irreversible action directly (today:
// sending email) stores the structured command here as a PendingAction and
// hands the user a confirmation link instead. The confirmation entry point
// later looks the action up and executes it at most once.
//
// Lifecycle: (none) → PENDING → COMPLETED. Completed rows are soft-terminal
// and never deleted; expired rows are refused at confirmation time and left
// in place. COMPLETED is recorded only after the side effect reports
// success, so a failed send leaves the record PENDING and the same link
// allows one legitimate retry.
package pending

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polarisbot/polaris/internal/polaris/store"
)

// Status is the lifecycle state of a pending action.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

// DefaultTTL is how long a confirmation link stays valid.
const DefaultTTL = 5 * time.Minute

// ErrNotFound is returned when no action exists for an ID.
var ErrNotFound = errors.New("pending: action not found")

// ErrNotPending is returned when an action exists but is no longer PENDING
// (already completed, or raced by another confirmation).
var ErrNotPending = errors.New("pending: action is not pending")

// Action is one persisted deferred side effect.
type Action struct {
	ID          string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Status      Status
	HandlerKey  string
	UserID      string
	SpaceID     string
	PayloadJSON string
	CompletedAt *time.Time
}

// IsExpired reports whether the action's confirmation window has passed
// without it being completed.
func (a *Action) IsExpired(now time.Time) bool {
	return a.Status == StatusPending && now.After(a.ExpiresAt)
}

// Ref is the short human-visible reference shown in confirmation prompts.
func (a *Action) Ref() string {
	if len(a.ID) <= 6 {
		return strings.ToUpper(a.ID)
	}
	return strings.ToUpper(a.ID[len(a.ID)-6:])
}

// Store persists and retrieves pending actions.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the application database.
func NewStore(s *store.Store) *Store {
	return &Store{db: s.DB()}
}

// Create persists a new PENDING action and returns it. The ID is
// "<idPrefix>-<uuid>" so links stay self-describing in logs. payload is
// JSON-serialized as the opaque command the confirmation flow will execute.
func (s *Store) Create(ctx context.Context, idPrefix, handlerKey, userID, spaceID string, payload any, ttl time.Duration) (*Action, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("pending: serialize payload: %w", err)
	}

	now := time.Now()
	a := &Action{
		ID:          fmt.Sprintf("%s-%s", idPrefix, uuid.NewString()),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		Status:      StatusPending,
		HandlerKey:  handlerKey,
		UserID:      userID,
		SpaceID:     spaceID,
		PayloadJSON: string(payloadBytes),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_actions (action_id, created_at, expires_at, status, handler_key, user_id, space_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.CreatedAt, a.ExpiresAt, string(a.Status), a.HandlerKey, a.UserID, a.SpaceID, a.PayloadJSON)
	if err != nil {
		return nil, fmt.Errorf("pending: create action: %w", err)
	}

	return a, nil
}

// Get retrieves an action by ID.
func (s *Store) Get(ctx context.Context, id string) (*Action, error) {
	a := &Action{}
	var status string
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT action_id, created_at, expires_at, status, handler_key, user_id, space_id, payload_json, completed_at
		FROM pending_actions
		WHERE action_id = ?
	`, id).Scan(
		&a.ID, &a.CreatedAt, &a.ExpiresAt, &status,
		&a.HandlerKey, &a.UserID, &a.SpaceID, &a.PayloadJSON, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("pending: get action: %w", err)
	}

	a.Status = Status(status)
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return a, nil
}

// Complete atomically transitions the action PENDING → COMPLETED. The WHERE
// clause guards the transition: when a concurrent confirmation already
// completed the action, zero rows match and ErrNotPending is returned, so a
// second racer can never record a duplicate completion.
func (s *Store) Complete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE pending_actions
		SET status = ?, completed_at = ?
		WHERE action_id = ? AND status = ?
	`, string(StatusCompleted), time.Now(), id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("pending: complete action: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("pending: check rows affected: %w", err)
	}
	if n == 0 {
		if _, lookupErr := s.Get(ctx, id); lookupErr != nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("%w: %s", ErrNotPending, id)
	}
	return nil
}
