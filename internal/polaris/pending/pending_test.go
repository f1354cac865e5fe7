package pending_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/polarisbot/polaris/internal/polaris/pending"
	"github.com/polarisbot/polaris/internal/polaris/store"
)

func testStore(t *testing.T) *pending.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return pending.NewStore(st)
}

func TestCreateAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	payload := map[string]string{"to": "dana@example.com"}
	a, err := s.Create(ctx, "mail-send", "mail_send_confirm", "@user:example.com", "!room:example.com", payload, 5*time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(a.ID, "mail-send-") {
		t.Errorf("id prefix: got %q", a.ID)
	}
	if a.Status != pending.StatusPending {
		t.Errorf("status: got %q", a.Status)
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HandlerKey != "mail_send_confirm" || got.UserID != "@user:example.com" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if !strings.Contains(got.PayloadJSON, "dana@example.com") {
		t.Errorf("payload: got %q", got.PayloadJSON)
	}
	if got.CompletedAt != nil {
		t.Error("fresh action should have no completion time")
	}
}

func TestGetUnknownID(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "mail-send-nope")
	if !errors.Is(err, pending.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteOnce(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "mail-send", "mail_send_confirm", "@user:example.com", "", nil, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.Complete(ctx, a.ID); err != nil {
		t.Fatalf("first complete: %v", err)
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != pending.StatusCompleted {
		t.Errorf("status after complete: got %q", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("completion time should be recorded")
	}

	// The atomic transition refuses a second completion.
	err = s.Complete(ctx, a.ID)
	if !errors.Is(err, pending.ErrNotPending) {
		t.Fatalf("second complete: expected ErrNotPending, got %v", err)
	}
}

func TestCompleteUnknownID(t *testing.T) {
	s := testStore(t)
	err := s.Complete(context.Background(), "mail-send-nope")
	if !errors.Is(err, pending.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 10, 30, 12, 0, 0, 0, time.UTC)
	a := &pending.Action{Status: pending.StatusPending, ExpiresAt: now.Add(5 * time.Minute)}

	if a.IsExpired(now) {
		t.Error("fresh action should not be expired")
	}
	if !a.IsExpired(now.Add(6 * time.Minute)) {
		t.Error("past expiry should report expired")
	}

	a.Status = pending.StatusCompleted
	if a.IsExpired(now.Add(6 * time.Minute)) {
		t.Error("completed actions never expire")
	}
}

func TestRef(t *testing.T) {
	a := &pending.Action{ID: "mail-send-0f8fad5b-d9cb-469f-a165-70867728abcd"}
	if got := a.Ref(); got != "28ABCD" {
		t.Errorf("ref: got %q", got)
	}
}
