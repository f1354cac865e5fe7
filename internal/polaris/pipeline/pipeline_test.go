package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/polarisbot/polaris/internal/polaris/llm"
	"github.com/polarisbot/polaris/internal/polaris/manifest"
	"github.com/polarisbot/polaris/internal/polaris/pipeline"
	"github.com/polarisbot/polaris/internal/polaris/policy"
	"github.com/polarisbot/polaris/internal/polaris/registry"
	"github.com/polarisbot/polaris/internal/polaris/router"
	"github.com/polarisbot/polaris/internal/polaris/specialists"
	"github.com/polarisbot/polaris/internal/polaris/store"
	"github.com/polarisbot/polaris/internal/polaris/tabular"
)

type memSource struct {
	tables map[string][]tabular.Row
}

func (s *memSource) ReadTable(_ context.Context, name string) ([]tabular.Row, error) {
	rows := s.tables[name]
	if rows == nil {
		rows = []tabular.Row{}
	}
	return rows, nil
}

func (s *memSource) AppendRow(_ context.Context, name string, row tabular.Row) error {
	s.tables[name] = append(s.tables[name], row)
	return nil
}

type stubClient struct {
	answer string
	err    error
}

func (s *stubClient) Predict(context.Context, string, string, string) (string, error) {
	return s.answer, s.err
}

type fixedSpecialist struct{ message string }

func (f fixedSpecialist) Handle(context.Context, specialists.Request) specialists.Response {
	return specialists.Response{OK: true, Message: f.message}
}

type panicSpecialist struct{}

func (panicSpecialist) Handle(context.Context, specialists.Request) specialists.Response {
	panic("boom")
}

// buildPipeline assembles a full orchestrator over in-memory config, a real
// SQLite audit store, and a stubbed prediction client.
func buildPipeline(t *testing.T, client *stubClient, limiter *llm.RateLimiter) (*pipeline.Orchestrator, *registry.Registry) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	src := &memSource{tables: map[string][]tabular.Row{
		tabular.TableHandlers: {
			{"HandlerKey": "handle_tasks", "GAS_Function": "tasks_", "Description": "Manage tasks."},
		},
		tabular.TableUserAccess: {
			{"User_Email": "@admin:example.com", "Access_Level": "ADMIN", "Allowed_Handlers": `["*"]`},
			{"User_Email": "@member:example.com", "Access_Level": "FREE", "Allowed_Handlers": `["help"]`},
		},
	}}

	manifests := manifest.NewLoader(src, time.Minute, nil)
	intentRouter := router.New(manifests, client, st)
	gate := policy.NewGate(src, st, nil)

	reg := registry.New()
	reg.Register("help", fixedSpecialist{message: "help output"})
	reg.Register("general_chat", fixedSpecialist{message: "chat output"})

	return pipeline.New(intentRouter, gate, reg, limiter, st), reg
}

func TestHandleMessageEndToEnd(t *testing.T) {
	p, _ := buildPipeline(t, &stubClient{answer: "help"}, nil)

	reply := p.HandleMessage(context.Background(), "@admin:example.com", "!room", "what can you do?")
	if reply != "help output" {
		t.Fatalf("reply: got %q", reply)
	}
}

func TestHandleMessageAccessDenied(t *testing.T) {
	p, _ := buildPipeline(t, &stubClient{answer: manifest.KeyMail}, nil)

	reply := p.HandleMessage(context.Background(), "@member:example.com", "!room", "read my mail")
	if !strings.Contains(reply, "Access Denied") || !strings.Contains(reply, "'handle_gmail'") {
		t.Fatalf("denial reply: got %q", reply)
	}
}

func TestHandleMessageRouterFailure(t *testing.T) {
	p, _ := buildPipeline(t, &stubClient{err: errors.New("api down")}, nil)

	reply := p.HandleMessage(context.Background(), "@admin:example.com", "!room", "hello")
	if reply != "⚠️ Router Fail: prediction-error" {
		t.Fatalf("router failure reply: got %q", reply)
	}
}

func TestHandleMessageHandlerNotFound(t *testing.T) {
	// The manifest routes handle_tasks to target "tasks_", which nothing
	// registered.
	p, _ := buildPipeline(t, &stubClient{answer: "handle_tasks"}, nil)

	reply := p.HandleMessage(context.Background(), "@admin:example.com", "!room", "add a task")
	if reply != "⚠️ Handler not found: tasks_" {
		t.Fatalf("not-found reply: got %q", reply)
	}
}

func TestHandleMessageRateLimited(t *testing.T) {
	limiter := llm.NewRateLimiter(1, time.Minute)
	p, _ := buildPipeline(t, &stubClient{answer: "help"}, limiter)
	ctx := context.Background()

	if reply := p.HandleMessage(ctx, "@admin:example.com", "!room", "first"); reply != "help output" {
		t.Fatalf("first message should pass, got %q", reply)
	}
	if reply := p.HandleMessage(ctx, "@admin:example.com", "!room", "second"); reply != llm.RateLimitMessage {
		t.Fatalf("second message should be limited, got %q", reply)
	}
}

func TestHandleMessagePanicRecovery(t *testing.T) {
	p, reg := buildPipeline(t, &stubClient{answer: "help"}, nil)
	reg.Register("help", panicSpecialist{})

	reply := p.HandleMessage(context.Background(), "@admin:example.com", "!room", "what can you do?")
	if !strings.HasPrefix(reply, "🚨 Critical Error") {
		t.Fatalf("panic reply: got %q", reply)
	}
}

func TestHandleMessageUnknownKeyFallsBackToChat(t *testing.T) {
	p, _ := buildPipeline(t, &stubClient{answer: "handle_nonsense"}, nil)

	reply := p.HandleMessage(context.Background(), "@admin:example.com", "!room", "ramble")
	if reply != "chat output" {
		t.Fatalf("fallback reply: got %q", reply)
	}
}
