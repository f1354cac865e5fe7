package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/polarisbot/polaris/internal/polaris/registry"
	"github.com/polarisbot/polaris/internal/polaris/specialists"
)

type nopSpecialist struct{ name string }

func (n nopSpecialist) Handle(context.Context, specialists.Request) specialists.Response {
	return specialists.Response{OK: true, Message: n.name}
}

func TestResolveExact(t *testing.T) {
	r := registry.New()
	r.Register("mail", nopSpecialist{name: "mail"})

	s, err := r.Resolve("mail")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := s.Handle(context.Background(), specialists.Request{}); got.Message != "mail" {
		t.Errorf("wrong specialist: %q", got.Message)
	}
}

func TestResolveToleratesTrailingUnderscore(t *testing.T) {
	r := registry.New()
	r.Register("tasks", nopSpecialist{name: "plain"})
	r.Register("notes_", nopSpecialist{name: "underscored"})

	// Manifest says "tasks_", registration is "tasks".
	if s, err := r.Resolve("tasks_"); err != nil {
		t.Errorf("strip underscore: %v", err)
	} else if s.Handle(context.Background(), specialists.Request{}).Message != "plain" {
		t.Error("resolved wrong specialist for tasks_")
	}

	// Manifest says "notes", registration is "notes_".
	if s, err := r.Resolve("notes"); err != nil {
		t.Errorf("append underscore: %v", err)
	} else if s.Handle(context.Background(), specialists.Request{}).Message != "underscored" {
		t.Error("resolved wrong specialist for notes")
	}
}

func TestResolveUnknownTarget(t *testing.T) {
	r := registry.New()
	_, err := r.Resolve("ghost")
	if !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTargetsSorted(t *testing.T) {
	r := registry.New()
	r.Register("mail", nopSpecialist{})
	r.Register("calendar", nopSpecialist{})
	r.Register("help", nopSpecialist{})

	got := r.Targets()
	want := []string{"calendar", "help", "mail"}
	if len(got) != len(want) {
		t.Fatalf("targets: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("targets not sorted: %v", got)
		}
	}
}
