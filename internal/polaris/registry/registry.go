// Package registry maps dispatch target names onto specialist
// implementations.
//
// Targets are registered under fixed enum-like names ("mail", "calendar",
// "sheets", "general_chat", "help"). Lookup is tolerant of a single
// trailing underscore in either direction, a concession to manifests edited
// by hand, but is otherwise exact; an unregistered target is an explicit
// error, never a silent no-op.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/polarisbot/polaris/internal/polaris/specialists"
)

// ErrNotFound is returned when no specialist is registered for a target.
var ErrNotFound = errors.New("registry: no specialist for target")

// Registry holds the target → specialist table.
type Registry struct {
	mu    sync.RWMutex
	table map[string]specialists.Specialist
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{table: make(map[string]specialists.Specialist)}
}

// Register binds a specialist to a target name. Re-registering a name
// replaces the previous binding.
func (r *Registry) Register(target string, s specialists.Specialist) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[target] = s
}

// Resolve finds the specialist for a target. Lookup order: exact name, the
// name with one trailing underscore stripped, the name with one appended.
func (r *Registry) Resolve(target string) (specialists.Specialist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.table[target]; ok {
		return s, nil
	}
	if trimmed := strings.TrimSuffix(target, "_"); trimmed != target {
		if s, ok := r.table[trimmed]; ok {
			return s, nil
		}
	} else if s, ok := r.table[target+"_"]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, target)
}

// Targets lists the registered target names, sorted.
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.table))
	for name := range r.table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
