// Package manifest loads the handler manifest: the set of specialist
// descriptors the intent router may choose between.
//
// Descriptors come from two places. A fixed set of built-ins covers the core
// capabilities (mail, calendar, lists, chat, help) so the system works with
// an empty custom configuration; the Handlers table adds operator-defined
// entries. On a key collision the built-in wins, keeping its canonical
// description in the routing prompt even when the table redefines it.
package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/polarisbot/polaris/internal/polaris/cache"
	"github.com/polarisbot/polaris/internal/polaris/tabular"
)

// Core handler keys. KeyGeneralChat doubles as the router's fallback
// destination when the model produces an unknown key.
const (
	KeyGeneralChat = "general_chat"
	KeyHelp        = "help"
	KeyMail        = "handle_gmail"
	KeyCalendar    = "handle_calendar"
	KeySheets      = "sheets"
)

// Descriptor describes one routable specialist.
type Descriptor struct {
	// Key is the unique handler key the model answers with (e.g. "handle_gmail").
	Key string
	// Target names the executable unit in the registry. The Handlers table
	// may store it with a trailing "_" (the internal naming convention);
	// resolution tolerates both forms.
	Target string
	// Description is the capability summary embedded in the routing prompt.
	Description string
	// Fallback is the help text a specialist degrades to when it cannot
	// parse the request. Optional.
	Fallback string
}

// Manifest is the merged, ordered descriptor list.
type Manifest []Descriptor

// Find returns the descriptor for key, or false when absent.
func (m Manifest) Find(key string) (Descriptor, bool) {
	for _, d := range m {
		if d.Key == key {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Keys returns the handler keys in manifest order.
func (m Manifest) Keys() []string {
	keys := make([]string, len(m))
	for i, d := range m {
		keys[i] = d.Key
	}
	return keys
}

// PromptList renders the manifest as the handler list embedded in the
// router's system prompt.
func (m Manifest) PromptList() string {
	blocks := make([]string, len(m))
	for i, d := range m {
		blocks[i] = fmt.Sprintf("HandlerKey: %s\nDescription: %s", d.Key, d.Description)
	}
	return strings.Join(blocks, "\n---\n")
}

// builtins returns the core descriptors in canonical order.
func builtins() Manifest {
	return Manifest{
		{
			Key:         KeyMail,
			Target:      "mail",
			Description: "Read, search, or draft email. Examples: \"any mail from Dana?\", \"draft an email to Bob about the invoice\".",
			Fallback:    "To help with email, please be specific. For drafts, I need a recipient, subject, and body.",
		},
		{
			Key:         KeyCalendar,
			Target:      "calendar",
			Description: "Read the calendar or create events. Examples: \"what's on today?\", \"schedule a dentist appointment tomorrow at 3pm\".",
			Fallback:    "Please be more specific. I may need a date, time, and title.",
		},
		{
			Key:         KeySheets,
			Target:      "sheets",
			Description: "Add items to a named list or show a list. Examples: \"add milk to HomeErrands\", \"list HomeErrands\".",
			Fallback:    "I can add/list items. Try: 'add milk to HomeErrands' or 'list HomeErrands'.",
		},
		{
			Key:         KeyGeneralChat,
			Target:      "general_chat",
			Description: "General conversation and questions that no other specialist covers. The default when unsure.",
		},
		{
			Key:         KeyHelp,
			Target:      "help",
			Description: "List the available capabilities.",
		},
	}
}

// Loader reads and merges the handler manifest through a TTL cache.
type Loader struct {
	src   tabular.Source
	cache *cache.Entry[Manifest]
}

// NewLoader creates a Loader over src. ttl ≤ 0 defaults to cache.DefaultTTL;
// clock may be nil outside tests.
func NewLoader(src tabular.Source, ttl time.Duration, clock cache.Clock) *Loader {
	return &Loader{
		src:   src,
		cache: cache.New[Manifest](ttl, clock),
	}
}

// Load returns the merged manifest, reading the Handlers table only on a
// cache miss. An unreadable or empty table is a failure that propagates to
// the router (handlers-unavailable) rather than silently serving built-ins
// over broken configuration.
func (l *Loader) Load(ctx context.Context) (Manifest, error) {
	if cached, ok := l.cache.Get(); ok {
		return cached, nil
	}

	rows, err := l.src.ReadTable(ctx, tabular.TableHandlers)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("manifest: %s table is empty or unreadable", tabular.TableHandlers)
	}

	merged := builtins()
	seen := make(map[string]struct{}, len(merged))
	for _, d := range merged {
		seen[d.Key] = struct{}{}
	}

	for _, row := range rows {
		key, okKey := row.Field("HandlerKey", "name")
		target, okTarget := row.Field("GAS_Function", "fnName")
		if !okKey || !okTarget {
			slog.Warn("manifest: discarding row without key or target", "row", row)
			continue
		}
		if _, dup := seen[key]; dup {
			// Built-ins (and earlier rows) retain their canonical entry.
			continue
		}
		seen[key] = struct{}{}
		desc, _ := row.Field("Description", "description")
		fallback, _ := row.Field("FallbackHelpText", "fallback")
		merged = append(merged, Descriptor{
			Key:         key,
			Target:      target,
			Description: desc,
			Fallback:    fallback,
		})
	}

	l.cache.Put(merged)
	return merged, nil
}

// Invalidate drops the cached manifest so the next Load re-reads the table.
func (l *Loader) Invalidate() {
	l.cache.Invalidate()
}

// FallbackText returns the fallback help text for key, or failsafe when the
// manifest cannot be loaded or carries no fallback for that handler.
func (l *Loader) FallbackText(ctx context.Context, key, failsafe string) string {
	m, err := l.Load(ctx)
	if err != nil {
		return failsafe
	}
	if d, ok := m.Find(key); ok && d.Fallback != "" {
		return d.Fallback
	}
	return failsafe
}
