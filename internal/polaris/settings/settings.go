// Package settings loads the flat key/value Settings table and caches it
// with a TTL, so a burst of requests does not re-read the backing store on
// every prediction call.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polarisbot/polaris/internal/polaris/cache"
	"github.com/polarisbot/polaris/internal/polaris/tabular"
)

// Keys the rest of the system depends on. The two model keys are a soft
// warning when absent at load time, and a hard failure at prediction call
// time — a deployment without them can still serve the list and help
// specialists.
const (
	KeyAPIKey   = "OPENAI_API_KEY"
	KeyModel    = "OPENAI_MODEL"
	KeyTimezone = "TIMEZONE"
)

// Settings is the loaded key/value configuration map.
type Settings map[string]string

// Get returns the value for key, or "" when unset.
func (s Settings) Get(key string) string {
	return s[key]
}

// Location resolves the configured timezone, falling back to UTC when the
// key is unset or unparsable. Specialists use it to render local times.
func (s Settings) Location() *time.Location {
	name := s[KeyTimezone]
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("settings: invalid timezone, using UTC", "tz", name)
		return time.UTC
	}
	return loc
}

// Loader reads the Settings table through a TTL cache.
type Loader struct {
	src   tabular.Source
	cache *cache.Entry[Settings]
}

// NewLoader creates a Loader over src. ttl ≤ 0 defaults to cache.DefaultTTL;
// clock may be nil outside tests.
func NewLoader(src tabular.Source, ttl time.Duration, clock cache.Clock) *Loader {
	return &Loader{
		src:   src,
		cache: cache.New[Settings](ttl, clock),
	}
}

// Load returns the settings map, reading the backing table only on a cache
// miss. An unreadable or empty table is an error — callers must not proceed
// on silently-defaulted configuration.
func (l *Loader) Load(ctx context.Context) (Settings, error) {
	if cached, ok := l.cache.Get(); ok {
		return cached, nil
	}

	rows, err := l.src.ReadTable(ctx, tabular.TableSettings)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("settings: %s table is empty or unreadable", tabular.TableSettings)
	}

	s := Settings{}
	for _, row := range rows {
		k, ok := row.Field("Key", "key")
		if !ok {
			continue
		}
		v, _ := row.Field("Value", "value")
		s[k] = v
	}

	if s[KeyAPIKey] == "" || s[KeyModel] == "" {
		slog.Warn("settings: model credentials incomplete; prediction calls will fail",
			"missing_api_key", s[KeyAPIKey] == "",
			"missing_model", s[KeyModel] == "")
	}

	l.cache.Put(s)
	return s, nil
}

// Invalidate drops the cached settings so the next Load re-reads the table.
func (l *Loader) Invalidate() {
	l.cache.Invalidate()
}
