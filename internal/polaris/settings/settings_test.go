package settings_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polarisbot/polaris/internal/polaris/settings"
	"github.com/polarisbot/polaris/internal/polaris/tabular"
)

// countingSource is an in-memory Source that counts ReadTable calls so the
// cache behavior is observable.
type countingSource struct {
	tables map[string][]tabular.Row
	reads  int
	err    error
}

func (s *countingSource) ReadTable(_ context.Context, name string) ([]tabular.Row, error) {
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	rows := s.tables[name]
	if rows == nil {
		rows = []tabular.Row{}
	}
	return rows, nil
}

func (s *countingSource) AppendRow(_ context.Context, name string, row tabular.Row) error {
	if s.tables == nil {
		s.tables = map[string][]tabular.Row{}
	}
	s.tables[name] = append(s.tables[name], row)
	return nil
}

func settingsRows() map[string][]tabular.Row {
	return map[string][]tabular.Row{
		tabular.TableSettings: {
			{"Key": settings.KeyAPIKey, "Value": "sk-test"},
			{"Key": settings.KeyModel, "Value": "gpt-4o-mini"},
			{"key": settings.KeyTimezone, "value": "UTC"},
		},
	}
}

func TestLoadBuildsMap(t *testing.T) {
	src := &countingSource{tables: settingsRows()}
	loader := settings.NewLoader(src, time.Minute, nil)

	s, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Get(settings.KeyModel) != "gpt-4o-mini" {
		t.Errorf("Value header: got %q", s.Get(settings.KeyModel))
	}
	if s.Get(settings.KeyTimezone) != "UTC" {
		t.Errorf("lowercase headers should be accepted: got %q", s.Get(settings.KeyTimezone))
	}
}

func TestLoadCachesWithinTTL(t *testing.T) {
	now := time.Date(2025, 10, 30, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	src := &countingSource{tables: settingsRows()}
	loader := settings.NewLoader(src, 10*time.Minute, clock)
	ctx := context.Background()

	if _, err := loader.Load(ctx); err != nil {
		t.Fatalf("first load: %v", err)
	}
	now = now.Add(5 * time.Minute)
	if _, err := loader.Load(ctx); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if src.reads != 1 {
		t.Errorf("expected one backing read within TTL, got %d", src.reads)
	}

	now = now.Add(6 * time.Minute)
	if _, err := loader.Load(ctx); err != nil {
		t.Fatalf("third load: %v", err)
	}
	if src.reads != 2 {
		t.Errorf("expected re-read after TTL, got %d reads", src.reads)
	}
}

func TestLoadEmptyTableFails(t *testing.T) {
	src := &countingSource{tables: map[string][]tabular.Row{}}
	loader := settings.NewLoader(src, time.Minute, nil)
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatal("expected error for empty Settings table")
	}
}

func TestLoadSourceErrorFails(t *testing.T) {
	src := &countingSource{err: errors.New("backend down")}
	loader := settings.NewLoader(src, time.Minute, nil)
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatal("expected error when source is unreadable")
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	if loc := (settings.Settings{}).Location(); loc != time.UTC {
		t.Errorf("unset timezone: got %v", loc)
	}
	s := settings.Settings{settings.KeyTimezone: "Not/AZone"}
	if loc := s.Location(); loc != time.UTC {
		t.Errorf("invalid timezone: got %v", loc)
	}
}
