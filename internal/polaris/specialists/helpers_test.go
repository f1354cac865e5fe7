package specialists_test

import (
	"context"
	"sync"
	"time"

	"github.com/polarisbot/polaris/internal/polaris/manifest"
	"github.com/polarisbot/polaris/internal/polaris/settings"
	"github.com/polarisbot/polaris/internal/polaris/specialists"
	"github.com/polarisbot/polaris/internal/polaris/tabular"
)

// memSource is an in-memory tabular.Source shared by the specialist tests.
type memSource struct {
	mu     sync.Mutex
	tables map[string][]tabular.Row
	err    error
}

func newMemSource() *memSource {
	return &memSource{tables: map[string][]tabular.Row{
		tabular.TableSettings: {
			{"Key": settings.KeyAPIKey, "Value": "sk-test"},
			{"Key": settings.KeyModel, "Value": "gpt-4o-mini"},
			{"Key": settings.KeyTimezone, "Value": "UTC"},
		},
		tabular.TableHandlers: {
			{"HandlerKey": "handle_tasks", "GAS_Function": "tasks", "Description": "Manage tasks."},
		},
	}}
}

func (s *memSource) ReadTable(_ context.Context, name string) ([]tabular.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	rows := s.tables[name]
	if rows == nil {
		rows = []tabular.Row{}
	}
	return rows, nil
}

func (s *memSource) AppendRow(_ context.Context, name string, row tabular.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tables[name] = append(s.tables[name], row)
	return nil
}

// stubClient answers every prediction with a fixed string or error.
type stubClient struct {
	answer string
	err    error
}

func (s *stubClient) Predict(context.Context, string, string, string) (string, error) {
	return s.answer, s.err
}

// fakeMail records sends and serves canned search results.
type fakeMail struct {
	mu      sync.Mutex
	threads []specialists.Thread
	sent    []sentMail
	sendErr error
}

type sentMail struct {
	to, subject, body string
}

func (f *fakeMail) Search(context.Context, string, int) ([]specialists.Thread, error) {
	return f.threads, nil
}

func (f *fakeMail) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeMail) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeCalendar serves canned events and records creations.
type fakeCalendar struct {
	events  []specialists.Event
	created []specialists.Event
}

func (f *fakeCalendar) EventsBetween(context.Context, time.Time, time.Time) ([]specialists.Event, error) {
	return f.events, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, title string, start, end time.Time) (specialists.Event, error) {
	e := specialists.Event{ID: "created@google.com", CalendarID: "primary", Title: title, Start: start, End: end}
	f.created = append(f.created, e)
	return e, nil
}

func testLoaders(src tabular.Source) (*manifest.Loader, *settings.Loader) {
	return manifest.NewLoader(src, time.Minute, nil), settings.NewLoader(src, time.Minute, nil)
}
