package specialists

import (
	"context"
	"errors"
	"time"
)

// ErrPortUnavailable is returned by the placeholder port implementations
// used when a deployment has no mail or calendar provider bound.
var ErrPortUnavailable = errors.New("specialists: capability port not configured")

// Event is one calendar entry as seen through the calendar port.
type Event struct {
	// ID is the provider event identifier (the part before any "@" suffix is
	// what permalinks are built from).
	ID string
	// CalendarID identifies the calendar the event belongs to.
	CalendarID string
	Title      string
	Start      time.Time
	End        time.Time
	AllDay     bool
}

// CalendarPort is the narrow calendar capability surface.
type CalendarPort interface {
	// EventsBetween returns events overlapping [start, end].
	EventsBetween(ctx context.Context, start, end time.Time) ([]Event, error)
	// CreateEvent creates an event and returns it as stored.
	CreateEvent(ctx context.Context, title string, start, end time.Time) (Event, error)
}

// Thread is one mail search result as seen through the mail port.
type Thread struct {
	Subject string
	// From is the sender header, possibly in "Name <addr>" form.
	From string
	// Permalink is a direct URL to the thread, when the provider has one.
	Permalink string
}

// MailPort is the narrow mail capability surface. Send is only ever invoked
// by the confirmation flow, never directly by a specialist.
type MailPort interface {
	// Search returns up to max threads matching query.
	Search(ctx context.Context, query string, max int) ([]Thread, error)
	// Send delivers a message.
	Send(ctx context.Context, to, subject, body string) error
}

// UnboundCalendar is a CalendarPort for deployments without a calendar
// provider; every call fails with ErrPortUnavailable.
type UnboundCalendar struct{}

func (UnboundCalendar) EventsBetween(context.Context, time.Time, time.Time) ([]Event, error) {
	return nil, ErrPortUnavailable
}

func (UnboundCalendar) CreateEvent(context.Context, string, time.Time, time.Time) (Event, error) {
	return Event{}, ErrPortUnavailable
}

// UnboundMail is a MailPort for deployments without a mail provider; every
// call fails with ErrPortUnavailable.
type UnboundMail struct{}

func (UnboundMail) Search(context.Context, string, int) ([]Thread, error) {
	return nil, ErrPortUnavailable
}

func (UnboundMail) Send(context.Context, string, string, string) error {
	return ErrPortUnavailable
}
