package specialists_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/polarisbot/polaris/internal/polaris/specialists"
)

func newCalendar(client *stubClient, port specialists.CalendarPort) *specialists.Calendar {
	src := newMemSource()
	manifests, cfg := testLoaders(src)
	return specialists.NewCalendar(client, manifests, port, cfg)
}

func TestCalendarReadNoEvents(t *testing.T) {
	client := &stubClient{answer: `{"action":"read","start":"2025-10-30T00:00:00","end":"2025-10-30T23:59:59","reply_lang":"en"}`}
	cal := newCalendar(client, &fakeCalendar{})

	resp := cal.Handle(context.Background(), specialists.Request{Text: "what's on today?"})
	if !resp.OK {
		t.Fatalf("read: %+v", resp)
	}
	if resp.Message != "🗓️ No events found for Oct 30." {
		t.Errorf("zero-event message: got %q", resp.Message)
	}
}

func TestCalendarReadSingleEventHasPermalink(t *testing.T) {
	client := &stubClient{answer: `{"action":"read","start":"2025-10-30T00:00:00","end":"2025-10-30T23:59:59","reply_lang":"en"}`}
	port := &fakeCalendar{events: []specialists.Event{
		{
			ID:         "abc123@google.com",
			CalendarID: "primary",
			Title:      "Standup",
			Start:      time.Date(2025, 10, 30, 9, 30, 0, 0, time.UTC),
		},
	}}
	cal := newCalendar(client, port)

	resp := cal.Handle(context.Background(), specialists.Request{Text: "what's on today?"})
	if !resp.OK {
		t.Fatalf("read: %+v", resp)
	}
	if !strings.HasPrefix(resp.Message, "Found 1 event:") {
		t.Errorf("header: got %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "*Standup* [9:30 AM]") {
		t.Errorf("event line: got %q", resp.Message)
	}
	// "abc123 primary" base64-encoded, with the "@..." suffix dropped first.
	if !strings.Contains(resp.Message, "https://www.google.com/calendar/event?eid=YWJjMTIzIHByaW1hcnk=") {
		t.Errorf("permalink: got %q", resp.Message)
	}
}

func TestCalendarReadManyEventsHebrew(t *testing.T) {
	client := &stubClient{answer: `{"action":"read","start":"2025-10-30T00:00:00","end":"2025-10-30T23:59:59","reply_lang":"he"}`}
	port := &fakeCalendar{events: []specialists.Event{
		{ID: "a@x", CalendarID: "p", Title: "One", Start: time.Date(2025, 10, 30, 9, 0, 0, 0, time.UTC)},
		{ID: "b@x", CalendarID: "p", Title: "Two", AllDay: true},
	}}
	cal := newCalendar(client, port)

	resp := cal.Handle(context.Background(), specialists.Request{Text: "מה יש לי היום?"})
	if !resp.OK {
		t.Fatalf("read: %+v", resp)
	}
	if !strings.HasPrefix(resp.Message, "נמצאו 2 אירועים:") {
		t.Errorf("hebrew header: got %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "(כל היום)") {
		t.Errorf("all-day marker: got %q", resp.Message)
	}
}

func TestCalendarCreate(t *testing.T) {
	client := &stubClient{answer: `{"action":"create","title":"Dentist","start":"2025-10-31T15:00:00","end":"2025-10-31T16:00:00","reply_lang":"en"}`}
	port := &fakeCalendar{}
	cal := newCalendar(client, port)

	resp := cal.Handle(context.Background(), specialists.Request{Text: "dentist tomorrow at 3pm"})
	if !resp.OK {
		t.Fatalf("create: %+v", resp)
	}
	if resp.Message != "✅ Event created successfully: *Dentist* on Oct 31, 2025 at 3:00 PM." {
		t.Errorf("create message: got %q", resp.Message)
	}
	if len(port.created) != 1 || port.created[0].Title != "Dentist" {
		t.Errorf("port should record the creation, got %+v", port.created)
	}
}

func TestCalendarCreateMissingFieldsDegrades(t *testing.T) {
	client := &stubClient{answer: `{"action":"create","title":"Dentist","reply_lang":"en"}`}
	port := &fakeCalendar{}
	cal := newCalendar(client, port)

	resp := cal.Handle(context.Background(), specialists.Request{Text: "dentist sometime"})
	if resp.OK {
		t.Fatal("missing start/end should degrade to help text")
	}
	if !strings.HasPrefix(resp.Message, "⚠️ ") {
		t.Errorf("help text: got %q", resp.Message)
	}
	if len(port.created) != 0 {
		t.Error("nothing must be created on a partial command")
	}
}

func TestCalendarBadModelOutputDegrades(t *testing.T) {
	client := &stubClient{answer: "sorry, I can't do JSON today"}
	cal := newCalendar(client, &fakeCalendar{})

	resp := cal.Handle(context.Background(), specialists.Request{Text: "anything"})
	if resp.OK {
		t.Fatal("unparsable model output should degrade")
	}
}

func TestCalendarPredictionErrorDegrades(t *testing.T) {
	client := &stubClient{err: errors.New("api down")}
	cal := newCalendar(client, &fakeCalendar{})

	resp := cal.Handle(context.Background(), specialists.Request{Text: "anything"})
	if resp.OK {
		t.Fatal("prediction error should degrade")
	}
}

func TestCalendarFencedJSONAccepted(t *testing.T) {
	client := &stubClient{answer: "```json\n{\"action\":\"read\",\"start\":\"2025-10-30T00:00:00\",\"end\":\"2025-10-30T23:59:59\",\"reply_lang\":\"en\"}\n```"}
	cal := newCalendar(client, &fakeCalendar{})

	resp := cal.Handle(context.Background(), specialists.Request{Text: "what's on?"})
	if !resp.OK {
		t.Fatalf("fenced JSON should be accepted: %+v", resp)
	}
}
