package specialists

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/polarisbot/polaris/internal/polaris/llm"
	"github.com/polarisbot/polaris/internal/polaris/manifest"
	"github.com/polarisbot/polaris/internal/polaris/settings"
)

// calendarFailsafe is the hardcoded help text used when the manifest itself
// cannot supply a fallback for the calendar handler.
const calendarFailsafe = "Please be more specific. I may need a date, time, and title."

// calendarPromptTmpl is the "query 2" instruction for the calendar
// specialist. One printf verb: the current local date-time in ISO form, so
// the model resolves relative dates ("tomorrow") correctly.
const calendarPromptTmpl = `You are a "Query 2" Calendar specialist. Your ONLY job is to convert the user's request into a single, valid JSON command based on the current time.

The current date and time is: %s

You must respond in a valid ISO 8601 date-time format (YYYY-MM-DDTHH:MM:SS).
You must choose one of the following actions: "read" or "create".
You MUST also include a "reply_lang" key set to the detected language of the user's prompt (e.g., "en", "he").

1.  **"read" action**:
    * User: "what's on my calendar today?"
        -> {"action": "read", "start": "2025-10-30T00:00:00", "end": "2025-10-30T23:59:59", "reply_lang": "en"}
    * User: "מה יש לי בלוז מחר?"
        -> {"action": "read", "start": "2025-10-31T00:00:00", "end": "2025-10-31T23:59:59", "reply_lang": "he"}

2.  **"create" action**:
    * User: "schedule a dentist appointment tomorrow at 3pm for 1 hour"
        -> {"action": "create", "title": "Dentist Appointment", "start": "2025-10-31T15:00:00", "end": "2025-10-31T16:00:00", "reply_lang": "en"}
    * User: "קבע פגישת צוות בשישי ב-10 בבוקר"
        -> {"action": "create", "title": "פגישת צוות", "start": "2025-11-01T10:00:00", "end": "2025-11-01T10:30:00", "reply_lang": "he"}

Respond with ONLY the JSON object and nothing else.`

// isoLocal is the wall-clock layout embedded in prompts and expected back
// from the model. It carries no zone; times are interpreted in the
// configured timezone.
const isoLocal = "2006-01-02T15:04:05"

// Calendar reads and creates events through the calendar port.
type Calendar struct {
	client   llm.Client
	manifest *manifest.Loader
	port     CalendarPort
	settings *settings.Loader

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewCalendar creates the calendar specialist.
func NewCalendar(client llm.Client, loader *manifest.Loader, port CalendarPort, cfg *settings.Loader) *Calendar {
	return &Calendar{
		client:   client,
		manifest: loader,
		port:     port,
		settings: cfg,
		now:      time.Now,
	}
}

// Handle translates req.Text into a read or create command and executes it.
// Any parse failure or missing required field degrades to the handler's
// fallback help text — never to a partial execution.
func (c *Calendar) Handle(ctx context.Context, req Request) Response {
	loc := c.location(ctx)
	prompt := fmt.Sprintf(calendarPromptTmpl, c.now().In(loc).Format(isoLocal))

	raw, err := c.client.Predict(ctx, "query2_calendar", prompt, req.Text)
	if err != nil {
		slog.Error("calendar: prediction failed", "err", err)
		return Response{OK: false, Message: c.helpText(ctx)}
	}

	var cmd CalendarCommand
	if err := decodeCommand(raw, calendarSchema, &cmd); err != nil {
		slog.Error("calendar: bad command from model", "err", err)
		return Response{OK: false, Message: c.helpText(ctx)}
	}

	switch cmd.Action {
	case "read":
		return c.read(ctx, cmd, loc)
	case "create":
		return c.create(ctx, cmd, loc)
	default:
		slog.Warn("calendar: unknown action", "action", cmd.Action)
		return Response{OK: false, Message: c.helpText(ctx)}
	}
}

func (c *Calendar) read(ctx context.Context, cmd CalendarCommand, loc *time.Location) Response {
	start, err := time.ParseInLocation(isoLocal, cmd.Start, loc)
	if err != nil {
		return Response{OK: false, Message: c.helpText(ctx)}
	}
	end, err := time.ParseInLocation(isoLocal, cmd.End, loc)
	if err != nil {
		return Response{OK: false, Message: c.helpText(ctx)}
	}

	events, err := c.port.EventsBetween(ctx, start, end)
	if err != nil {
		slog.Error("calendar: read failed", "err", err)
		return Response{OK: false, Message: fmt.Sprintf("⚠️ Error reading calendar events: %v", err)}
	}

	lang := cmd.ReplyLang
	if len(events) == 0 {
		startStr := start.In(loc).Format("Jan 2")
		endStr := end.In(loc).Format("Jan 2")
		rangeStr := startStr
		if startStr != endStr {
			rangeStr = startStr + " to " + endStr
		}
		return Response{OK: true, Message: pick(lang,
			fmt.Sprintf("🗓️ No events found for %s.", rangeStr),
			fmt.Sprintf("🗓️ לא נמצאו אירועים עבור %s.", rangeStr),
		)}
	}

	if len(events) == 1 {
		e := events[0]
		link := buildEventLink(e)
		linkText := pick(lang, "Open in Calendar", "פתח ביומן")
		line := fmt.Sprintf("• *%s* [%s] [%s](%s)", e.Title, eventTimeLabel(e, lang, loc), linkText, link)
		return Response{OK: true, Message: pick(lang,
			"Found 1 event:\n"+line,
			"נמצא אירוע 1:\n"+line,
		)}
	}

	summaries := make([]string, len(events))
	for i, e := range events {
		link := buildEventLink(e)
		linkText := pick(lang, "link", "קישור")
		summaries[i] = fmt.Sprintf("• *%s* [%s] [[%s]](%s)", e.Title, eventTimeLabel(e, lang, loc), linkText, link)
	}
	header := pick(lang,
		fmt.Sprintf("Found %d events:", len(events)),
		fmt.Sprintf("נמצאו %d אירועים:", len(events)),
	)
	return Response{OK: true, Message: header + "\n" + strings.Join(summaries, "\n")}
}

func (c *Calendar) create(ctx context.Context, cmd CalendarCommand, loc *time.Location) Response {
	if cmd.Title == "" || cmd.Start == "" || cmd.End == "" {
		return Response{OK: false, Message: c.helpText(ctx)}
	}
	start, err := time.ParseInLocation(isoLocal, cmd.Start, loc)
	if err != nil {
		return Response{OK: false, Message: c.helpText(ctx)}
	}
	end, err := time.ParseInLocation(isoLocal, cmd.End, loc)
	if err != nil {
		return Response{OK: false, Message: c.helpText(ctx)}
	}

	event, err := c.port.CreateEvent(ctx, cmd.Title, start, end)
	if err != nil {
		slog.Error("calendar: create failed", "err", err)
		return Response{OK: false, Message: fmt.Sprintf("⚠️ Error creating calendar event: %v", err)}
	}

	timeStr := start.In(loc).Format("3:04 PM")
	dateStr := start.In(loc).Format("Jan 2, 2006")
	return Response{OK: true, Message: pick(cmd.ReplyLang,
		fmt.Sprintf("✅ Event created successfully: *%s* on %s at %s.", event.Title, dateStr, timeStr),
		fmt.Sprintf("✅ אירוע נוצר בהצלחה: *%s* ב-%s בשעה %s.", event.Title, dateStr, timeStr),
	)}
}

// helpText resolves the calendar handler's fallback message.
func (c *Calendar) helpText(ctx context.Context) string {
	return "⚠️ " + c.manifest.FallbackText(ctx, manifest.KeyCalendar, calendarFailsafe)
}

// location resolves the configured display timezone.
func (c *Calendar) location(ctx context.Context) *time.Location {
	cfg, err := c.settings.Load(ctx)
	if err != nil {
		return time.UTC
	}
	return cfg.Location()
}

// eventTimeLabel renders an event's start time, or the localized all-day
// marker.
func eventTimeLabel(e Event, lang string, loc *time.Location) string {
	if e.AllDay {
		return pick(lang, "(All Day)", "(כל היום)")
	}
	return e.Start.In(loc).Format("3:04 PM")
}

// buildEventLink constructs the provider permalink for an event by
// base64-encoding "<eventID> <calendarID>", the format the calendar web UI
// expects in its eid parameter. The event ID's "@" suffix is dropped first.
func buildEventLink(e Event) string {
	id := e.ID
	if at := strings.Index(id, "@"); at >= 0 {
		id = id[:at]
	}
	eid := base64.StdEncoding.EncodeToString([]byte(id + " " + e.CalendarID))
	return "https://www.google.com/calendar/event?eid=" + eid
}
