package specialists

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/polarisbot/polaris/internal/polaris/llm"
	"github.com/polarisbot/polaris/internal/polaris/manifest"
	"github.com/polarisbot/polaris/internal/polaris/pending"
)

// mailFailsafe is the hardcoded help text used when the manifest itself
// cannot supply a fallback for the mail handler.
const mailFailsafe = "I can read your inbox or draft an email. Try: \"read my last 3 emails\" or \"send an email to dana@example.com\"."

// mailPrompt is the "query 2" instruction for the mail specialist.
const mailPrompt = `You are a "Query 2" Email specialist. Your ONLY job is to convert the user's request into a single, valid JSON command.

You must choose one of the following actions: "read" or "draft".
You MUST also include a "reply_lang" key set to the detected language of the user's prompt (e.g., "en", "he").

1.  **"read" action**: searches the inbox.
    * User: "show me unread emails from dana"
        -> {"action": "read", "query": "is:unread from:dana", "count": 3, "reply_lang": "en"}
    * User: "תראה לי את שלושת המיילים האחרונים"
        -> {"action": "read", "query": "in:inbox", "count": 3, "reply_lang": "he"}

2.  **"draft" action**: prepares an email. It is NEVER sent directly; the user confirms it separately.
    * User: "email bob@example.com that the meeting moved to 4pm, subject Meeting Update"
        -> {"action": "draft", "to": "bob@example.com", "subject": "Meeting Update", "body": "Hi, the meeting has moved to 4pm.", "reply_lang": "en"}
    * User: "שלח מייל לדנה שאני מאחר"
        -> {"action": "draft", "to": "dana@example.com", "subject": "עדכון", "body": "היי, אני מאחר.", "reply_lang": "he"}

Respond with ONLY the JSON object and nothing else.`

const (
	mailReadDefaultCount = 3
	mailReadMaxCount     = 10

	// mailConfirmHandlerKey names the deferred command so the confirmation
	// entry point can dispatch it back to mail sending.
	mailConfirmHandlerKey = "mail_send_confirm"

	// mailActionIDPrefix prefixes pending-action IDs minted by drafts.
	mailActionIDPrefix = "mail-send"
)

// Mail reads the inbox directly and defers sends behind a pending action.
// A "draft" command never touches the mail port; it is persisted and a
// confirmation link is handed back instead.
type Mail struct {
	client   llm.Client
	manifest *manifest.Loader
	port     MailPort
	pending  *pending.Store

	// baseURL is the externally reachable root of the confirmation server,
	// without a trailing slash.
	baseURL string
}

// NewMail creates the mail specialist.
func NewMail(client llm.Client, loader *manifest.Loader, port MailPort, store *pending.Store, baseURL string) *Mail {
	return &Mail{
		client:   client,
		manifest: loader,
		port:     port,
		pending:  store,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Handle translates req.Text into a read or draft command and executes it.
func (m *Mail) Handle(ctx context.Context, req Request) Response {
	raw, err := m.client.Predict(ctx, "query2_mail", mailPrompt, req.Text)
	if err != nil {
		slog.Error("mail: prediction failed", "err", err)
		return Response{OK: false, Message: m.helpText(ctx)}
	}

	var cmd MailCommand
	if err := decodeCommand(raw, mailSchema, &cmd); err != nil {
		slog.Error("mail: bad command from model", "err", err)
		return Response{OK: false, Message: m.helpText(ctx)}
	}

	switch cmd.Action {
	case "read":
		return m.read(ctx, cmd)
	case "draft":
		return m.draft(ctx, cmd, req)
	default:
		slog.Warn("mail: unknown action", "action", cmd.Action)
		return Response{OK: false, Message: m.helpText(ctx)}
	}
}

func (m *Mail) read(ctx context.Context, cmd MailCommand) Response {
	count := cmd.Count
	if count < 1 {
		count = mailReadDefaultCount
	}
	if count > mailReadMaxCount {
		count = mailReadMaxCount
	}

	threads, err := m.port.Search(ctx, cmd.Query, count)
	if err != nil {
		slog.Error("mail: search failed", "err", err)
		return Response{OK: false, Message: fmt.Sprintf("⚠️ Error reading emails: %v", err)}
	}

	lang := cmd.ReplyLang
	if len(threads) == 0 {
		return Response{OK: true, Message: pick(lang,
			fmt.Sprintf("📭 No emails found for query: %q", cmd.Query),
			fmt.Sprintf("📭 לא נמצאו מיילים עבור החיפוש: %q", cmd.Query),
		)}
	}

	if len(threads) == 1 {
		t := threads[0]
		linkText := pick(lang, "Open in Gmail", "פתח ב-Gmail")
		line := fmt.Sprintf("• *%s* (%s) [%s](%s)", t.Subject, fromLabel(t.From, lang), linkText, t.Permalink)
		return Response{OK: true, Message: pick(lang,
			"Found 1 email:\n"+line,
			"נמצא מייל 1:\n"+line,
		)}
	}

	summaries := make([]string, len(threads))
	for i, t := range threads {
		summaries[i] = fmt.Sprintf("• *%s* (%s)", t.Subject, fromLabel(t.From, lang))
	}
	header := pick(lang,
		fmt.Sprintf("Found %d emails:", len(threads)),
		fmt.Sprintf("נמצאו %d מיילים:", len(threads)),
	)
	return Response{OK: true, Message: header + "\n" + strings.Join(summaries, "\n")}
}

// draft persists the send command and returns a confirmation prompt. Nothing
// is sent here.
func (m *Mail) draft(ctx context.Context, cmd MailCommand, req Request) Response {
	if cmd.To == "" || cmd.Subject == "" || cmd.Body == "" {
		return Response{OK: false, Message: m.helpText(ctx)}
	}

	action, err := m.pending.Create(ctx, mailActionIDPrefix, mailConfirmHandlerKey, req.UserID, req.SpaceID, cmd, pending.DefaultTTL)
	if err != nil {
		slog.Error("mail: store pending send", "err", err)
		return Response{OK: false, Message: "⚠️ Could not prepare the email for approval. Please try again."}
	}

	link := fmt.Sprintf("%s/confirm?action=%s&id=%s", m.baseURL, mailConfirmHandlerKey, url.QueryEscape(action.ID))
	linkText := pick(cmd.ReplyLang, "CLICK HERE TO SEND NOW", "לחץ כאן לשליחה מיידית")
	msg := fmt.Sprintf("*Gmail Approval Needed (Ref: %s)*\n> **To:** %s\n> **Subject:** %s\n\n[%s](%s)",
		action.Ref(), cmd.To, cmd.Subject, linkText, link)
	return Response{OK: true, Message: msg}
}

// helpText resolves the mail handler's fallback message.
func (m *Mail) helpText(ctx context.Context) string {
	return "⚠️ " + m.manifest.FallbackText(ctx, manifest.KeyMail, mailFailsafe)
}

// fromLabel renders a sender, trimming the address part of "Name <addr>".
func fromLabel(from, lang string) string {
	name := from
	if lt := strings.Index(name, "<"); lt >= 0 {
		name = strings.TrimSpace(name[:lt])
	}
	if name == "" {
		name = from
	}
	return pick(lang, "from "+name, "מאת "+name)
}
