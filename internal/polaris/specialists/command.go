package specialists

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrBadCommand marks a "query 2" model reply that could not be turned into
// a valid structured command. Specialists degrade to their fallback help
// text on this error; they never guess missing values or execute partially.
var ErrBadCommand = errors.New("specialists: model output is not a valid command")

//go:embed schemas/*.json
var schemasFS embed.FS

var (
	mailSchema     = mustSchema("mail_command.json")
	calendarSchema = mustSchema("calendar_command.json")
)

func mustSchema(name string) *jsonschema.Schema {
	data, err := schemasFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("specialists: missing embedded schema %s: %v", name, err))
	}
	return jsonschema.MustCompileString(name, string(data))
}

// MailCommand is the structured form of a mail request.
// The action tag determines which fields are required.
type MailCommand struct {
	Action    string `json:"action"` // "read" or "draft"
	Query     string `json:"query,omitempty"`
	Count     int    `json:"count,omitempty"`
	To        string `json:"to,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body,omitempty"`
	ReplyLang string `json:"reply_lang,omitempty"`
}

// CalendarCommand is the structured form of a calendar request.
type CalendarCommand struct {
	Action    string `json:"action"` // "read" or "create"
	Title     string `json:"title,omitempty"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
	ReplyLang string `json:"reply_lang,omitempty"`
}

// decodeCommand parses raw model output into out, validating it against
// schema first. Models occasionally wrap JSON in markdown code fences
// despite instructions, so fences are stripped before parsing. Any failure
// is an ErrBadCommand — the raw output travels only into logs, never into
// execution.
func decodeCommand(raw string, schema *jsonschema.Schema, out any) error {
	text := stripFences(raw)

	var generic any
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		return fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	return nil
}

// stripFences removes markdown code-fence markers around a JSON payload.
func stripFences(raw string) string {
	s := strings.ReplaceAll(raw, "```json\n", "")
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
