package specialists

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/polarisbot/polaris/internal/polaris/tabular"
)

// listRenderCap bounds how many items a "list" reply renders.
const listRenderCap = 20

// The two fixed grammars this specialist understands. Deliberately not a
// model call: list manipulation is cheap, frequent, and exact.
var (
	addPattern  = regexp.MustCompile(`(?i)add\s+(.*)\s+to\s+([\w-]+)`)
	listPattern = regexp.MustCompile(`(?i)list\s+([\w-]+)`)
)

// Lists manages named item lists stored as rows of the tabular substrate.
// The list name the user speaks is resolved against the DataAgents alias
// table (agentName → sheetName) and falls back to the raw name.
type Lists struct {
	src tabular.Source
}

// NewLists creates the list specialist.
func NewLists(src tabular.Source) *Lists {
	return &Lists{src: src}
}

// Handle parses "add <item> to <list>" / "list <list>" requests.
func (l *Lists) Handle(ctx context.Context, req Request) Response {
	if m := addPattern.FindStringSubmatch(req.Text); m != nil {
		return l.add(ctx, strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
	}
	if m := listPattern.FindStringSubmatch(req.Text); m != nil {
		return l.list(ctx, strings.TrimSpace(m[1]))
	}
	return Response{
		OK:      false,
		Message: "I can add/list items.\nTry: 'add milk to HomeErrands' or 'list HomeErrands'",
	}
}

func (l *Lists) add(ctx context.Context, item, name string) Response {
	table := l.resolveTable(ctx, name)
	row := tabular.Row{
		"ts":   time.Now().Format(time.RFC3339),
		"item": item,
	}
	if err := l.src.AppendRow(ctx, table, row); err != nil {
		slog.Error("lists: append failed", "table", table, "err", err)
		return Response{OK: false, Message: "⚠️ Sheet handler error."}
	}
	return Response{OK: true, Message: fmt.Sprintf("✅ Added to %s: %s", table, item)}
}

func (l *Lists) list(ctx context.Context, name string) Response {
	table := l.resolveTable(ctx, name)
	rows, err := l.src.ReadTable(ctx, table)
	if err != nil {
		slog.Error("lists: read failed", "table", table, "err", err)
		return Response{OK: false, Message: "⚠️ Sheet handler error."}
	}
	if len(rows) == 0 {
		return Response{OK: true, Message: fmt.Sprintf("📭 No items in %s.", table)}
	}

	if len(rows) > listRenderCap {
		rows = rows[:listRenderCap]
	}
	items := make([]string, len(rows))
	for i, row := range rows {
		if item, ok := row.Field("item"); ok {
			items[i] = "• " + item
			continue
		}
		raw, _ := json.Marshal(row)
		items[i] = "• " + string(raw)
	}
	return Response{OK: true, Message: fmt.Sprintf("📋 %s\n%s", table, strings.Join(items, "\n"))}
}

// resolveTable maps a spoken list name to its physical table through the
// DataAgents alias table; unknown names are used as-is.
func (l *Lists) resolveTable(ctx context.Context, name string) string {
	rows, err := l.src.ReadTable(ctx, tabular.TableDataAgents)
	if err != nil {
		slog.Warn("lists: reading DataAgents failed, using raw name", "err", err)
		return name
	}
	for _, row := range rows {
		agent, ok := row.Field("agentName", "AgentName")
		if !ok || !strings.EqualFold(agent, name) {
			continue
		}
		if sheet, ok := row.Field("sheetName", "SheetName"); ok {
			return sheet
		}
		return name
	}
	return name
}
