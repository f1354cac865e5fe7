package specialists_test

import (
	"context"
	"strings"
	"testing"

	"github.com/polarisbot/polaris/internal/polaris/specialists"
	"github.com/polarisbot/polaris/internal/polaris/tabular"
)

func TestListsAddThenList(t *testing.T) {
	src := newMemSource()
	lists := specialists.NewLists(src)
	ctx := context.Background()

	resp := lists.Handle(ctx, specialists.Request{Text: "add milk to HomeErrands"})
	if !resp.OK {
		t.Fatalf("add: %+v", resp)
	}
	if resp.Message != "✅ Added to HomeErrands: milk" {
		t.Errorf("add message: got %q", resp.Message)
	}

	resp = lists.Handle(ctx, specialists.Request{Text: "list HomeErrands"})
	if !resp.OK {
		t.Fatalf("list: %+v", resp)
	}
	if !strings.Contains(resp.Message, "• milk") {
		t.Errorf("list should contain the added item, got %q", resp.Message)
	}
}

func TestListsEmptyList(t *testing.T) {
	lists := specialists.NewLists(newMemSource())

	resp := lists.Handle(context.Background(), specialists.Request{Text: "list groceries"})
	if !resp.OK {
		t.Fatalf("empty list is not a failure: %+v", resp)
	}
	if resp.Message != "📭 No items in groceries." {
		t.Errorf("empty message: got %q", resp.Message)
	}
}

func TestListsAliasResolution(t *testing.T) {
	src := newMemSource()
	src.tables[tabular.TableDataAgents] = []tabular.Row{
		{"agentName": "groceries", "sheetName": "grocery_list"},
	}
	lists := specialists.NewLists(src)
	ctx := context.Background()

	resp := lists.Handle(ctx, specialists.Request{Text: "add bread to Groceries"})
	if !resp.OK {
		t.Fatalf("add: %+v", resp)
	}
	if !strings.Contains(resp.Message, "grocery_list") {
		t.Errorf("alias should resolve to the physical table, got %q", resp.Message)
	}

	rows, _ := src.ReadTable(ctx, "grocery_list")
	if len(rows) != 1 {
		t.Fatalf("expected row in grocery_list, got %d", len(rows))
	}
}

func TestListsUnrecognizedText(t *testing.T) {
	lists := specialists.NewLists(newMemSource())

	resp := lists.Handle(context.Background(), specialists.Request{Text: "what is the meaning of life"})
	if resp.OK {
		t.Fatal("unparsable text should be a degraded reply")
	}
	if !strings.Contains(resp.Message, "add milk to HomeErrands") {
		t.Errorf("usage hint expected, got %q", resp.Message)
	}
}
