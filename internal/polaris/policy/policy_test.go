package policy_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/polarisbot/polaris/internal/polaris/policy"
	"github.com/polarisbot/polaris/internal/polaris/tabular"
)

type fakeSource struct {
	rows []tabular.Row
	err  error
}

func (f *fakeSource) ReadTable(context.Context, string) ([]tabular.Row, error) {
	return f.rows, f.err
}

func (f *fakeSource) AppendRow(context.Context, string, tabular.Row) error { return nil }

func accessTable() []tabular.Row {
	return []tabular.Row{
		{"User_Email": "@admin:example.com", "Access_Level": "ADMIN", "Allowed_Handlers": `[]`},
		{"User_Email": "@star:example.com", "Access_Level": "FREE", "Allowed_Handlers": `["*"]`},
		{"User_Email": "@member:example.com", "Access_Level": "FREE", "Allowed_Handlers": `["help", "general_chat"]`},
		{"User_Email": "@broken:example.com", "Access_Level": "FREE", "Allowed_Handlers": `not-json`},
	}
}

func TestAdminAllowedEverywhere(t *testing.T) {
	g := policy.NewGate(&fakeSource{rows: accessTable()}, nil, nil)
	res := g.Check(context.Background(), "@admin:example.com", "handle_gmail")
	if !res.Allowed {
		t.Fatalf("admin should pass, got %+v", res)
	}
}

func TestWildcardAllowedEverywhere(t *testing.T) {
	g := policy.NewGate(&fakeSource{rows: accessTable()}, nil, nil)
	res := g.Check(context.Background(), "@star:example.com", "handle_calendar")
	if !res.Allowed {
		t.Fatalf("wildcard member should pass, got %+v", res)
	}
}

func TestMemberLimitedToListedHandlers(t *testing.T) {
	g := policy.NewGate(&fakeSource{rows: accessTable()}, nil, nil)
	ctx := context.Background()

	if res := g.Check(ctx, "@member:example.com", "help"); !res.Allowed {
		t.Errorf("listed handler should pass, got %+v", res)
	}

	res := g.Check(ctx, "@member:example.com", "handle_gmail")
	if res.Allowed {
		t.Fatal("unlisted handler should be denied")
	}
	if !strings.Contains(res.Message, "'handle_gmail'") {
		t.Errorf("denial message should name the handler, got %q", res.Message)
	}
}

func TestUnknownUserDenied(t *testing.T) {
	g := policy.NewGate(&fakeSource{rows: accessTable()}, nil, nil)
	if res := g.Check(context.Background(), "@stranger:example.com", "help"); res.Allowed {
		t.Fatal("user without a policy row should be denied")
	}
}

func TestUnparsableHandlersTreatedAsEmpty(t *testing.T) {
	g := policy.NewGate(&fakeSource{rows: accessTable()}, nil, nil)
	if res := g.Check(context.Background(), "@broken:example.com", "help"); res.Allowed {
		t.Fatal("unparsable Allowed_Handlers should deny, not allow")
	}
}

func TestTableErrorDefaultsToDeny(t *testing.T) {
	g := policy.NewGate(&fakeSource{err: errors.New("backend down")}, nil, nil)
	if res := g.Check(context.Background(), "@admin:example.com", "help"); res.Allowed {
		t.Fatal("table read failure should deny by default")
	}
}

func TestBreakGlassBypassOnTableError(t *testing.T) {
	src := &fakeSource{err: errors.New("backend down")}
	g := policy.NewGate(src, nil, []string{"@oncall:example.com"})
	ctx := context.Background()

	if res := g.Check(ctx, "@oncall:example.com", "handle_gmail"); !res.Allowed {
		t.Fatal("break-glass admin should pass when the table is unreadable")
	}
	if res := g.Check(ctx, "@other:example.com", "handle_gmail"); res.Allowed {
		t.Fatal("non break-glass user should still be denied")
	}

	// Break-glass applies only while the table is unreadable.
	src.err = nil
	src.rows = accessTable()
	if res := g.Check(ctx, "@oncall:example.com", "handle_gmail"); res.Allowed {
		t.Fatal("break-glass must not bypass a readable policy table")
	}
}
