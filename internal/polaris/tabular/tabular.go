// Package tabular is the narrow interface Polaris has onto its row-oriented
// configuration substrate.
//
// The original deployment kept everything in spreadsheet tabs; this package
// preserves that shape — a named table of string-keyed rows — while backing
// it with SQLite. Columns written by different operators over time carry
// inconsistent header casings ("HandlerKey" vs "name", "Value" vs "value"),
// so Row lookups accept an explicit list of header aliases per logical field
// and fail loudly when a required field is absent from all of them.
package tabular

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField is returned by RequiredField when none of the accepted
// header aliases are present in the row.
var ErrMissingField = errors.New("tabular: required field missing from row")

// Row is a single table row keyed by column header.
type Row map[string]string

// Field returns the value of the first alias present in the row with a
// non-empty value. Header matching is case-insensitive so rows survive the
// header-casing drift seen in operator-maintained tables.
func (r Row) Field(aliases ...string) (string, bool) {
	for _, alias := range aliases {
		if v, ok := r[alias]; ok && v != "" {
			return v, true
		}
	}
	// Fall back to a case-insensitive scan only when no exact header matched.
	for _, alias := range aliases {
		for k, v := range r {
			if v != "" && strings.EqualFold(k, alias) {
				return v, true
			}
		}
	}
	return "", false
}

// RequiredField is Field, but a missing value is an error naming the aliases
// that were tried. Loaders use this for fields whose absence must not be
// silently defaulted.
func (r Row) RequiredField(aliases ...string) (string, error) {
	if v, ok := r.Field(aliases...); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w (tried headers: %s)", ErrMissingField, strings.Join(aliases, ", "))
}

// Source reads and appends rows of named tables. Implementations must be
// safe for concurrent use.
type Source interface {
	// ReadTable returns all rows of the named table in insertion order.
	// A table with no rows yields an empty slice, not an error — callers
	// decide whether emptiness is a failure.
	ReadTable(ctx context.Context, name string) ([]Row, error)

	// AppendRow appends one row to the named table, creating the table
	// implicitly on first write.
	AppendRow(ctx context.Context, name string, row Row) error
}

// Well-known table names, matching the tabs of the original deployment.
const (
	TableSettings   = "Settings"
	TableHandlers   = "Handlers"
	TableDataAgents = "DataAgents"
	TableUserAccess = "UserAccess"
)
