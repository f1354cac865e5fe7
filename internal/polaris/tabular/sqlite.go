package tabular

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/polarisbot/polaris/internal/polaris/store"
)

// SQLiteSource implements Source over the sheet_rows table of the Polaris
// database. Each row is stored as a JSON object keyed by column header, which
// keeps the substrate schemaless the way the original spreadsheet tabs were.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource creates a Source backed by the application database.
// The sheet_rows migration must have been applied (store.New guarantees this).
func NewSQLiteSource(s *store.Store) *SQLiteSource {
	return &SQLiteSource{db: s.DB()}
}

// ReadTable returns every row of the named table in insertion order.
func (s *SQLiteSource) ReadTable(ctx context.Context, name string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT row_json FROM sheet_rows WHERE sheet = ? ORDER BY id
	`, name)
	if err != nil {
		return nil, fmt.Errorf("tabular: read table %q: %w", name, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("tabular: scan row of %q: %w", name, err)
		}
		row := Row{}
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, fmt.Errorf("tabular: decode row of %q: %w", name, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tabular: iterate table %q: %w", name, err)
	}
	if result == nil {
		result = []Row{}
	}
	return result, nil
}

// AppendRow appends one row to the named table.
func (s *SQLiteSource) AppendRow(ctx context.Context, name string, row Row) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("tabular: encode row for %q: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sheet_rows (sheet, row_json) VALUES (?, ?)
	`, name, string(raw)); err != nil {
		return fmt.Errorf("tabular: append row to %q: %w", name, err)
	}
	return nil
}
