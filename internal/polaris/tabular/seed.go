package tabular

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Workbook is the on-disk seed format: a YAML document mapping table names
// to lists of rows. It exists so a fresh database comes up with working
// Settings, Handlers, DataAgents and UserAccess tables without a manual
// bootstrap step.
//
//	Settings:
//	  - Key: OPENAI_MODEL
//	    Value: gpt-4o-mini
//	Handlers:
//	  - HandlerKey: handle_gmail
//	    fnName: mail
//	    Description: Read email or draft a new one.
type Workbook map[string][]Row

// LoadWorkbook parses a YAML workbook file.
func LoadWorkbook(path string) (Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tabular: read workbook: %w", err)
	}
	return ParseWorkbook(data)
}

// ParseWorkbook decodes workbook YAML. Tables with no rows are dropped.
func ParseWorkbook(data []byte) (Workbook, error) {
	var wb Workbook
	if err := yaml.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("tabular: parse workbook: %w", err)
	}
	for name, rows := range wb {
		if len(rows) == 0 {
			delete(wb, name)
		}
	}
	return wb, nil
}

// Seed writes the workbook's rows into the source, skipping any table that
// already has rows so restarts do not duplicate seed data.
func Seed(ctx context.Context, src Source, wb Workbook) error {
	for name, rows := range wb {
		existing, err := src.ReadTable(ctx, name)
		if err != nil {
			return fmt.Errorf("tabular: seed %q: %w", name, err)
		}
		if len(existing) > 0 {
			slog.Debug("seed: table already populated, skipping", "table", name, "rows", len(existing))
			continue
		}
		for _, row := range rows {
			if err := src.AppendRow(ctx, name, row); err != nil {
				return fmt.Errorf("tabular: seed %q: %w", name, err)
			}
		}
		slog.Info("seeded table", "table", name, "rows", len(rows))
	}
	return nil
}
