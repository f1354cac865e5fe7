package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/polarisbot/polaris/common/redact"
	"github.com/polarisbot/polaris/common/trace"
)

// maxDetailsLen caps the serialized details payload stored per audit row.
const maxDetailsLen = 3000

// AuditEntry represents an audit log entry
type AuditEntry struct {
	ID        int64
	Timestamp time.Time
	Level     string
	Event     string
	Details   sql.NullString
	TraceID   string
	UserID    string
}

// AuditDetails is a helper for structured audit payloads
type AuditDetails map[string]any

// WriteAudit appends an entry to the audit log. The details map is redacted
// (secret-looking keys are masked) and truncated before storage. The trace ID
// is taken from ctx when present.
func (s *Store) WriteAudit(ctx context.Context, level, evt, userID string, details AuditDetails) error {
	var detailsJSON sql.NullString
	if details != nil {
		jsonBytes, err := json.Marshal(redact.Map(details))
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
		text := string(jsonBytes)
		if len(text) > maxDetailsLen {
			text = text[:maxDetailsLen]
		}
		detailsJSON = sql.NullString{String: text, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (ts, level, evt, details, trace_id, user_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, time.Now(), level, evt, detailsJSON, trace.FromContext(ctx), userID)

	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	return nil
}

// Audit is the fire-and-forget variant of WriteAudit. A failure to record an
// audit entry must never fail the request being audited, so errors are only
// reported through slog.
func (s *Store) Audit(ctx context.Context, level, evt, userID string, details AuditDetails) {
	if err := s.WriteAudit(ctx, level, evt, userID, details); err != nil {
		slog.Error("audit write failed", "evt", evt, "err", err)
	}
}

// GetAuditLog retrieves recent audit entries, newest first.
func (s *Store) GetAuditLog(ctx context.Context, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, level, evt, details, trace_id, user_id
		FROM audit_log
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.Timestamp, &entry.Level, &entry.Event,
			&entry.Details, &entry.TraceID, &entry.UserID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}

	return entries, nil
}
