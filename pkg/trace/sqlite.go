package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// timestampLayout has a fixed width so started_at sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteExporter stores records in a SQLite table so recent calls can be queried.
type SQLiteExporter struct {
	db *sql.DB
}

// NewSQLiteExporter opens dbPath (a file path or ":memory:") and creates the
// traces table if it doesn't exist.
func NewSQLiteExporter(dbPath string) (*SQLiteExporter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writes.
	db.SetMaxOpenConns(1)

	e := &SQLiteExporter{db: db}
	if err := e.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize trace schema: %w", err)
	}
	return e, nil
}

func (e *SQLiteExporter) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS traces (
		operation_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		operation TEXT NOT NULL,
		backend TEXT,
		model TEXT,
		duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		error_type TEXT,
		spans TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_traces_started_at ON traces(started_at);
	`
	_, err := e.db.Exec(schema)
	return err
}

// Export inserts record. Re-exporting the same operation ID replaces the row.
func (e *SQLiteExporter) Export(ctx context.Context, record *TraceRecord) error {
	spans, err := json.Marshal(record.Spans)
	if err != nil {
		return fmt.Errorf("encode spans: %w", err)
	}

	_, err = e.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO traces
			(operation_id, started_at, operation, backend, model, duration_ms, status, attempts, error_type, spans)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.OperationID,
		record.Timestamp.UTC().Format(timestampLayout),
		record.Operation,
		record.Backend,
		record.Model,
		record.DurationMs,
		record.Status,
		record.Attempts,
		record.ErrorType,
		string(spans),
	)
	if err != nil {
		return fmt.Errorf("insert trace record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (e *SQLiteExporter) Recent(ctx context.Context, limit int) ([]TraceRecord, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT operation_id, started_at, operation, backend, model, duration_ms, status, attempts, error_type, spans
		FROM traces
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	var records []TraceRecord
	for rows.Next() {
		var (
			r         TraceRecord
			startedAt string
			errorType sql.NullString
			spans     sql.NullString
		)
		if err := rows.Scan(&r.OperationID, &startedAt, &r.Operation, &r.Backend, &r.Model,
			&r.DurationMs, &r.Status, &r.Attempts, &errorType, &spans); err != nil {
			return nil, fmt.Errorf("scan trace row: %w", err)
		}

		r.Timestamp, err = time.Parse(timestampLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse trace timestamp: %w", err)
		}
		r.ErrorType = errorType.String
		if spans.Valid && spans.String != "" {
			if err := json.Unmarshal([]byte(spans.String), &r.Spans); err != nil {
				return nil, fmt.Errorf("decode spans: %w", err)
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the database.
func (e *SQLiteExporter) Close() error {
	return e.db.Close()
}
