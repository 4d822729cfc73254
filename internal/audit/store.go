// Package audit persists a per-document processing trail in SQLite.
//
// Every processed document — anonymized, failed, or skipped — produces one
// row, so failures are reported durably with their document identifier rather
// than only to stderr.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	veilotel "github.com/dativo-io/veil/internal/otel"
)

var tracer = veilotel.Tracer("github.com/dativo-io/veil/internal/audit")

// Document processing statuses.
const (
	StatusAnonymized = "anonymized"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
)

// Record is the audit row for one processed document. Raw text and raw PII
// values never enter the audit store, only the content-derived document id
// and category names.
type Record struct {
	RunID      string    `json:"run_id"`
	DocumentID string    `json:"document_id"`
	Status     string    `json:"status"`
	Entities   int       `json:"entities"`
	Categories []string  `json:"categories,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store persists audit records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the audit database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		run_id      TEXT NOT NULL,
		document_id TEXT NOT NULL,
		status      TEXT NOT NULL,
		entities    INTEGER NOT NULL,
		categories  TEXT,
		duration_ms INTEGER NOT NULL,
		error       TEXT,
		timestamp   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_run ON documents(run_id);
	CREATE INDEX IF NOT EXISTS idx_documents_doc ON documents(document_id);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing audit schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record inserts one audit row.
func (s *Store) Record(ctx context.Context, rec Record) error {
	ctx, span := tracer.Start(ctx, "audit.record")
	defer span.End()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (run_id, document_id, status, entities, categories, duration_ms, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.DocumentID, rec.Status, rec.Entities,
		strings.Join(rec.Categories, ","), rec.DurationMS, rec.Error,
		rec.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	return nil
}

// ListRun returns all records of a run in insertion order.
func (s *Store) ListRun(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, document_id, status, entities, categories, duration_ms, error, timestamp
		FROM documents WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var cats, ts string
		if err := rows.Scan(&rec.RunID, &rec.DocumentID, &rec.Status, &rec.Entities,
			&cats, &rec.DurationMS, &rec.Error, &ts); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		if cats != "" {
			rec.Categories = strings.Split(cats, ",")
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
