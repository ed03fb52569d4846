// Package journal persists operation history in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS journal (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	plugin_id  TEXT NOT NULL DEFAULT '',
	version    TEXT NOT NULL DEFAULT '',
	outcome    TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS journal_plugin ON journal (plugin_id, seq);
`

// SQLiteJournal records journal entries in a SQLite database.
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for a throwaway journal. The caller must call Close.
func Open(path string) (*SQLiteJournal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteJournal{db: db, now: time.Now}, nil
}

// Close releases the underlying database connection.
func (j *SQLiteJournal) Close() error { return j.db.Close() }

// Record inserts an entry, filling in a missing id or timestamp.
func (j *SQLiteJournal) Record(ctx context.Context, e ports.JournalEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO journal (id, kind, plugin_id, version, outcome, detail, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		e.ID, string(e.Kind), e.PluginID, e.Version, e.Outcome, e.Detail,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]ports.JournalEntry, error) {
	return j.query(ctx, `
		SELECT id, kind, plugin_id, version, outcome, detail, created_at
		FROM journal ORDER BY seq DESC LIMIT ?`, limitArg(limit))
}

// ForPlugin returns up to limit entries about one plugin, newest first.
func (j *SQLiteJournal) ForPlugin(ctx context.Context, pluginID string, limit int) ([]ports.JournalEntry, error) {
	return j.query(ctx, `
		SELECT id, kind, plugin_id, version, outcome, detail, created_at
		FROM journal WHERE plugin_id = ? ORDER BY seq DESC LIMIT ?`, pluginID, limitArg(limit))
}

func (j *SQLiteJournal) query(ctx context.Context, q string, args ...interface{}) ([]ports.JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []ports.JournalEntry
	for rows.Next() {
		var (
			e       ports.JournalEntry
			kind    string
			created string
		)
		if err := rows.Scan(&e.ID, &kind, &e.PluginID, &e.Version, &e.Outcome, &e.Detail, &created); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Kind = ports.JournalKind(kind)
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse journal timestamp %q: %w", created, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// limitArg maps "no limit" to SQLite's -1.
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// Ensure SQLiteJournal implements ports.Journal.
var _ ports.Journal = (*SQLiteJournal)(nil)
