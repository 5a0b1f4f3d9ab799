// Package journal keeps a persistent SQLite log of every write attempt.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"xtherma_bridge/internal/types"
)

const (
	dirPermissions  = 0750
	busyTimeoutMs   = 5000
	connectTimeout  = 5 * time.Second
	recordTimeout   = 5 * time.Second
	connMaxIdleTime = 30 * time.Minute
)

const schema = `
CREATE TABLE IF NOT EXISTS writes (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	at      INTEGER NOT NULL,
	key     TEXT    NOT NULL,
	display REAL    NOT NULL,
	raw     INTEGER NOT NULL,
	error   TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS writes_key_at ON writes (key, at);
`

// Entry is one journaled write attempt. Error is empty for successful writes.
type Entry struct {
	ID      int64     `json:"id"`
	At      time.Time `json:"at"`
	Key     string    `json:"key"`
	Display float64   `json:"value"`
	Raw     int       `json:"raw"`
	Error   string    `json:"error,omitempty"`
}

// Journal is an append-only log of writes.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens or creates the journal database at path.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", path, busyTimeoutMs))
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying journal connection: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}

	return &Journal{db: db, logger: logger, now: time.Now}, nil
}

// Record appends a write attempt. It has the signature of a coordinator
// write hook; failures are logged, not returned.
func (j *Journal) Record(rec types.WriteRecord) {
	var msg string
	if rec.Err != nil {
		msg = rec.Err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO writes (at, key, display, raw, error) VALUES (?, ?, ?, ?, ?)`,
		j.now().UnixMilli(), rec.Key, rec.Display, rec.Raw, msg,
	)
	if err != nil {
		j.logger.Error("Journaling write failed", "key", rec.Key, "error", err)
	}
}

// Recent returns up to limit entries, newest first. An empty key returns
// entries for all keys.
func (j *Journal) Recent(ctx context.Context, key string, limit int) ([]Entry, error) {
	query := `SELECT id, at, key, display, raw, error FROM writes`
	args := []any{}
	if key != "" {
		query += ` WHERE key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.ID, &at, &e.Key, &e.Display, &e.Raw, &e.Error); err != nil {
			return nil, fmt.Errorf("scanning journal: %w", err)
		}
		e.At = time.UnixMilli(at).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("closing journal: %w", err)
	}
	return nil
}
