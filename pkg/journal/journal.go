// Package journal keeps a durable log of operator actions: commits, stops,
// speed changes and their outcome.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one recorded action.
type Entry struct {
	ID      string
	Time    time.Time
	Action  string
	Detail  string
	Success bool
}

// Journal is a SQLite-backed action log. It implements teleop.Recorder.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Journal{db: db, now: time.Now}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends an entry.
func (j *Journal) Record(ctx context.Context, action, detail string, success bool) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO entries (id, at, action, detail, success) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), j.now().UnixNano(), action, detail, success)
	if err != nil {
		return fmt.Errorf("record %s: %w", action, err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, at, action, detail, success FROM entries ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			at int64
		)
		if err := rows.Scan(&e.ID, &at, &e.Action, &e.Detail, &e.Success); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.Time = time.Unix(0, at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of entries, optionally limited to one action.
func (j *Journal) Count(ctx context.Context, action string) (int, error) {
	query, args := `SELECT COUNT(*) FROM entries`, []any{}
	if action != "" {
		query += ` WHERE action = ?`
		args = append(args, action)
	}
	var n int
	if err := j.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}
