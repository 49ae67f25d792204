// internal/journal/journal.go
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/tamzrod/modbus-iopoints/internal/writer"
)

const (
	dirPermissions    = 0750
	busyTimeoutMs     = 5000
	connectionTimeout = 5 * time.Second
)

// ErrInvalidLimit is returned by Recent for n <= 0.
var ErrInvalidLimit = errors.New("journal: limit must be positive")

const schema = `
CREATE TABLE IF NOT EXISTS write_outcomes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	board       TEXT    NOT NULL,
	point       TEXT    NOT NULL,
	desired     INTEGER NOT NULL,
	attempts    INTEGER NOT NULL,
	state       TEXT    NOT NULL,
	error       TEXT    NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_write_outcomes_board ON write_outcomes(board, point);
`

// Entry is one journaled write outcome.
type Entry struct {
	Board      string
	Point      string
	Desired    bool
	Attempts   int
	State      string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Journal is an append-only audit trail of terminal write outcomes.
// It is not a state store: nothing is read back at startup.
type Journal struct {
	db   *sql.DB
	path string
}

// Open creates the database (and its directory) if missing.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("journal: creating directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}

	return &Journal{db: db, path: path}, nil
}

func (j *Journal) Path() string { return j.path }

// Record appends one terminal outcome.
func (j *Journal) Record(ctx context.Context, o writer.Outcome) error {
	errText := ""
	if o.Err != nil {
		errText = o.Err.Error()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO write_outcomes (board, point, desired, attempts, state, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.BoardID,
		o.ID.String(),
		o.Desired,
		o.Writes,
		o.Phase.String(),
		errText,
		o.Started.UnixNano(),
		o.Finished.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("journal: record %s/%s: %w", o.BoardID, o.ID, err)
	}
	return nil
}

// Recent returns the last n outcomes, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT board, point, desired, attempts, state, error, started_at, finished_at
		 FROM write_outcomes ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			started, finished int64
		)
		if err := rows.Scan(&e.Board, &e.Point, &e.Desired, &e.Attempts, &e.State, &e.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.StartedAt = time.Unix(0, started)
		e.FinishedAt = time.Unix(0, finished)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: rows: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("journal: close: %w", err)
	}
	return nil
}
