package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"promosweep/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements sweep.Journal backed by a local SQLite database.
// It records what each run did for the history command; nothing reads it
// back to resume work.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at the given path and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	action          TEXT NOT NULL,
	total           INTEGER NOT NULL DEFAULT 0,
	started_rfc3339 TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS outcomes (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id            INTEGER NOT NULL REFERENCES runs(id),
	email             TEXT NOT NULL,
	action            TEXT NOT NULL,
	status            TEXT NOT NULL,
	unsubscribed      INTEGER NOT NULL DEFAULT 0,
	deleted           INTEGER NOT NULL DEFAULT 0,
	error             TEXT NOT NULL DEFAULT '',
	processed_rfc3339 TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS outcomes_run ON outcomes(run_id);
`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BeginRun opens a run of action over total senders and returns its id.
func (s *SQLiteStore) BeginRun(ctx context.Context, action model.Action, total int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (action, total, started_rfc3339) VALUES (?, ?, ?)",
		string(action), total, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) RecordOutcome(ctx context.Context, runID int64, o model.Outcome) error {
	processed := ""
	if !o.ProcessedAt.IsZero() {
		processed = o.ProcessedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, email, action, status, unsubscribed, deleted, error, processed_rfc3339)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, o.Email, string(o.Action), string(o.Status), o.Unsubscribed, o.Deleted, o.Err, processed)
	if err != nil {
		return fmt.Errorf("record outcome for %s: %w", o.Email, err)
	}
	return nil
}

// RecentOutcomes returns up to limit outcomes, newest first.
func (s *SQLiteStore) RecentOutcomes(ctx context.Context, limit int) ([]model.Outcome, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, action, status, unsubscribed, deleted, error, processed_rfc3339
		FROM outcomes ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Outcome
	for rows.Next() {
		var (
			o                      model.Outcome
			action, status, procAt string
		)
		if err := rows.Scan(&o.Email, &action, &status, &o.Unsubscribed, &o.Deleted, &o.Err, &procAt); err != nil {
			return nil, err
		}
		o.Action = model.Action(action)
		o.Status = model.Status(status)
		if procAt != "" {
			if t, err := time.Parse(time.RFC3339, procAt); err == nil {
				o.ProcessedAt = t
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountRuns(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}
