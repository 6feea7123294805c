// Package history records service runs and the units each run had to skip
// in a small SQLite database next to the mediator's project data.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run states stored in the runs table.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Run is one recorded service invocation.
type Run struct {
	ID         string
	Service    string
	Project    string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Message    string
	Failures   []UnitFailure
}

// MissingUnit is the error recorded for a sequence number the parser never
// produced.
const MissingUnit = "missing from parser output"

// UnitFailure is one unit skipped during conversion or missing from the
// parser output.
type UnitFailure struct {
	Input string
	Seq   int
	Error string
}

// Store persists runs in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	service TEXT NOT NULL,
	project TEXT,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	status TEXT NOT NULL,
	message TEXT
);

CREATE TABLE IF NOT EXISTS unit_failures (
	run_id TEXT NOT NULL,
	input TEXT NOT NULL,
	seq INTEGER NOT NULL,
	error TEXT NOT NULL,
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_unit_failures_run ON unit_failures(run_id);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Begin records a new running run.
func (s *Store) Begin(ctx context.Context, id, service, project string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, service, project, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		id, service, project, formatTime(s.now()), StatusRunning)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", id, err)
	}
	return nil
}

// Finish stores the final state of a run together with its skipped units.
func (s *Store) Finish(ctx context.Context, id, status, message string, failures []UnitFailure) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, message = ? WHERE id = ?`,
		formatTime(s.now()), status, message, id)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	for _, f := range failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO unit_failures (run_id, input, seq, error) VALUES (?, ?, ?, ?)`,
			id, f.Input, f.Seq, f.Error); err != nil {
			return fmt.Errorf("insert unit failure: %w", err)
		}
	}
	return tx.Commit()
}

// Get loads one run with its unit failures.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, service, COALESCE(project, ''), started_at, COALESCE(finished_at, ''), status, COALESCE(message, '')
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT input, seq, error FROM unit_failures WHERE run_id = ? ORDER BY input, seq`, id)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var f UnitFailure
		if err := rows.Scan(&f.Input, &f.Seq, &f.Error); err != nil {
			return Run{}, err
		}
		run.Failures = append(run.Failures, f)
	}
	return run, rows.Err()
}

// Recent returns up to limit runs, newest first. Unit failures are not loaded.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, service, COALESCE(project, ''), started_at, COALESCE(finished_at, ''), status, COALESCE(message, '')
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run               Run
		started, finished string
	)
	if err := sc.Scan(&run.ID, &run.Service, &run.Project, &started, &finished, &run.Status, &run.Message); err != nil {
		return Run{}, err
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
