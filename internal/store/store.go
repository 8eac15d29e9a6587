// Package store persists scenario run reports in sqlite so results
// survive process restarts and can be queried by the API and triage.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/runner"
	"github.com/rysweet/gadugi-agentic-test-sub004/internal/step"
)

var ErrNotFound = errors.New("not found")

// Run is a persisted scenario run.
type Run struct {
	ID       string        `json:"id"`
	Scenario string        `json:"scenario"`
	Path     string        `json:"path,omitempty"`
	Status   runner.Status `json:"status"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

type Store struct {
	db *sql.DB
}

// Open creates the database file if needed and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveReport persists a run and its step results atomically, returning
// the new run id.
func (s *Store) SaveReport(ctx context.Context, rep *runner.Report) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs(run_id, scenario, path, status, started_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?)
`, runID, rep.Scenario, rep.Path, string(rep.Status), ts(rep.Started), rep.Duration.Milliseconds())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, res := range rep.Results {
		_, err = tx.ExecContext(ctx, `
INSERT INTO step_results(run_id, seq, step, action, target, session_id, status, duration_ms, error, output)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, runID, i, res.Step, res.Action, res.Target, res.SessionID, string(res.Status), res.Duration.Milliseconds(), res.Error, res.Output)
		if err != nil {
			return "", fmt.Errorf("insert step result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// GetRun loads one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT run_id, scenario, path, status, started_at, duration_ms
FROM runs WHERE run_id = ?
`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, scenario, path, status, started_at, duration_ms
FROM runs ORDER BY started_at DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// StepResults returns the step results of one run in execution order.
func (s *Store) StepResults(ctx context.Context, runID string) ([]step.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT step, action, target, session_id, status, duration_ms, error, output
FROM step_results WHERE run_id = ? ORDER BY seq
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list step results: %w", err)
	}
	defer rows.Close()

	var results []step.Result
	for rows.Next() {
		var res step.Result
		var status string
		var durationMS int64
		if err := rows.Scan(&res.Step, &res.Action, &res.Target, &res.SessionID, &status, &durationMS, &res.Error, &res.Output); err != nil {
			return nil, fmt.Errorf("scan step result: %w", err)
		}
		res.Status = step.Status(status)
		res.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, res)
	}
	return results, rows.Err()
}

// RecentFailures returns failed step results across recent runs,
// newest first. Triage feeds on this.
func (s *Store) RecentFailures(ctx context.Context, limit int) ([]step.Result, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT sr.step, sr.action, sr.target, sr.session_id, sr.status, sr.duration_ms, sr.error, sr.output
FROM step_results sr
JOIN runs r ON r.run_id = sr.run_id
WHERE sr.status = 'failed'
ORDER BY r.started_at DESC, sr.seq
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var results []step.Result
	for rows.Next() {
		var res step.Result
		var status string
		var durationMS int64
		if err := rows.Scan(&res.Step, &res.Action, &res.Target, &res.SessionID, &status, &durationMS, &res.Error, &res.Output); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		res.Status = step.Status(status)
		res.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, res)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var status, started string
	var durationMS int64
	if err := row.Scan(&r.ID, &r.Scenario, &r.Path, &status, &started, &durationMS); err != nil {
		return Run{}, err
	}
	r.Status = runner.Status(status)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	r.Started = t
	return r, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
