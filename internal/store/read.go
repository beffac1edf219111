package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/csvrunner/internal/engine"
	"github.com/roach88/csvrunner/internal/record"
)

const runColumns = `id, input_path, results_path, command_column, started_at, finished_at,
	row_count, succeeded, failed, empty_count, skipped, retried`

// ReadRun returns the run with the given id, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return r, nil
}

// LatestRuns returns up to limit runs, most recent first.
// Returns an empty slice (not nil) when the ledger has no runs.
func (s *Store) LatestRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		return []Run{}, nil
	}
	// Run ids are UUIDv7, so binary order is start order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadAttempts returns every attempt of a run ordered by seq.
// Returns an empty slice (not nil) if the run has no attempts.
func (s *Store) ReadAttempts(ctx context.Context, runID string) ([]engine.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, row_num, identity_key, command, outcome, output, retry, duration_ns
		FROM attempts
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []engine.Attempt{}
	for rows.Next() {
		var (
			a        engine.Attempt
			key      string
			outcome  string
			retry    int
			duration int64
		)
		if err := rows.Scan(&a.RunID, &a.Seq, &a.Row, &key, &a.Command, &outcome, &a.Output, &retry, &duration); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Key = record.Key(key)
		a.Outcome = engine.Outcome(outcome)
		a.Retry = retry != 0
		a.Duration = time.Duration(duration)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (Run, error) {
	var (
		r        Run
		started  string
		finished sql.NullString
	)
	err := sc.Scan(
		&r.ID, &r.InputPath, &r.ResultsPath, &r.CommandColumn, &started, &finished,
		&r.Summary.Rows, &r.Summary.Succeeded, &r.Summary.Failed,
		&r.Summary.Empty, &r.Summary.Skipped, &r.Summary.Retried,
	)
	if err != nil {
		return Run{}, err
	}
	r.Summary.RunID = r.ID

	if r.StartedAt, err = time.Parse(timeFormat, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		if r.FinishedAt, err = time.Parse(timeFormat, finished.String); err != nil {
			return Run{}, fmt.Errorf("parse finished_at: %w", err)
		}
	}
	return r, nil
}
