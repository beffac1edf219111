package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/csvrunner/internal/engine"
)

// BeginRun records the start of a run.
// Uses ON CONFLICT(id) DO NOTHING, so recording the same run twice is a no-op.
func (s *Store) BeginRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return fmt.Errorf("begin run: empty run id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, input_path, results_path, command_column, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID,
		r.InputPath,
		r.ResultsPath,
		r.CommandColumn,
		formatTime(r.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

var _ engine.Journal = (*Store)(nil)

// RecordAttempt stores one evaluated row. It implements engine.Journal.
//
// The run must have been recorded with BeginRun (foreign key constraint).
// A second attempt with the same (run_id, seq) is silently ignored.
func (s *Store) RecordAttempt(ctx context.Context, a engine.Attempt) error {
	retry := 0
	if a.Retry {
		retry = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts
		(run_id, seq, row_num, identity_key, command, outcome, output, retry, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		a.RunID,
		a.Seq,
		a.Row,
		string(a.Key),
		a.Command,
		string(a.Outcome),
		a.Output,
		retry,
		a.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// FinishRun stores the summary and finish time of a run.
func (s *Store) FinishRun(ctx context.Context, sum engine.Summary, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, row_count = ?, succeeded = ?, failed = ?,
		    empty_count = ?, skipped = ?, retried = ?
		WHERE id = ?
	`,
		formatTime(finishedAt),
		sum.Rows,
		sum.Succeeded,
		sum.Failed,
		sum.Empty,
		sum.Skipped,
		sum.Retried,
		sum.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", sum.RunID, ErrRunNotFound)
	}
	return nil
}
