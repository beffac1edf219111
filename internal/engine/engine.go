package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/csvrunner/internal/invoke"
	"github.com/roach88/csvrunner/internal/record"
	"github.com/roach88/csvrunner/internal/results"
)

// DefaultTimeout bounds every command unless WithTimeout says otherwise.
const DefaultTimeout = 30 * time.Second

// Invoker runs one command and returns its captured stdout, or an error
// once the command fails or the timeout passes.
type Invoker interface {
	Invoke(ctx context.Context, command string, timeout time.Duration) (string, error)
}

// Outcome is what the engine did with a row.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeEmpty   Outcome = "empty"
	OutcomeSkipped Outcome = "skipped"
)

// Attempt describes one evaluated row. Skipped rows are reported too, with
// an empty Output and zero Duration.
type Attempt struct {
	RunID    string
	Seq      int64
	Row      int // 1-based position in the input
	Key      record.Key
	Command  string
	Outcome  Outcome
	Output   string
	Retry    bool
	Duration time.Duration
}

// Journal receives every evaluated row. Errors are logged and never change
// the row's outcome.
type Journal interface {
	RecordAttempt(ctx context.Context, a Attempt) error
}

// Batch is the complete state of one run.
type Batch struct {
	// RunID identifies the run in progress output and the journal.
	// Empty means the engine's RunIDGenerator picks one.
	RunID string

	// Input rows in source order.
	Input []record.Record

	// Results is seeded from the prior run and receives every outcome.
	Results *results.Store

	// CommandColumn names the column holding the command text.
	CommandColumn string
}

// Validate checks the batch before any row runs.
// Input columns that reuse a reserved name are rejected rather than
// silently overwritten on output.
func (b Batch) Validate() error {
	if b.CommandColumn == "" {
		return &BatchError{Code: ErrCodeNoColumn, Message: "no command column selected"}
	}
	if b.Results == nil {
		return &BatchError{Code: ErrCodeNoResults, Message: "batch has no result store"}
	}
	for i, r := range b.Input {
		for _, c := range r.Columns() {
			if record.IsReserved(c) {
				return NewReservedColumnError(c, i+1)
			}
		}
	}
	return nil
}

// Summary counts row outcomes for one Execute call.
type Summary struct {
	RunID     string
	Rows      int
	Succeeded int
	Failed    int
	Empty     int
	Skipped   int
	Retried   int
}

func (s *Summary) add(a Attempt) {
	s.Rows++
	switch a.Outcome {
	case OutcomeSuccess:
		s.Succeeded++
	case OutcomeError:
		s.Failed++
	case OutcomeEmpty:
		s.Empty++
	case OutcomeSkipped:
		s.Skipped++
	}
	if a.Retry {
		s.Retried++
	}
}

// String renders the summary as a single progress line.
func (s Summary) String() string {
	return fmt.Sprintf("%d rows: %d succeeded, %d failed, %d empty, %d skipped",
		s.Rows, s.Succeeded, s.Failed, s.Empty, s.Skipped)
}

// Engine executes batches sequentially.
type Engine struct {
	invoker Invoker
	timeout time.Duration
	out     io.Writer
	journal Journal
	clock   *Clock
	runIDs  RunIDGenerator
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-command timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithProgress sets where per-row progress lines are printed.
func WithProgress(w io.Writer) Option {
	return func(e *Engine) {
		e.out = w
	}
}

// WithJournal reports every evaluated row to j.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithClock sets the logical clock used to stamp attempts.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithRunIDGenerator sets the generator for batches without a RunID.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// New creates an Engine that runs commands through inv.
func New(inv Invoker, opts ...Option) *Engine {
	e := &Engine{
		invoker: inv,
		timeout: DefaultTimeout,
		out:     io.Discard,
		clock:   NewClock(),
		runIDs:  UUIDv7Generator{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the per-command timeout.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// Execute runs every row of b in order and merges outcomes into b.Results.
//
// Per-row failures are absorbed into the result store. Execute returns an
// error only when the batch is invalid or ctx is cancelled; in the latter
// case the summary covers the rows evaluated so far. A row whose command is
// cut short by cancellation is recorded as an error and still journaled,
// and Execute reports the cancellation even when that row was the last.
func (e *Engine) Execute(ctx context.Context, b Batch) (Summary, error) {
	if err := b.Validate(); err != nil {
		return Summary{}, err
	}
	if b.RunID == "" {
		b.RunID = e.runIDs.Generate()
	}

	summary := Summary{RunID: b.RunID}
	slog.Info("batch starting",
		"run_id", b.RunID,
		"rows", len(b.Input),
		"command_column", b.CommandColumn,
		"stored_results", b.Results.Len(),
	)

	for i, row := range b.Input {
		if err := ctx.Err(); err != nil {
			slog.Info("batch stopping: context cancelled", "run_id", b.RunID, "row", i+1)
			return summary, err
		}
		a := e.processRow(ctx, b, i+1, row)
		summary.add(a)
		e.record(ctx, a)
	}
	if err := ctx.Err(); err != nil {
		slog.Info("batch stopping: context cancelled", "run_id", b.RunID, "row", len(b.Input))
		return summary, err
	}

	slog.Info("batch finished",
		"run_id", b.RunID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"empty", summary.Empty,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// processRow applies the per-row decision procedure.
func (e *Engine) processRow(ctx context.Context, b Batch, n int, row record.Record) Attempt {
	command := row.Value(b.CommandColumn)
	a := Attempt{
		RunID: b.RunID,
		Seq:   e.clock.Next(),
		Row:   n,
		Key:   record.IdentityKey(row),
	}

	if strings.TrimSpace(command) == "" {
		e.printf("Row %d: Empty command, skipping...\n", n)
		b.Results.Upsert(row, "", record.StateEmpty, "")
		a.Outcome = OutcomeEmpty
		return a
	}
	a.Command = command

	existing, found := b.Results.Find(row)
	if found && existing.State() == record.StateSuccess {
		e.printf("Row %d: Command already executed successfully, skipping...\n", n)
		a.Outcome = OutcomeSkipped
		return a
	}
	if found && existing.State() == record.StateError {
		e.printf("Row %d: Retrying command that previously failed...\n", n)
		a.Retry = true
	}

	e.printf("Row %d: Executing: %s\n", n, command)
	slog.Debug("invoking command", "row", n, "key", a.Key, "timeout", e.timeout)

	start := e.now()
	stdout, err := e.invoker.Invoke(ctx, command, e.timeout)
	a.Duration = e.now().Sub(start)

	if err != nil {
		a.Outcome = OutcomeError
		a.Output = invoke.FailureText(err)
		b.Results.Upsert(row, command, record.StateError, a.Output)
		e.printf("❌ Error: %s\n", a.Output)
		slog.Debug("command failed", "row", n, "error", err, "duration", a.Duration)
		return a
	}

	a.Outcome = OutcomeSuccess
	a.Output = stdout
	b.Results.Upsert(row, command, record.StateSuccess, stdout)
	e.printf("✅ Success\n")
	slog.Debug("command succeeded", "row", n, "duration", a.Duration)
	return a
}

func (e *Engine) record(ctx context.Context, a Attempt) {
	if e.journal == nil {
		return
	}
	// The row was evaluated; it is journaled even if the run is cancelled.
	if err := e.journal.RecordAttempt(context.WithoutCancel(ctx), a); err != nil {
		slog.Warn("journal write failed",
			"run_id", a.RunID,
			"row", a.Row,
			"seq", a.Seq,
			"error", err,
		)
	}
}

func (e *Engine) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}
