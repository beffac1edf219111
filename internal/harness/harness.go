package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/csvrunner/internal/engine"
	"github.com/roach88/csvrunner/internal/record"
	"github.com/roach88/csvrunner/internal/results"
	"github.com/roach88/csvrunner/internal/store"
	"github.com/roach88/csvrunner/internal/table"
	"github.com/roach88/csvrunner/internal/testutil"
)

// epoch stamps ledger runs; wall time never reaches the trace.
var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// harness carries the state shared by the runs of one scenario.
type harness struct {
	scenario *Scenario
	ledger   *store.Store

	// resultsFile is the results table as it would sit on disk between
	// runs. Nil means no file exists.
	resultsFile []byte
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory ledger. Expectation failures
// are reported in the result; the returned error is reserved for problems
// running the scenario at all.
func Run(scenario *Scenario) (*Result, error) {
	ledger, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory ledger: %w", err)
	}
	defer ledger.Close()

	h := &harness{scenario: scenario, ledger: ledger}
	if scenario.Prior != nil && !scenario.Prior.Empty() {
		if h.resultsFile, err = encodeCSV(scenario.Prior.Header, scenario.Prior.Rows); err != nil {
			return nil, fmt.Errorf("failed to write prior results: %w", err)
		}
	}

	ctx := context.Background()
	result := NewResult()
	var transcript bytes.Buffer

	for i, step := range scenario.Runs {
		fmt.Fprintf(&transcript, "== run %d ==\n", i+1)
		if err := h.executeRun(ctx, i+1, step, result, &transcript); err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
	}

	result.Transcript = transcript.String()
	rows, err := decodeCSV(h.resultsFile)
	if err != nil {
		return nil, err
	}
	result.Results = rows
	return result, nil
}

func (h *harness) executeRun(ctx context.Context, n int, step RunStep, result *Result, transcript *bytes.Buffer) error {
	inv := testutil.NewScriptedInvoker()
	for cmd, r := range step.Script {
		inv.Set(cmd, r.response())
	}

	prior, err := decodeCSV(h.resultsFile)
	if err != nil {
		return err
	}
	rs := results.Load(prior)

	runID := fmt.Sprintf("%s-%d", h.runIDPrefix(), n)
	if err := h.ledger.BeginRun(ctx, store.Run{
		ID:            runID,
		InputPath:     h.scenario.Name + ".csv",
		ResultsPath:   h.scenario.Name + "_results.csv",
		CommandColumn: h.scenario.CommandColumn,
		StartedAt:     epoch,
	}); err != nil {
		return err
	}

	var progress bytes.Buffer
	eng := engine.New(inv,
		engine.WithProgress(&progress),
		engine.WithJournal(h.ledger),
	)
	summary, execErr := eng.Execute(ctx, engine.Batch{
		RunID:         runID,
		Input:         step.Input.Rows,
		Results:       rs,
		CommandColumn: h.scenario.CommandColumn,
	})
	transcript.Write(progress.Bytes())

	var batchErr *engine.BatchError
	switch {
	case execErr == nil:
		if err := h.ledger.FinishRun(ctx, summary, epoch); err != nil {
			return err
		}
		result.Summaries = append(result.Summaries, summary)
		if rs.Len() > 0 {
			header := table.ResultHeader(step.Input.Header)
			if h.resultsFile, err = encodeCSV(header, rs.Records()); err != nil {
				return err
			}
		}
	case errors.As(execErr, &batchErr):
		fmt.Fprintf(transcript, "rejected: %s\n", batchErr.Code)
		result.Summaries = append(result.Summaries, engine.Summary{RunID: runID})
	default:
		return execErr
	}

	attempts, err := h.ledger.ReadAttempts(ctx, runID)
	if err != nil {
		return err
	}
	for _, a := range attempts {
		result.Trace = append(result.Trace, TraceEvent{
			Run:     n,
			Seq:     a.Seq,
			Row:     a.Row,
			Command: a.Command,
			Outcome: a.Outcome,
			Output:  a.Output,
			Retry:   a.Retry,
		})
	}

	if step.Expect != nil {
		rows, err := decodeCSV(h.resultsFile)
		if err != nil {
			return err
		}
		obs := observation{
			invocations: inv.Commands(),
			summary:     summary,
			err:         batchErr,
			progress:    progress.String(),
			results:     rows,
		}
		for _, msg := range checkExpect(step.Expect, obs) {
			result.AddError(fmt.Sprintf("run %d: %s", n, msg))
		}
	}
	return nil
}

func (h *harness) runIDPrefix() string {
	if h.scenario.RunID != "" {
		return h.scenario.RunID
	}
	return "test-run"
}

func encodeCSV(header []string, rows []record.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := table.Write(&buf, table.FormatCSV, header, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCSV(data []byte) ([]record.Record, error) {
	if data == nil {
		return nil, nil
	}
	t, err := table.Read(bytes.NewReader(data), table.FormatCSV)
	if err != nil {
		return nil, fmt.Errorf("failed to read results table: %w", err)
	}
	return t.Rows, nil
}
