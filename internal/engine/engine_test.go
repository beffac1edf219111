package engine

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/csvrunner/internal/record"
	"github.com/roach88/csvrunner/internal/results"
	"github.com/roach88/csvrunner/internal/testutil"
)

type memJournal struct {
	attempts []Attempt
	ctxErrs  []error
	err      error
}

func (j *memJournal) RecordAttempt(ctx context.Context, a Attempt) error {
	j.attempts = append(j.attempts, a)
	j.ctxErrs = append(j.ctxErrs, ctx.Err())
	return j.err
}

func newTestEngine(inv Invoker, opts ...Option) (*Engine, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	opts = append([]Option{WithProgress(buf), WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-test"))}, opts...)
	return New(inv, opts...), buf
}

func batch(store *results.Store, rows ...record.Record) Batch {
	return Batch{Input: rows, Results: store, CommandColumn: "cmd"}
}

func TestExecute_EchoThenSkipOnRerun(t *testing.T) {
	inv := testutil.NewScriptedInvoker().Set("echo hi", testutil.Response{Stdout: "hi"})
	e, _ := newTestEngine(inv)
	store := results.New()
	row := record.FromPairs("task", "a", "cmd", "echo hi")

	sum, err := e.Execute(context.Background(), batch(store, row))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)

	first := store.Records()
	require.Len(t, first, 1)
	assert.Equal(t, record.StateSuccess, first[0].State())
	assert.Equal(t, "hi", first[0].Value(record.ColumnOutput))
	assert.Equal(t, "echo hi", first[0].Value(record.ColumnCommandExecuted))

	sum, err = e.Execute(context.Background(), batch(store, row))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, inv.Count("echo hi"), "succeeded row must not run again")
	assert.True(t, first[0].Equal(store.Records()[0]), "stored row unchanged")
}

func TestExecute_SuccessLoadedFromPriorRunIsNotReExecuted(t *testing.T) {
	inv := testutil.NewScriptedInvoker()
	e, out := newTestEngine(inv)
	prior := record.FromPairs("task", "a", "cmd", "echo hi",
		record.ColumnCommandExecuted, "echo hi",
		record.ColumnState, "success",
		record.ColumnOutput, "hi")
	store := results.Load([]record.Record{prior})

	sum, err := e.Execute(context.Background(), batch(store, record.FromPairs("task", "a", "cmd", "echo hi")))
	require.NoError(t, err)

	assert.Empty(t, inv.Calls())
	assert.Equal(t, 1, sum.Skipped)
	assert.True(t, prior.Equal(store.Records()[0]))
	assert.Contains(t, out.String(), "Row 1: Command already executed successfully, skipping...")
}

func TestExecute_RetryOfFailure(t *testing.T) {
	inv := testutil.NewScriptedInvoker().Set("exit 1", testutil.Response{ExitCode: 1})
	e, out := newTestEngine(inv)
	store := results.New()
	row := record.FromPairs("task", "b", "cmd", "exit 1")

	_, err := e.Execute(context.Background(), batch(store, row))
	require.NoError(t, err)
	got := store.Records()[0]
	assert.Equal(t, record.StateError, got.State())
	assert.NotEmpty(t, got.Value(record.ColumnOutput))

	// The environment changes so the same command now succeeds.
	inv.Set("exit 1", testutil.Response{Stdout: "ok"})
	sum, err := e.Execute(context.Background(), batch(store, row))
	require.NoError(t, err)

	assert.Equal(t, 2, inv.Count("exit 1"))
	assert.Equal(t, 1, sum.Retried)
	require.Equal(t, 1, store.Len(), "retry overwrites in place")
	got = store.Records()[0]
	assert.Equal(t, record.StateSuccess, got.State())
	assert.Equal(t, "ok", got.Value(record.ColumnOutput))
	assert.Contains(t, out.String(), "Row 1: Retrying command that previously failed...")
}

func TestExecute_BlankCommandNeverExecutes(t *testing.T) {
	for _, cmd := range []string{"", "  ", "\t\n"} {
		inv := testutil.NewScriptedInvoker()
		e, out := newTestEngine(inv)
		store := results.New()

		sum, err := e.Execute(context.Background(), batch(store, record.FromPairs("task", "c", "cmd", cmd)))
		require.NoError(t, err)

		assert.Empty(t, inv.Calls())
		assert.Equal(t, 1, sum.Empty)
		got := store.Records()[0]
		assert.Equal(t, record.StateEmpty, got.State())
		assert.Equal(t, "", got.Value(record.ColumnOutput))
		assert.Equal(t, "", got.Value(record.ColumnCommandExecuted))
		assert.Contains(t, out.String(), "Row 1: Empty command, skipping...")
	}
}

func TestExecute_MissingCommandColumnIsEmpty(t *testing.T) {
	inv := testutil.NewScriptedInvoker()
	e, _ := newTestEngine(inv)
	store := results.New()

	_, err := e.Execute(context.Background(), batch(store, record.FromPairs("task", "d")))
	require.NoError(t, err)

	assert.Empty(t, inv.Calls())
	assert.Equal(t, record.StateEmpty, store.Records()[0].State())
}

func TestExecute_BlankOverwritesPriorSuccess(t *testing.T) {
	inv := testutil.NewScriptedInvoker()
	e, _ := newTestEngine(inv)
	store := results.New()
	row := record.FromPairs("task", "e", "cmd", " ")
	store.Upsert(row, "echo old", record.StateSuccess, "old")

	_, err := e.Execute(context.Background(), batch(store, row))
	require.NoError(t, err)

	assert.Equal(t, record.StateEmpty, store.Records()[0].State())
}

func TestExecute_FailureDoesNotAbortBatch(t *testing.T) {
	inv := testutil.NewScriptedInvoker().
		Set("exit 1", testutil.Response{ExitCode: 1, Stderr: "nope\n"}).
		Set("sleep 99", testutil.Response{TimedOut: true}).
		Set("echo ok", testutil.Response{Stdout: "ok"})
	e, out := newTestEngine(inv)
	store := results.New()

	sum, err := e.Execute(context.Background(), batch(store,
		record.FromPairs("task", "1", "cmd", "exit 1"),
		record.FromPairs("task", "2", "cmd", "sleep 99"),
		record.FromPairs("task", "3", "cmd", "missing-program"),
		record.FromPairs("task", "4", "cmd", "echo ok"),
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"exit 1", "sleep 99", "missing-program", "echo ok"}, inv.Commands())
	assert.Equal(t, Summary{RunID: "run-test", Rows: 4, Succeeded: 1, Failed: 3}, sum)

	rows := store.Records()
	require.Len(t, rows, 4)
	assert.Equal(t, "nope", rows[0].Value(record.ColumnOutput), "stderr preferred, trailing whitespace trimmed")
	assert.Equal(t, "command timed out after 30s", rows[1].Value(record.ColumnOutput))
	assert.Equal(t, "sh: missing-program: not found", rows[2].Value(record.ColumnOutput))
	assert.Equal(t, record.StateSuccess, rows[3].State())
	assert.Contains(t, out.String(), "❌ Error: nope")
	assert.Contains(t, out.String(), "✅ Success")
}

func TestExecute_PlainInvokerErrorUsesMessage(t *testing.T) {
	e, _ := newTestEngine(invokerFunc(func(context.Context, string, time.Duration) (string, error) {
		return "", errors.New("spawn failed")
	}))
	store := results.New()

	_, err := e.Execute(context.Background(), batch(store, record.FromPairs("cmd", "x")))
	require.NoError(t, err)
	assert.Equal(t, "spawn failed", store.Records()[0].Value(record.ColumnOutput))
}

func TestExecute_UsesConfiguredTimeout(t *testing.T) {
	inv := testutil.NewScriptedInvoker().Set("x", testutil.Response{})
	e, _ := newTestEngine(inv, WithTimeout(5*time.Second))

	_, err := e.Execute(context.Background(), batch(results.New(), record.FromPairs("cmd", "x")))
	require.NoError(t, err)

	require.Len(t, inv.Calls(), 1)
	assert.Equal(t, 5*time.Second, inv.Calls()[0].Timeout)
	assert.Equal(t, 5*time.Second, e.Timeout())
}

func TestExecute_DefaultTimeout(t *testing.T) {
	e, _ := newTestEngine(testutil.NewScriptedInvoker(), WithTimeout(0))
	assert.Equal(t, DefaultTimeout, e.Timeout())
}

func TestExecute_ProcessesInInputOrder(t *testing.T) {
	inv := testutil.NewScriptedInvoker()
	for _, c := range []string{"c1", "c2", "c3"} {
		inv.Set(c, testutil.Response{Stdout: c})
	}
	e, _ := newTestEngine(inv)
	store := results.New()

	_, err := e.Execute(context.Background(), batch(store,
		record.FromPairs("cmd", "c3"),
		record.FromPairs("cmd", "c1"),
		record.FromPairs("cmd", "c2"),
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"c3", "c1", "c2"}, inv.Commands())
	rows := store.Records()
	assert.Equal(t, "c3", rows[0].Value(record.ColumnOutput))
	assert.Equal(t, "c2", rows[2].Value(record.ColumnOutput))
}

// Identity is the full non-reserved content, so two identical input rows
// collapse onto one result and the second outcome overwrites the first.
func TestExecute_DuplicateRowsCollide(t *testing.T) {
	calls := 0
	e, _ := newTestEngine(invokerFunc(func(context.Context, string, time.Duration) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("first attempt failed")
		}
		return "second", nil
	}))
	store := results.New()
	row := record.FromPairs("task", "dup", "cmd", "flaky")

	sum, err := e.Execute(context.Background(), batch(store, row, row.Clone()))
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "second duplicate retries because the first errored")
	assert.Equal(t, 1, sum.Retried)
	require.Equal(t, 1, store.Len())
	assert.Equal(t, "second", store.Records()[0].Value(record.ColumnOutput))
}

func TestExecute_DuplicateRowAfterSuccessIsSkipped(t *testing.T) {
	inv := testutil.NewScriptedInvoker().Set("echo", testutil.Response{Stdout: "x"})
	e, _ := newTestEngine(inv)
	store := results.New()
	row := record.FromPairs("cmd", "echo")

	sum, err := e.Execute(context.Background(), batch(store, row, row))
	require.NoError(t, err)

	assert.Equal(t, 1, inv.Count("echo"))
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, store.Len())
}

func TestExecute_NewRowsAppendAfterPriorResults(t *testing.T) {
	inv := testutil.NewScriptedInvoker().Set("new", testutil.Response{Stdout: "n"})
	e, _ := newTestEngine(inv)
	store := results.Load([]record.Record{
		record.FromPairs("cmd", "old", record.ColumnState, "success"),
	})

	_, err := e.Execute(context.Background(), batch(store, record.FromPairs("cmd", "new")))
	require.NoError(t, err)

	rows := store.Records()
	require.Len(t, rows, 2, "prior rows are never deleted")
	assert.Equal(t, "old", rows[0].Value("cmd"))
	assert.Equal(t, "new", rows[1].Value("cmd"))
}

func TestExecute_RejectsReservedInputColumns(t *testing.T) {
	inv := testutil.NewScriptedInvoker()
	e, _ := newTestEngine(inv)

	_, err := e.Execute(context.Background(), batch(results.New(),
		record.FromPairs("cmd", "echo"),
		record.FromPairs("cmd", "echo", "state", "mine"),
	))
	require.Error(t, err)
	assert.True(t, IsReservedColumnError(err))
	assert.Contains(t, err.Error(), "row 2")
	assert.Empty(t, inv.Calls(), "validation happens before any row runs")
}

func TestExecute_RejectsMissingColumnAndStore(t *testing.T) {
	e, _ := newTestEngine(testutil.NewScriptedInvoker())

	_, err := e.Execute(context.Background(), Batch{Results: results.New()})
	var be *BatchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, ErrCodeNoColumn, be.Code)

	_, err = e.Execute(context.Background(), Batch{CommandColumn: "cmd"})
	require.True(t, errors.As(err, &be))
	assert.Equal(t, ErrCodeNoResults, be.Code)
}

func TestExecute_CancelledContextStopsBetweenRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e, _ := newTestEngine(invokerFunc(func(context.Context, string, time.Duration) (string, error) {
		cancel()
		return "done", nil
	}))
	store := results.New()

	sum, err := e.Execute(ctx, batch(store,
		record.FromPairs("cmd", "one"),
		record.FromPairs("cmd", "two"),
	))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sum.Rows, "the started row completes")
	assert.Equal(t, 1, store.Len())
}

func TestExecute_CancelledDuringLastRow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	j := &memJournal{}
	e, _ := newTestEngine(invokerFunc(func(ctx context.Context, _ string, _ time.Duration) (string, error) {
		cancel()
		return "", ctx.Err()
	}), WithJournal(j))
	store := results.New()

	sum, err := e.Execute(ctx, batch(store, record.FromPairs("cmd", "only")))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sum.Failed)
	require.Equal(t, 1, store.Len())
	assert.Equal(t, record.StateError, store.Records()[0].State())

	require.Len(t, j.attempts, 1, "the interrupted row is journaled")
	assert.Equal(t, OutcomeError, j.attempts[0].Outcome)
	assert.NoError(t, j.ctxErrs[0], "journal writes outlive the cancelled run")
}

func TestExecute_JournalReceivesEveryRow(t *testing.T) {
	inv := testutil.NewScriptedInvoker().
		Set("ok", testutil.Response{Stdout: "fine"}).
		Set("bad", testutil.Response{ExitCode: 2, Stderr: "broken"})
	j := &memJournal{}
	e, _ := newTestEngine(inv, WithJournal(j), WithClock(NewClockAt(10)))
	store := results.Load([]record.Record{
		record.FromPairs("cmd", "done", record.ColumnState, "success"),
	})

	_, err := e.Execute(context.Background(), Batch{
		RunID:         "run-42",
		Input:         []record.Record{record.FromPairs("cmd", "ok"), record.FromPairs("cmd", ""), record.FromPairs("cmd", "done"), record.FromPairs("cmd", "bad")},
		Results:       store,
		CommandColumn: "cmd",
	})
	require.NoError(t, err)

	require.Len(t, j.attempts, 4)
	outcomes := []Outcome{OutcomeSuccess, OutcomeEmpty, OutcomeSkipped, OutcomeError}
	for i, a := range j.attempts {
		assert.Equal(t, "run-42", a.RunID)
		assert.Equal(t, int64(11+i), a.Seq)
		assert.Equal(t, i+1, a.Row)
		assert.Equal(t, outcomes[i], a.Outcome)
	}
	assert.Equal(t, "fine", j.attempts[0].Output)
	assert.Equal(t, "broken", j.attempts[3].Output)
	assert.Equal(t, record.IdentityKey(record.FromPairs("cmd", "ok")), j.attempts[0].Key)
}

func TestExecute_JournalErrorsAreIgnored(t *testing.T) {
	inv := testutil.NewScriptedInvoker().Set("ok", testutil.Response{Stdout: "fine"})
	j := &memJournal{err: errors.New("disk full")}
	e, _ := newTestEngine(inv, WithJournal(j))
	store := results.New()

	sum, err := e.Execute(context.Background(), batch(store, record.FromPairs("cmd", "ok")))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, record.StateSuccess, store.Records()[0].State())
}

func TestSummary_String(t *testing.T) {
	s := Summary{Rows: 5, Succeeded: 2, Failed: 1, Empty: 1, Skipped: 1}
	assert.Equal(t, "5 rows: 2 succeeded, 1 failed, 1 empty, 1 skipped", s.String())
}

type invokerFunc func(ctx context.Context, command string, timeout time.Duration) (string, error)

func (f invokerFunc) Invoke(ctx context.Context, command string, timeout time.Duration) (string, error) {
	return f(ctx, command, timeout)
}
