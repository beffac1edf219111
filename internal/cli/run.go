package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/csvrunner/internal/config"
	"github.com/roach88/csvrunner/internal/engine"
	"github.com/roach88/csvrunner/internal/invoke"
	"github.com/roach88/csvrunner/internal/results"
	"github.com/roach88/csvrunner/internal/store"
	"github.com/roach88/csvrunner/internal/table"
)

func runBatch(opts *RunOptions, inputPath string, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	info, err := os.Stat(inputPath)
	if err != nil || info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("File not found: %s", inputPath))
	}

	cfg, err := config.ForInput(inputPath)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}

	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
	if cfg.Source != "" {
		slog.Debug("configuration loaded", "path", cfg.Source)
	}

	resultsPath := table.ResultsPath(inputPath)
	rs, err := loadResults(resultsPath)
	if err != nil {
		return WrapExitError(ExitFailure, "could not read results table", err)
	}

	input, err := table.ReadFile(inputPath)
	if err != nil {
		return WrapExitError(ExitFailure, "input table is empty or could not be parsed", err)
	}
	if input.Empty() {
		return NewExitError(ExitFailure, "input table is empty or could not be parsed")
	}
	if cols := table.ReservedCollisions(input.Header); len(cols) > 0 {
		return WrapExitError(ExitFailure, "input table cannot be processed", engine.NewReservedColumnError(cols[0], 0))
	}

	column, err := selectColumn(cfg, input.Header, cmd.InOrStdin(), out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nSelected column: %s\n", column)

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	runID := runIDs.Generate()

	var inv engine.Invoker = opts.Invoker
	if inv == nil {
		inv = invoke.NewShell(cfg.Shell, cfg.ShellArgs...)
	}
	engOpts := []engine.Option{
		engine.WithTimeout(cfg.Timeout()),
		engine.WithProgress(out),
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	var ledger *store.Store
	if path := cfg.LedgerPath(filepath.Dir(inputPath)); path != "" {
		ledger, err = openLedger(ctx, path, store.Run{
			ID:            runID,
			InputPath:     inputPath,
			ResultsPath:   resultsPath,
			CommandColumn: column,
			StartedAt:     time.Now(),
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open ledger", err)
		}
		defer func() {
			if closeErr := ledger.Close(); closeErr != nil {
				slog.Error("error closing ledger", "error", closeErr)
			}
		}()
		engOpts = append(engOpts, engine.WithJournal(ledger))
	}

	fmt.Fprint(out, "\nExecuting commands...\n\n")
	eng := engine.New(inv, engOpts...)
	summary, execErr := eng.Execute(ctx, engine.Batch{
		RunID:         runID,
		Input:         input.Rows,
		Results:       rs,
		CommandColumn: column,
	})

	var batchErr *engine.BatchError
	if errors.As(execErr, &batchErr) {
		return WrapExitError(ExitFailure, "input table cannot be processed", execErr)
	}
	fmt.Fprintf(out, "\n%s\n", summary)

	if ledger != nil {
		// Use a fresh context: the run may have been interrupted.
		if err := ledger.FinishRun(context.Background(), summary, time.Now()); err != nil {
			slog.Warn("ledger finish failed", "run_id", runID, "error", err)
		}
	}

	if err := saveResults(out, resultsPath, input.Header, rs); err != nil {
		return WrapExitError(ExitFailure, "could not write results table", err)
	}

	if execErr != nil {
		return WrapExitError(ExitFailure, "interrupted; progress so far was saved", execErr)
	}
	fmt.Fprintf(out, "\n✅ Execution complete! Results saved to: %s\n", resultsPath)
	return nil
}

// loadResults seeds a result store from an earlier run's table, if any.
func loadResults(path string) (*results.Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return results.New(), nil
	}
	prior, err := table.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rs := results.Load(prior.Rows)
	slog.Info("loaded previous results", "path", path, "rows", rs.Len())
	return rs, nil
}

// selectColumn takes the configured command column or asks for one.
func selectColumn(cfg config.Config, header []string, in io.Reader, out io.Writer) (string, error) {
	if cfg.CommandColumn != "" {
		for _, c := range header {
			if c == cfg.CommandColumn {
				return c, nil
			}
		}
		return "", WrapExitError(ExitFailure, "invalid configuration", engine.NewUnknownColumnError(cfg.CommandColumn))
	}

	column, err := newColumnPrompt(in, out).Select(header)
	if err != nil {
		return "", WrapExitError(ExitFailure, "column selection failed", err)
	}
	return column, nil
}

func openLedger(ctx context.Context, path string, run store.Run) (*store.Store, error) {
	slog.Info("opening ledger", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if err := st.BeginRun(ctx, run); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// saveResults writes the result store, or says there is nothing to write.
func saveResults(out io.Writer, path string, inputHeader []string, rs *results.Store) error {
	if rs.Len() == 0 {
		fmt.Fprintln(out, "No results to save")
		return nil
	}
	return table.WriteFile(path, table.ResultHeader(inputHeader), rs.Records())
}

// signalContext derives a context cancelled on SIGINT or SIGTERM, so the
// running command is stopped and the progress so far is still saved.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping batch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
