// Package cli implements the csvrunner command.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/csvrunner/internal/config"
	"github.com/roach88/csvrunner/internal/engine"
)

// UsageMessage is printed when the input table argument is missing.
const UsageMessage = "Usage: csvrunner <input-table>"

// RunOptions holds the hooks tests use to replace real collaborators.
// The command itself takes no flags.
type RunOptions struct {
	// Invoker replaces the shell invoker built from configuration.
	Invoker engine.Invoker

	// RunIDs replaces the UUIDv7 run id generator.
	RunIDs engine.RunIDGenerator
}

// NewRootCommand creates the csvrunner command.
func NewRootCommand() *cobra.Command {
	return NewRunCommand(&RunOptions{})
}

// NewRunCommand creates the csvrunner command with the given options.
func NewRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csvrunner <input-table>",
		Short: "Run a shell command for every row of a table, resumably",
		Long: `Run the shell command held in one column of a table for every row.

Outcomes are written to <name>_results<ext> next to the input. Running
again skips rows that already succeeded and retries rows that failed.
Tables ending in .yaml or .yml are read as YAML; anything else is CSV.

The command column is chosen interactively unless configured. Settings are
read from the CUE file named by ` + config.EnvVar + `, or from ` + config.FileName + `
next to the input table.

Example:
  csvrunner ./jobs.csv
  ` + config.EnvVar + `=./ci.cue csvrunner ./jobs.yaml`,
		Args:          exactlyOneInput,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, args[0], cmd)
		},
	}
	return cmd
}

// exactlyOneInput rejects anything but a single positional argument with
// the usage line.
func exactlyOneInput(_ *cobra.Command, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return NewExitError(ExitCommandError, UsageMessage)
	}
	return nil
}
