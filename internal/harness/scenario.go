package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/csvrunner/internal/table"
	"github.com/roach88/csvrunner/internal/testutil"
)

// Scenario is a sequence of runs over the same results table.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// CommandColumn is the column holding the command text.
	CommandColumn string `yaml:"command_column"`

	// Prior is the results table present before the first run.
	Prior *Rows `yaml:"prior,omitempty"`

	// Runs execute in order, each starting from the previous run's results.
	Runs []RunStep `yaml:"runs"`

	// RunID prefixes the ledger run ids: <run_id>-1, <run_id>-2, ...
	// Defaults to "test-run".
	RunID string `yaml:"run_id,omitempty"`
}

// RunStep is one invocation of the tool.
type RunStep struct {
	// Input is the input table for this run.
	Input *Rows `yaml:"input"`

	// Script maps command text to its scripted response.
	Script map[string]ScriptResponse `yaml:"script,omitempty"`

	// Expect holds the checks applied after the run. Nil checks nothing.
	Expect *Expect `yaml:"expect,omitempty"`
}

// ScriptResponse is what a scripted command returns. Stdout is returned
// as captured output without further trimming.
type ScriptResponse struct {
	Stdout   string `yaml:"stdout,omitempty"`
	Stderr   string `yaml:"stderr,omitempty"`
	ExitCode int    `yaml:"exit_code,omitempty"`
	TimedOut bool   `yaml:"timed_out,omitempty"`
}

func (r ScriptResponse) response() testutil.Response {
	return testutil.Response{
		Stdout:   r.Stdout,
		Stderr:   r.Stderr,
		ExitCode: r.ExitCode,
		TimedOut: r.TimedOut,
	}
}

// Expect lists the checks for one run. Omitted fields are not checked.
type Expect struct {
	// Error is the expected batch error code (e.g. RESERVED_COLUMN).
	// When set, the run must fail validation and nothing else is checked
	// except Invocations and Results.
	Error string `yaml:"error,omitempty"`

	// Invocations is the exact list of commands invoked, in order.
	// An explicit empty list asserts that nothing ran.
	Invocations []string `yaml:"invocations,omitempty"`

	// Summary is compared field by field with the engine summary.
	Summary *SummaryExpect `yaml:"summary,omitempty"`

	// Progress lists lines that must appear in the run's progress output.
	Progress []string `yaml:"progress,omitempty"`

	// Results is the exact results table after the run, row by row and
	// column by column.
	Results *Rows `yaml:"results,omitempty"`
}

// SummaryExpect mirrors engine.Summary without the run id.
type SummaryExpect struct {
	Rows      int `yaml:"rows"`
	Succeeded int `yaml:"succeeded"`
	Failed    int `yaml:"failed"`
	Empty     int `yaml:"empty"`
	Skipped   int `yaml:"skipped"`
	Retried   int `yaml:"retried"`
}

// Rows is an inline table: a YAML sequence of flat mappings, parsed the
// same way as a YAML input table.
type Rows struct {
	table.Table
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Rows) UnmarshalYAML(node *yaml.Node) error {
	t, err := table.FromYAMLNode(node)
	if err != nil {
		return err
	}
	r.Table = *t
	return nil
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML from memory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.CommandColumn == "" {
		return fmt.Errorf("command_column is required")
	}

	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}

	for i, run := range s.Runs {
		if run.Input == nil {
			return fmt.Errorf("runs[%d]: input is required (use [] for an empty table)", i)
		}
		for cmd, r := range run.Script {
			if r.TimedOut && r.ExitCode != 0 {
				return fmt.Errorf("runs[%d].script[%q]: timed_out and exit_code are exclusive", i, cmd)
			}
		}
		if run.Expect != nil && run.Expect.Summary != nil && run.Expect.Error != "" {
			return fmt.Errorf("runs[%d].expect: summary and error are exclusive", i)
		}
	}

	return nil
}
