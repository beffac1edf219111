package harness

import (
	"github.com/roach88/csvrunner/internal/engine"
	"github.com/roach88/csvrunner/internal/record"
)

// TraceEvent is one ledger attempt, tagged with the run that produced it.
type TraceEvent struct {
	Run     int            `json:"run"` // 1-based
	Seq     int64          `json:"seq"`
	Row     int            `json:"row"`
	Command string         `json:"command,omitempty"`
	Outcome engine.Outcome `json:"outcome"`
	Output  string         `json:"output,omitempty"`
	Retry   bool           `json:"retry,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation of every run held.
	Pass bool `json:"pass"`

	// Trace lists ledger attempts across all runs in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Summaries holds the engine summary of each run.
	Summaries []engine.Summary `json:"summaries"`

	// Results is the results table after the last run, as read back from disk
	// format.
	Results []record.Record `json:"-"`

	// Transcript is the progress output of every run, each under a
	// "== run N ==" heading.
	Transcript string `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
