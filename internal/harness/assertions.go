package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/csvrunner/internal/engine"
	"github.com/roach88/csvrunner/internal/record"
)

// observation is what one run actually did.
type observation struct {
	invocations []string
	summary     engine.Summary
	err         *engine.BatchError
	progress    string
	results     []record.Record
}

// checkExpect compares an observation against the run's expectations and
// returns one message per mismatch.
func checkExpect(e *Expect, obs observation) []string {
	var errs []string

	switch {
	case e.Error != "" && obs.err == nil:
		errs = append(errs, fmt.Sprintf("expected batch error %s, run succeeded", e.Error))
	case e.Error != "" && string(obs.err.Code) != e.Error:
		errs = append(errs, fmt.Sprintf("expected batch error %s, got %s", e.Error, obs.err.Code))
	case e.Error == "" && obs.err != nil:
		errs = append(errs, fmt.Sprintf("unexpected batch error: %v", obs.err))
	}

	if e.Invocations != nil {
		errs = append(errs, checkInvocations(e.Invocations, obs.invocations)...)
	}

	if e.Summary != nil {
		errs = append(errs, checkSummary(*e.Summary, obs.summary)...)
	}

	for _, line := range e.Progress {
		if !containsLine(obs.progress, line) {
			errs = append(errs, fmt.Sprintf("progress output missing line %q", line))
		}
	}

	if e.Results != nil {
		errs = append(errs, checkResults(e.Results.Rows, obs.results)...)
	}

	return errs
}

func checkInvocations(want, got []string) []string {
	if len(want) != len(got) {
		return []string{fmt.Sprintf("expected %d invocations %q, got %d %q", len(want), want, len(got), got)}
	}
	var errs []string
	for i := range want {
		if want[i] != got[i] {
			errs = append(errs, fmt.Sprintf("invocation %d: expected %q, got %q", i+1, want[i], got[i]))
		}
	}
	return errs
}

func checkSummary(want SummaryExpect, got engine.Summary) []string {
	fields := []struct {
		name      string
		want, got int
	}{
		{"rows", want.Rows, got.Rows},
		{"succeeded", want.Succeeded, got.Succeeded},
		{"failed", want.Failed, got.Failed},
		{"empty", want.Empty, got.Empty},
		{"skipped", want.Skipped, got.Skipped},
		{"retried", want.Retried, got.Retried},
	}
	var errs []string
	for _, f := range fields {
		if f.want != f.got {
			errs = append(errs, fmt.Sprintf("summary %s: expected %d, got %d", f.name, f.want, f.got))
		}
	}
	return errs
}

func checkResults(want, got []record.Record) []string {
	if len(want) != len(got) {
		return []string{fmt.Sprintf("expected %d result rows, got %d", len(want), len(got))}
	}
	var errs []string
	for i := range want {
		if !want[i].Equal(got[i]) {
			errs = append(errs, fmt.Sprintf("result row %d: expected %s, got %s", i+1, want[i], got[i]))
		}
	}
	return errs
}

func containsLine(text, line string) bool {
	for _, l := range strings.Split(text, "\n") {
		if l == line {
			return true
		}
	}
	return false
}
