package store

import (
	"errors"
	"time"

	"github.com/roach88/csvrunner/internal/engine"
)

// ErrRunNotFound is returned by ReadRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one batch run as recorded in the ledger.
type Run struct {
	ID            string
	InputPath     string
	ResultsPath   string
	CommandColumn string
	StartedAt     time.Time
	FinishedAt    time.Time // zero while the run is in progress or was interrupted
	Summary       engine.Summary
}

// Finished reports whether FinishRun was recorded for the run.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// timeFormat is used for started_at and finished_at. Times are stored in UTC.
const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}
