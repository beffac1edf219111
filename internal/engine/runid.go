package engine

import "github.com/google/uuid"

// RunIDGenerator produces identifiers for batch runs.
// UUIDv7Generator is the production implementation; tests use
// testutil.FixedRunIDGenerator.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids, so ledger rows
// sort by start time when ordered by id.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 in hyphenated form.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
