// Package results holds the in-memory result set of a batch run.
//
// The Store is an ordered list of result rows with an index from identity
// key to position. Upsert is the only write path and guarantees at most one
// row per identity key. The store is not safe for concurrent use; the
// engine is its single reader and writer.
package results

import "github.com/roach88/csvrunner/internal/record"

// Store is the de-duplicated, ordered collection of result rows.
type Store struct {
	rows  []record.Record
	index map[record.Key]int
}

// New creates an empty store.
func New() *Store {
	return &Store{index: make(map[record.Key]int)}
}

// Load creates a store seeded with rows from a prior run.
//
// Rows pass through the same merge as Upsert, so a results file edited to
// hold two rows with one identity collapses to a single row: the first
// position is kept and the later content wins.
func Load(rows []record.Record) *Store {
	s := New()
	for _, r := range rows {
		s.put(record.IdentityKey(r), r.Clone())
	}
	return s
}

// Find returns the stored result matching the identity of r.
func (s *Store) Find(r record.Record) (record.Record, bool) {
	i, ok := s.index[record.IdentityKey(r)]
	if !ok {
		return record.Record{}, false
	}
	return s.rows[i].Clone(), true
}

// Upsert merges an outcome for input into the store.
//
// The stored row is input's non-reserved columns followed by
// command_executed, state and output. An existing row with the same
// identity is replaced in place; otherwise the row is appended.
// It reports whether an existing row was replaced.
func (s *Store) Upsert(input record.Record, commandExecuted string, state record.State, output string) bool {
	row := input.WithoutReserved()
	row.Set(record.ColumnCommandExecuted, commandExecuted)
	row.Set(record.ColumnState, string(state))
	row.Set(record.ColumnOutput, output)
	return s.put(record.IdentityKey(row), row)
}

func (s *Store) put(key record.Key, row record.Record) bool {
	if i, ok := s.index[key]; ok {
		s.rows[i] = row
		return true
	}
	s.index[key] = len(s.rows)
	s.rows = append(s.rows, row)
	return false
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	return len(s.rows)
}

// Records returns copies of all rows in store order.
func (s *Store) Records() []record.Record {
	out := make([]record.Record, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Clone()
	}
	return out
}
