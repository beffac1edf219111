package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/csvrunner/internal/engine"
	"github.com/roach88/csvrunner/internal/record"
)

// createTestStore opens a fresh ledger in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestRun creates a run with minimal required fields.
func createTestRun(id string) Run {
	return Run{
		ID:            id,
		InputPath:     "/data/jobs.csv",
		ResultsPath:   "/data/jobs_results.csv",
		CommandColumn: "cmd",
		StartedAt:     testStart,
	}
}

// createTestAttempt creates an attempt for row n of runID.
func createTestAttempt(runID string, seq int64, n int, outcome engine.Outcome) engine.Attempt {
	row := record.FromPairs("task", string(rune('a'+n-1)), "cmd", "echo hi")
	a := engine.Attempt{
		RunID:   runID,
		Seq:     seq,
		Row:     n,
		Key:     record.IdentityKey(row),
		Outcome: outcome,
	}
	if outcome != engine.OutcomeEmpty {
		a.Command = "echo hi"
	}
	if outcome == engine.OutcomeSuccess {
		a.Output = "hi"
		a.Duration = 15 * time.Millisecond
	}
	return a
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
