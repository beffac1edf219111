// Package table reads input tables and writes result tables.
//
// Two formats are supported, chosen by file extension: YAML (.yaml, .yml)
// holding a sequence of flat mappings, and CSV with a header row for
// everything else. Values are kept as raw strings in both formats.
package table

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/csvrunner/internal/record"
)

// Format is a table encoding.
type Format int

const (
	FormatCSV Format = iota
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	default:
		return "csv"
	}
}

// FormatFor picks the format for a path by its extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatCSV
	}
}

// Table is a parsed table: its column names in order and its rows.
//
// Parsed rows always carry every header column in header order; a value
// the source omitted reads as "". A row therefore has the same identity
// before and after a write and re-read.
type Table struct {
	Header []string
	Rows   []record.Record
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// ReadFile parses the table at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	t, err := Read(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	return t, nil
}

// Read parses a table in the given format.
func Read(r io.Reader, f Format) (*Table, error) {
	if f == FormatYAML {
		return readYAML(r)
	}
	return readCSV(r)
}

// WriteFile writes rows under header to path, replacing any existing file.
// The content is written to a temporary file in the same directory first
// and renamed into place, so a failed write never leaves a truncated table.
func WriteFile(path string, header []string, rows []record.Record) error {
	var buf bytes.Buffer
	if err := Write(&buf, FormatFor(path), header, rows); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

// Write encodes rows under header. Columns a row lacks are written empty;
// columns outside header are dropped.
func Write(w io.Writer, f Format, header []string, rows []record.Record) error {
	if f == FormatYAML {
		return writeYAML(w, header, rows)
	}
	return writeCSV(w, header, rows)
}

// ResultsPath derives the results file for an input table:
// dir/name.ext becomes dir/name_results.ext.
func ResultsPath(input string) string {
	dir := filepath.Dir(input)
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, name+"_results"+ext)
}

// ResultHeader is the output schema: the input columns in order followed by
// command_executed, state and output.
func ResultHeader(input []string) []string {
	out := make([]string, 0, len(input)+len(record.ReservedColumns))
	for _, c := range input {
		if !record.IsReserved(c) {
			out = append(out, c)
		}
	}
	return append(out, record.ReservedColumns...)
}

// ReservedCollisions returns the header columns that reuse a reserved name.
func ReservedCollisions(header []string) []string {
	var out []string
	for _, c := range header {
		if record.IsReserved(c) {
			out = append(out, c)
		}
	}
	return out
}

// normalize rebuilds every row with exactly the header columns, in order.
func (t *Table) normalize() {
	for i, r := range t.Rows {
		if len(r.Columns()) == len(t.Header) && sameOrder(r.Columns(), t.Header) {
			continue
		}
		var row record.Record
		for _, c := range t.Header {
			row.Set(c, r.Value(c))
		}
		t.Rows[i] = row
	}
}

func sameOrder(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// addColumn appends name to header unless already present.
func addColumn(header []string, seen map[string]bool, name string) []string {
	if seen[name] {
		return header
	}
	seen[name] = true
	return append(header, name)
}
