package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/roach88/csvrunner/internal/record"
)

// readCSV parses a CSV table whose first record is the header.
//
// A leading byte order mark is honored (UTF-8 or UTF-16) and removed;
// without one the bytes pass through untouched. Short rows read the
// missing columns as "". Values beyond the header are kept under the
// column names "_<index>", which join the header.
func readCSV(r io.Reader) (*Table, error) {
	src := transform.NewReader(r, unicode.BOMOverride(transform.Nop))
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	raw, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	t := &Table{}
	seen := make(map[string]bool, len(raw))
	for _, name := range raw {
		t.Header = addColumn(t.Header, seen, name)
	}

	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", len(t.Rows)+1, err)
		}
		var row record.Record
		for i, v := range fields {
			name := fmt.Sprintf("_%d", i)
			if i < len(raw) {
				name = raw[i]
			} else {
				t.Header = addColumn(t.Header, seen, name)
			}
			row.Set(name, v)
		}
		t.Rows = append(t.Rows, row)
	}
	t.normalize()
	return t, nil
}

func writeCSV(w io.Writer, header []string, rows []record.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	line := make([]string, len(header))
	for i, r := range rows {
		for j, c := range header {
			line[j] = r.Value(c)
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write CSV row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write CSV: %w", err)
	}
	return nil
}
