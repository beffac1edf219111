package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoSelection is returned when input ends before a column is chosen.
var ErrNoSelection = errors.New("no column selected")

// columnPrompt asks the user to pick the command column.
type columnPrompt struct {
	in  *bufio.Reader
	out io.Writer
}

func newColumnPrompt(in io.Reader, out io.Writer) *columnPrompt {
	return &columnPrompt{in: bufio.NewReader(in), out: out}
}

// Select lists columns and reads a choice: a 1-based number or an exact
// column name. Invalid answers are reported and the question repeated.
func (p *columnPrompt) Select(columns []string) (string, error) {
	fmt.Fprintln(p.out, "Select the column containing commands to execute:")
	for i, c := range columns {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, c)
	}

	for {
		fmt.Fprintf(p.out, "Column [1-%d or name]: ", len(columns))
		line, err := p.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read selection: %w", err)
		}

		if line != "" {
			answer := strings.TrimRight(line, "\r\n")
			if c, ok := matchColumn(columns, answer); ok {
				return c, nil
			}
			fmt.Fprintf(p.out, "Invalid choice %q.\n", answer)
		}
		if err != nil {
			fmt.Fprintln(p.out)
			return "", ErrNoSelection
		}
	}
}

// matchColumn resolves an answer to a column. Exact names win over
// numbers, so a column literally named "2" can still be picked by name.
func matchColumn(columns []string, answer string) (string, bool) {
	for _, c := range columns {
		if c == answer {
			return c, true
		}
	}
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || n < 1 || n > len(columns) {
		return "", false
	}
	return columns[n-1], true
}
