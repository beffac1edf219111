package table

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/csvrunner/internal/record"
)

// readYAML parses a YAML document holding a sequence of flat mappings.
//
// The header lists keys in order of first appearance across all rows;
// a row without some key reads it as "".
// Scalars are taken verbatim (1.0 stays "1.0"); null becomes "".
// Nested mappings or sequences are rejected.
func readYAML(r io.Reader) (*Table, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Table{}, nil
		}
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return &Table{}, nil
	}

	return FromYAMLNode(doc.Content[0])
}

// FromYAMLNode builds a table from an already parsed sequence of flat
// mappings. A null node is an empty table.
func FromYAMLNode(root *yaml.Node) (*Table, error) {
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return &Table{}, nil
	}
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: top level must be a sequence of mappings", root.Line)
	}

	t := &Table{}
	seen := make(map[string]bool)
	for i, item := range root.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("row %d (line %d): must be a mapping", i+1, item.Line)
		}
		var row record.Record
		for j := 0; j+1 < len(item.Content); j += 2 {
			k, v := item.Content[j], item.Content[j+1]
			if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("row %d (line %d): values must be scalars", i+1, k.Line)
			}
			row.Set(k.Value, scalarValue(v))
			t.Header = addColumn(t.Header, seen, k.Value)
		}
		t.Rows = append(t.Rows, row)
	}
	t.normalize()
	return t, nil
}

func scalarValue(n *yaml.Node) string {
	if n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

// writeYAML encodes rows as a sequence of mappings in header order.
// Every value is tagged as a string so "1" or "true" survive a re-read.
func writeYAML(w io.Writer, header []string, rows []record.Record) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, c := range header {
			m.Content = append(m.Content, strNode(c), strNode(r.Value(c)))
		}
		seq.Content = append(seq.Content, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		_ = enc.Close()
		return fmt.Errorf("write YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write YAML: %w", err)
	}
	return nil
}

func strNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
