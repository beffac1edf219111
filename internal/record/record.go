package record

import "strings"

// Reserved column names appended to every result row.
const (
	ColumnCommandExecuted = "command_executed"
	ColumnState           = "state"
	ColumnOutput          = "output"
)

// ReservedColumns lists the engine-managed columns in output order.
var ReservedColumns = []string{ColumnCommandExecuted, ColumnState, ColumnOutput}

// IsReserved reports whether name is one of the engine-managed columns.
func IsReserved(name string) bool {
	switch name {
	case ColumnCommandExecuted, ColumnState, ColumnOutput:
		return true
	}
	return false
}

// State is the outcome stored in the state column of a result row.
type State string

const (
	StateSuccess State = "success"
	StateError   State = "error"
	StateEmpty   State = "empty"
)

// Field is a single column/value pair.
type Field struct {
	Name  string
	Value string
}

// Record is an ordered mapping of column name to value.
//
// The zero value is an empty record ready to use. Set mutates the receiver;
// use Clone before handing a record to code that may keep it.
type Record struct {
	fields []Field
}

// New builds a record from fields in order. A repeated name keeps its first
// position and takes the last value.
func New(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// FromPairs builds a record from alternating name, value arguments.
// A trailing name without a value is set to "".
func FromPairs(kv ...string) Record {
	var r Record
	for i := 0; i < len(kv); i += 2 {
		v := ""
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		r.Set(kv[i], v)
	}
	return r
}

// Len returns the number of columns.
func (r Record) Len() int {
	return len(r.fields)
}

// Get returns the value of a column and whether it is present.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the value of a column, or "" when absent.
func (r Record) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

// Set assigns a column. Existing columns keep their position.
func (r *Record) Set(name, value string) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = value
			return
		}
	}
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

// Columns returns column names in order.
func (r Record) Columns() []string {
	cols := make([]string, len(r.fields))
	for i, f := range r.fields {
		cols[i] = f.Name
	}
	return cols
}

// Fields returns a copy of the column/value pairs in order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Clone returns a record that shares no storage with r.
func (r Record) Clone() Record {
	return Record{fields: r.Fields()}
}

// WithoutReserved returns a copy of r minus command_executed, state and output.
func (r Record) WithoutReserved() Record {
	out := Record{fields: make([]Field, 0, len(r.fields))}
	for _, f := range r.fields {
		if !IsReserved(f.Name) {
			out.fields = append(out.fields, f)
		}
	}
	return out
}

// State returns the value of the state column.
func (r Record) State() State {
	return State(r.Value(ColumnState))
}

// Equal reports whether both records hold the same columns, values and order.
func (r Record) Equal(other Record) bool {
	if len(r.fields) != len(other.fields) {
		return false
	}
	for i := range r.fields {
		if r.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

// String renders the record as name=value pairs for logs.
func (r Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	b.WriteByte('}')
	return b.String()
}
