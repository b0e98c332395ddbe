// Package table holds the in-memory tabular form shared by raw extracts and
// published warehouse tables.
package table

import (
	"fmt"
	"strings"
)

// Kind is the logical type of a column. Cells are always stored as text; the
// kind only matters to consumers that need typed storage, such as the SQL loader.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	default:
		return "string"
	}
}

// Column describes one column of a table
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Table is a named, ordered set of rows. An empty cell in a nullable column
// means null.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]string
}

// New creates an empty table with the given schema
func New(name string, columns ...Column) *Table {
	return &Table{
		Name:    name,
		Columns: columns,
		Rows:    make([][]string, 0),
	}
}

// Strings builds a schema of string columns, the shape of every raw extract.
func Strings(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Kind: KindString}
	}
	return cols
}

// Append adds a row. The number of values must match the schema.
func (t *Table) Append(values ...string) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("table %s: row has %d values, expected %d", t.Name, len(values), len(t.Columns))
	}
	row := make([]string, len(values))
	copy(row, values)
	t.Rows = append(t.Rows, row)
	return nil
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Header returns the column names in order
func (t *Table) Header() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Values returns every cell of the named column
func (t *Table) Values(name string) ([]string, bool) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// CanonicalName converts a header into the published lower_snake_case form:
// "Order Date" -> "order_date", "Country/Region" -> "country_region".
func CanonicalName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}
