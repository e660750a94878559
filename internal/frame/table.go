// Package frame holds the in-memory table every pipeline step consumes and
// produces: an ordered list of named, typed columns of equal length.
//
// Missing cells are nil. Non-missing cells are string for Text and Category
// columns, float64 for Number columns and time.Time for Date columns.
package frame

import (
	"fmt"
	"time"
)

// Kind is the value type held by a column.
type Kind int

const (
	Text Kind = iota
	Number
	Date
	Category
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Number:
		return "number"
	case Date:
		return "date"
	case Category:
		return "category"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "text":
		return Text, nil
	case "number":
		return Number, nil
	case "date":
		return Date, nil
	case "category":
		return Category, nil
	default:
		return Text, InvalidArgument("unknown column kind %q", s)
	}
}

type Column struct {
	Name string
	Kind Kind
	// Levels is the closed label set of a Category column, in level order.
	Levels []string
	Values []any
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	return len(c.Values)
}

// Clone deep-copies the column.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Levels != nil {
		out.Levels = append([]string(nil), c.Levels...)
	}
	out.Values = append([]any(nil), c.Values...)
	return out
}

// Missing counts nil cells.
func (c *Column) Missing() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

type Table struct {
	Columns []*Column
}

// New builds a table and checks that every column has the same length.
func New(cols ...*Column) (*Table, error) {
	t := &Table{Columns: cols}
	if err := t.check(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustNew is New for fixtures and literals known to be rectangular.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) check() error {
	if len(t.Columns) == 0 {
		return nil
	}
	n := t.Columns[0].Len()
	for _, c := range t.Columns[1:] {
		if c.Len() != n {
			return InvalidArgument("column %q has %d rows, expected %d", c.Name, c.Len(), n)
		}
	}
	return nil
}

// NumRows returns the row count; an empty table has zero rows.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

func (t *Table) NumCols() int {
	return len(t.Columns)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the first column named name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Col returns the named column or an UnknownColumn error.
func (t *Table) Col(name string) (*Column, error) {
	i := t.Index(name)
	if i < 0 {
		return nil, UnknownColumn(name)
	}
	return t.Columns[i], nil
}

// Require checks that all names exist.
func (t *Table) Require(names ...string) error {
	for _, n := range names {
		if t.Index(n) < 0 {
			return UnknownColumn(n)
		}
	}
	return nil
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.Clone()
	}
	return out
}

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.Values[i]
	}
	return out
}

// Value returns the cell at row i of the named column.
func (t *Table) Value(name string, i int) (any, error) {
	c, err := t.Col(name)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= c.Len() {
		return nil, InvalidArgument("row %d out of range [0,%d)", i, c.Len())
	}
	return c.Values[i], nil
}

// Select returns a new table with the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := &Table{Columns: make([]*Column, 0, len(names))}
	for _, n := range names {
		c, err := t.Col(n)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, c.Clone())
	}
	return out, nil
}

// Drop returns a new table without the named columns.
func (t *Table) Drop(names ...string) (*Table, error) {
	if err := t.Require(names...); err != nil {
		return nil, err
	}
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	out := &Table{}
	for _, c := range t.Columns {
		if _, ok := skip[c.Name]; ok {
			continue
		}
		out.Columns = append(out.Columns, c.Clone())
	}
	return out, nil
}

// Rename returns a new table with columns renamed per mapping (old -> new).
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	for old := range mapping {
		if t.Index(old) < 0 {
			return nil, UnknownColumn(old)
		}
	}
	out := t.Clone()
	for _, c := range out.Columns {
		if n, ok := mapping[c.Name]; ok {
			c.Name = n
		}
	}
	return out, nil
}

// Insert returns a new table with col placed at position pos (0..NumCols).
func (t *Table) Insert(pos int, col *Column) (*Table, error) {
	if pos < 0 || pos > len(t.Columns) {
		return nil, InvalidArgument("insert position %d out of range [0,%d]", pos, len(t.Columns))
	}
	if len(t.Columns) > 0 && col.Len() != t.NumRows() {
		return nil, InvalidArgument("column %q has %d rows, expected %d", col.Name, col.Len(), t.NumRows())
	}
	out := &Table{Columns: make([]*Column, 0, len(t.Columns)+1)}
	for i, c := range t.Columns {
		if i == pos {
			out.Columns = append(out.Columns, col)
		}
		out.Columns = append(out.Columns, c.Clone())
	}
	if pos == len(t.Columns) {
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}

// Equal reports whether two tables have the same names, kinds and cells.
func Equal(a, b *Table) bool {
	if a.NumCols() != b.NumCols() || a.NumRows() != b.NumRows() {
		return false
	}
	for i := range a.Columns {
		ca, cb := a.Columns[i], b.Columns[i]
		if ca.Name != cb.Name || ca.Kind != cb.Kind {
			return false
		}
		for r := range ca.Values {
			if !ValuesEqual(ca.Values[r], cb.Values[r]) {
				return false
			}
		}
	}
	return true
}

// ValuesEqual compares two cells; dates compare by instant.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}
