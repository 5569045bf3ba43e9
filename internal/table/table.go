// Package table provides the in-memory tabular model shared by ingestion and the audit tests
package table

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies what a cell holds
type Kind int

const (
	KindMissing Kind = iota
	KindString
	KindNumber
)

// MissingToken is how a missing cell renders as text
const MissingToken = "nan"

// Value is a single cell
type Value struct {
	Kind Kind
	Str  string
	Num  float64
}

// Missing returns an empty cell
func Missing() Value {
	return Value{Kind: KindMissing}
}

// String returns a text cell
func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Number returns a numeric cell. NaN is stored as missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Missing()
	}
	return Value{Kind: KindNumber, Num: f}
}

// IsMissing reports whether the cell is empty
func (v Value) IsMissing() bool {
	return v.Kind == KindMissing
}

// IsNumber reports whether the cell holds a number
func (v Value) IsNumber() bool {
	return v.Kind == KindNumber
}

// String renders the cell as text. Numbers use the shortest representation
// that round-trips, so 1001.0 renders as "1001".
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindString:
		return v.Str
	default:
		return MissingToken
	}
}

// Interface returns the cell as a plain Go value (nil, string or float64)
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindString:
		return v.Str
	default:
		return nil
	}
}

// Equal compares two cells. Two missing cells are equal.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == other.Num
	case KindString:
		return v.Str == other.Str
	default:
		return true
	}
}

// Column is a named, ordered list of cells
type Column struct {
	Name   string
	Values []Value
}

// IsNumeric reports whether every non-missing cell is a number and at least one is present
func (c *Column) IsNumeric() bool {
	numbers := 0
	for _, v := range c.Values {
		switch v.Kind {
		case KindString:
			return false
		case KindNumber:
			numbers++
		}
	}
	return numbers > 0
}

// Table is an ordered set of equally long columns. Row order is preserved.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New creates an empty table with the given column names
func New(names []string) *Table {
	t := &Table{index: make(map[string]int, len(names))}
	for _, name := range names {
		t.index[name] = len(t.columns)
		t.columns = append(t.columns, &Column{Name: name})
	}
	return t
}

// FromColumns builds a table from prepared columns. All columns must have the same length.
func FromColumns(cols []*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, col := range cols {
		if i == 0 {
			t.rows = len(col.Values)
		} else if len(col.Values) != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, len(col.Values), t.rows)
		}
		if _, dup := t.index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		t.index[col.Name] = i
		t.columns = append(t.columns, col)
	}
	return t, nil
}

// AppendRow adds a row. Short rows are padded with missing cells, extra cells are dropped.
func (t *Table) AppendRow(values []Value) {
	for i, col := range t.columns {
		v := Missing()
		if i < len(values) {
			v = values[i]
		}
		col.Values = append(col.Values, v)
	}
	t.rows++
}

// Len returns the number of rows
func (t *Table) Len() int {
	return t.rows
}

// Columns returns the columns in table order
func (t *Table) Columns() []*Column {
	return t.columns
}

// ColumnNames returns the column labels in table order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

// HasColumn reports whether a column with this exact label exists
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the column with the exact label, or nil
func (t *Table) Column(name string) *Column {
	if i, ok := t.index[name]; ok {
		return t.columns[i]
	}
	return nil
}

// Cell returns the value at row i of the named column
func (t *Table) Cell(row int, name string) Value {
	col := t.Column(name)
	if col == nil || row < 0 || row >= t.rows {
		return Missing()
	}
	return col.Values[row]
}

// Row returns a copy of row i in column order
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.columns))
	for j, col := range t.columns {
		row[j] = col.Values[i]
	}
	return row
}

// Select returns a new table holding the given rows in the given order
func (t *Table) Select(rows []int) *Table {
	out := New(t.ColumnNames())
	for j, col := range t.columns {
		values := make([]Value, len(rows))
		for k, r := range rows {
			values[k] = col.Values[r]
		}
		out.columns[j].Values = values
	}
	out.rows = len(rows)
	return out
}

// Head returns the first n rows
func (t *Table) Head(n int) *Table {
	if n > t.rows {
		n = t.rows
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.Select(rows)
}

// WithColumn returns a copy of the table with the column added, or replaced if the label exists
func (t *Table) WithColumn(name string, values []Value) (*Table, error) {
	if len(t.columns) > 0 && len(values) != t.rows {
		return nil, fmt.Errorf("column %q has %d rows, expected %d", name, len(values), t.rows)
	}
	cols := make([]*Column, 0, len(t.columns)+1)
	replaced := false
	for _, col := range t.columns {
		if col.Name == name {
			cols = append(cols, &Column{Name: name, Values: values})
			replaced = true
			continue
		}
		cols = append(cols, col)
	}
	if !replaced {
		cols = append(cols, &Column{Name: name, Values: values})
	}
	return FromColumns(cols)
}

// Records returns the rows as maps keyed by column label
func (t *Table) Records() []map[string]interface{} {
	records := make([]map[string]interface{}, t.rows)
	for i := 0; i < t.rows; i++ {
		rec := make(map[string]interface{}, len(t.columns))
		for _, col := range t.columns {
			rec[col.Name] = col.Values[i].Interface()
		}
		records[i] = rec
	}
	return records
}

// StringRows renders every row as text, for exporters
func (t *Table) StringRows() [][]string {
	rows := make([][]string, t.rows)
	for i := 0; i < t.rows; i++ {
		row := make([]string, len(t.columns))
		for j, col := range t.columns {
			v := col.Values[i]
			if v.IsMissing() {
				continue
			}
			row[j] = v.String()
		}
		rows[i] = row
	}
	return rows
}
