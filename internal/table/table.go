// Package table holds the loosely-typed, in-memory representation of a source
// table as it comes out of extraction, before any reshaping happens.
//
// A Table is a header plus rows of cells. A nil cell is a null. Cells read from
// delimited files are strings; other producers may hand in numbers, bools or
// time.Time values and downstream coercion accepts those as well.
//
// Tables are treated as read-only once built. Helpers that change the shape
// (RenameColumns, Select) return new values and leave the receiver alone, so a
// single extracted table can feed several builders concurrently.
package table

import (
	"fmt"
	"slices"
)

// Record is a single row keyed by column name.
type Record map[string]any

// Table is an ordered set of named columns and the rows that fill them.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any

	// headers keeps the column names as read, once RenameColumns has run.
	headers []string
}

// New builds a Table. Rows shorter than the header are padded with nulls
// when read through Select; longer rows are truncated.
func New(name string, columns []string, rows [][]any) *Table {
	return &Table{Name: name, Columns: columns, Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of col in the header or -1.
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Has reports whether the header contains col.
func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// RenameColumns returns a copy of t whose header is mapped through fn. Row
// storage is shared with t.
func (t *Table) RenameColumns(fn func(string) string) *Table {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = fn(c)
	}
	headers := t.headers
	if headers == nil {
		headers = slices.Clone(t.Columns)
	}
	return &Table{Name: t.Name, Columns: cols, Rows: t.Rows, headers: headers}
}

// header returns the name column i had when the table was read.
func (t *Table) header(i int) string {
	if i < len(t.headers) {
		return t.headers[i]
	}
	return t.Columns[i]
}

// Field maps a source column onto an output field name.
type Field struct {
	From string
	To   string
}

// Rename is shorthand for Field{From: from, To: to}.
func Rename(from, to string) Field { return Field{From: from, To: to} }

// Keep is shorthand for a field that keeps its column name.
func Keep(name string) Field { return Field{From: name, To: name} }

// Select projects every row onto fields and returns one Record per row, in
// input order. A field whose source column is absent fails the whole call with
// a *MissingColumnError; one that matches several columns fails with a
// *DuplicateColumnError.
func (t *Table) Select(fields ...Field) ([]Record, error) {
	idx := make([]int, len(fields))
	for i, f := range fields {
		j := t.Index(f.From)
		if j < 0 {
			return nil, &MissingColumnError{Table: t.Name, Column: f.From}
		}
		for k := j + 1; k < len(t.Columns); k++ {
			if t.Columns[k] == f.From {
				return nil, &DuplicateColumnError{
					Table:   t.Name,
					Column:  f.From,
					Headers: []string{t.header(j), t.header(k)},
				}
			}
		}
		idx[i] = j
	}

	out := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(Record, len(fields))
		for i, f := range fields {
			var v any
			if idx[i] < len(row) {
				v = row[idx[i]]
			}
			rec[f.To] = v
		}
		out = append(out, rec)
	}
	return out, nil
}

// String implements fmt.Stringer for log lines.
func (t *Table) String() string {
	if t == nil {
		return "<nil table>"
	}
	return fmt.Sprintf("%s(%d cols, %d rows)", t.Name, len(t.Columns), len(t.Rows))
}
