// Package model defines the tables, labels, segments and run records shared by the churn pipeline.
package model

import "strings"

// Table is a parsed tabular upload. Row identity is position.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of col in the header, or -1.
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// HasColumn reports whether col is present in the header.
func (t *Table) HasColumn(col string) bool {
	return t.Index(col) >= 0
}

// Value returns the cell at (row, col). Short rows yield an empty cell.
func (t *Table) Value(row int, col string) (string, bool) {
	idx := t.Index(col)
	if idx < 0 || row < 0 || row >= len(t.Rows) {
		return "", false
	}
	r := t.Rows[row]
	if idx >= len(r) {
		return "", true
	}
	return strings.TrimSpace(r[idx]), true
}

// Head returns a table with at most the first n rows. Rows are shared.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}
