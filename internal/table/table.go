// Package table materializes merged records into a rectangular table and
// applies the column post-processing pipeline. Every transform returns a
// new Table; nothing mutates in place.
package table

import (
	"sort"

	"github.com/fairscan/leadmerge-cli/internal/model"
)

// Table is a rectangular view over merged records: an ordered header and
// one record per row. A missing key reads as an empty cell.
type Table struct {
	Columns []string
	Rows    []model.Record
}

// Materialize builds a table from merged records. Columns appear in
// first-seen order; within one record, field names are visited sorted so
// the header is deterministic.
func Materialize(records []model.Record) *Table {
	t := &Table{}
	seen := make(map[string]struct{})

	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				t.Columns = append(t.Columns, k)
			}
		}
		t.Rows = append(t.Rows, rec.Clone())
	}

	return t
}

// Cell returns the value at (row, col), empty for absent fields.
func (t *Table) Cell(row int, col string) string {
	return t.Rows[row][col]
}

// HasColumn reports whether the header contains col.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// clone copies the header and rows.
func (t *Table) clone() *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	out.Rows = make([]model.Record, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// dropColumn removes col from the header and every row.
func (t *Table) dropColumn(col string) {
	cols := t.Columns[:0]
	for _, c := range t.Columns {
		if c != col {
			cols = append(cols, c)
		}
	}
	t.Columns = cols
	for _, r := range t.Rows {
		delete(r, col)
	}
}

// ensureColumn appends col to the header if absent.
func (t *Table) ensureColumn(col string) {
	if !t.HasColumn(col) {
		t.Columns = append(t.Columns, col)
	}
}

// emptyFraction returns the share of rows with an empty cell in col.
func (t *Table) emptyFraction(col string) float64 {
	if len(t.Rows) == 0 {
		return 1
	}
	empty := 0
	for _, r := range t.Rows {
		if r[col] == "" {
			empty++
		}
	}
	return float64(empty) / float64(len(t.Rows))
}
