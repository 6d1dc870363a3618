package table

import (
	"math"
	"slices"
	"strconv"
)

// Metadata is a samples × covariates table of raw string cells.
type Metadata struct {
	Samples []string
	Columns []string
	Cells   [][]string // [column][sample]
}

// Metadata interprets raw as a metadata table (samples in rows).
func (raw *Raw) Metadata() *Metadata {
	m := &Metadata{
		Samples: slices.Clone(raw.Rows),
		Columns: slices.Clone(raw.Cols),
		Cells:   make([][]string, len(raw.Cols)),
	}
	for c := range raw.Cols {
		col := make([]string, len(raw.Rows))
		for s := range raw.Rows {
			col[s] = raw.Cells[s][c]
		}
		m.Cells[c] = col
	}
	return m
}

// Column returns the cells of a named column.
func (m *Metadata) Column(name string) ([]string, bool) {
	i := slices.Index(m.Columns, name)
	if i < 0 {
		return nil, false
	}
	return m.Cells[i], true
}

// Has reports whether a column exists.
func (m *Metadata) Has(name string) bool { return slices.Contains(m.Columns, name) }

// Numeric parses a column as floats. ok is false when the column is absent
// or any non-missing cell fails to parse; missing cells become NaN.
func (m *Metadata) Numeric(name string) (vals []float64, ok bool) {
	col, found := m.Column(name)
	if !found {
		return nil, false
	}
	vals = make([]float64, len(col))
	for i, cell := range col {
		if IsMissing(cell) {
			vals[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

// SelectSamples returns a table restricted to the given sample indices,
// in that order.
func (m *Metadata) SelectSamples(idx []int) *Metadata {
	out := &Metadata{
		Samples: make([]string, len(idx)),
		Columns: slices.Clone(m.Columns),
		Cells:   make([][]string, len(m.Columns)),
	}
	for i, s := range idx {
		out.Samples[i] = m.Samples[s]
	}
	for c, col := range m.Cells {
		nc := make([]string, len(idx))
		for i, s := range idx {
			nc[i] = col[s]
		}
		out.Cells[c] = nc
	}
	return out
}

// DropMissing removes samples with a missing value in any of the named
// columns. Absent columns are ignored here; design validation reports them.
func (m *Metadata) DropMissing(cols []string) (*Metadata, int) {
	var check [][]string
	for _, name := range cols {
		if col, ok := m.Column(name); ok {
			check = append(check, col)
		}
	}
	keep := make([]int, 0, len(m.Samples))
	for s := range m.Samples {
		missing := false
		for _, col := range check {
			if IsMissing(col[s]) {
				missing = true
				break
			}
		}
		if !missing {
			keep = append(keep, s)
		}
	}
	if len(keep) == len(m.Samples) {
		return m, 0
	}
	return m.SelectSamples(keep), len(m.Samples) - len(keep)
}
