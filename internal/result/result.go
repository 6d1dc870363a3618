// Package result assembles per-feature fits into the final result table.
package result

import (
	"math"
	"slices"
	"sort"

	"dafit/internal/design"
	"dafit/internal/family"
	"dafit/internal/fitter"
	"dafit/internal/padjust"
)

// Row is one (feature, term) line of the result table. NaN means missing.
type Row struct {
	Feature   string
	Metadata  string
	Value     string
	Coef      float64
	StdErr    float64
	PValue    float64
	QValue    float64
	N         int
	NNotZero  int
	ModelUsed family.Family // None when the feature was not fitted
	Status    fitter.Status
	Note      string

	FeatureIndex int
	TermIndex    int
}

// Summary counts features by outcome.
type Summary struct {
	Features int
	OK       int
	Failed   int
	Skipped  int
	Fallback int // ok features fitted with a family other than the requested one
}

// Table is built once per run. Rows are in feature order, then term order.
type Table struct {
	Terms      []design.Term
	Rows       []Row
	Correction string
	Summary    Summary
}

// Aggregate builds the table from results, which must be ordered by
// feature index. Q-values start out as NaN; call Adjust.
func Aggregate(results []fitter.Result, terms []design.Term) *Table {
	t := &Table{
		Terms: slices.Clone(terms),
		Rows:  make([]Row, 0, len(results)*len(terms)),
	}
	t.Summary.Features = len(results)
	for _, r := range results {
		switch r.Status {
		case fitter.StatusOK:
			t.Summary.OK++
			if r.ModelUsed != r.Requested {
				t.Summary.Fallback++
			}
		case fitter.StatusFailed:
			t.Summary.Failed++
		case fitter.StatusSkipped:
			t.Summary.Skipped++
		}
		for ti, term := range terms {
			row := Row{
				Feature:      r.Feature,
				Metadata:     term.Metadata,
				Value:        term.Value,
				Coef:         math.NaN(),
				StdErr:       math.NaN(),
				PValue:       math.NaN(),
				QValue:       math.NaN(),
				N:            r.N,
				NNotZero:     r.NNotZero,
				ModelUsed:    r.ModelUsed,
				Status:       r.Status,
				Note:         r.Note,
				FeatureIndex: r.Index,
				TermIndex:    ti,
			}
			if r.Status == fitter.StatusOK && ti < len(r.Coef) {
				row.Coef, row.StdErr, row.PValue = r.Coef[ti], r.StdErr[ti], r.PValue[ti]
			}
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

// Adjust fills QValue by correcting p-values across features, separately
// for each design term.
func (t *Table) Adjust(method string) error {
	byTerm := make([][]int, len(t.Terms))
	for i, r := range t.Rows {
		byTerm[r.TermIndex] = append(byTerm[r.TermIndex], i)
	}
	for _, idx := range byTerm {
		p := make([]float64, len(idx))
		for k, i := range idx {
			p[k] = t.Rows[i].PValue
		}
		q, err := padjust.Adjust(method, p)
		if err != nil {
			return err
		}
		for k, i := range idx {
			t.Rows[i].QValue = q[k]
		}
	}
	t.Correction = method
	return nil
}

// Sorted returns a copy of the rows ordered for display: by term, then
// ascending p-value with missing values last, ties by feature order.
func (t *Table) Sorted() []Row {
	out := slices.Clone(t.Rows)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TermIndex != b.TermIndex {
			return a.TermIndex < b.TermIndex
		}
		an, bn := math.IsNaN(a.PValue), math.IsNaN(b.PValue)
		if an != bn {
			return bn
		}
		if !an && a.PValue != b.PValue {
			return a.PValue < b.PValue
		}
		return a.FeatureIndex < b.FeatureIndex
	})
	return out
}

// Significant counts the fitted rows with QValue at or below alpha.
func (t *Table) Significant(alpha float64) int {
	var n int
	for _, r := range t.Rows {
		if r.QValue <= alpha {
			n++
		}
	}
	return n
}
