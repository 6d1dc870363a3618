// Package design turns metadata covariates into the shared design matrices:
// an intercept plus fixed-effect columns with reference-level coding, and
// optional random-intercept indicator columns.
package design

import (
	"fmt"
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"dafit/internal/model"
	"dafit/internal/table"
)

// Covariate is one metadata column as it enters the model.
type Covariate struct {
	Name        string
	Categorical bool
	Levels      []string  // sorted distinct levels (categorical only)
	Reference   string    // baseline level (categorical only)
	Codes       []int     // per-sample index into Levels (categorical only)
	Values      []float64 // per-sample value (numeric only)
}

// Term is one non-intercept fixed-effect column of X.
type Term struct {
	Metadata string // covariate name
	Value    string // level for categorical covariates, covariate name otherwise
	Column   int    // column index in X
}

// Label is "metadata" or "metadata:value" for categorical terms.
func (t Term) Label() string {
	if t.Value == t.Metadata {
		return t.Metadata
	}
	return t.Metadata + ":" + t.Value
}

// Design is shared read-only by every worker.
type Design struct {
	N          int
	X          *mat.Dense // N × (1 + len(Terms)); column 0 is the intercept
	Terms      []Term
	Fixed      []Covariate
	Z          *mat.Dense // N × len(RandomCols), nil without random effects
	RandomCols []string   // "group=level" per Z column
	Random     []Covariate
}

// NumFixed is the number of columns of X.
func (d *Design) NumFixed() int { return len(d.Terms) + 1 }

// Build validates spec against md and builds the design. md must already be
// aligned and free of missing values in the referenced columns.
func Build(md *table.Metadata, spec model.Spec) (*Design, error) {
	n := len(md.Samples)
	d := &Design{N: n}

	for _, name := range spec.FixedEffects {
		ref, forced := spec.Reference[name]
		cov, err := covariate(md, name, forced, "fixed_effects")
		if err != nil {
			return nil, err
		}
		if cov.Categorical {
			if !forced {
				ref = cov.Levels[0]
			}
			if !slices.Contains(cov.Levels, ref) {
				return nil, model.Configf("reference", "level %q not found in %q (levels: %v)", ref, name, cov.Levels)
			}
			cov.Reference = ref
		}
		d.Fixed = append(d.Fixed, cov)
	}
	for _, name := range spec.RandomEffects {
		cov, err := covariate(md, name, true, "random_effects")
		if err != nil {
			return nil, err
		}
		d.Random = append(d.Random, cov)
	}

	// Fixed-effect columns.
	cols := [][]float64{ones(n)}
	for _, cov := range d.Fixed {
		if !cov.Categorical {
			d.Terms = append(d.Terms, Term{Metadata: cov.Name, Value: cov.Name, Column: len(cols)})
			cols = append(cols, cov.Values)
			continue
		}
		for li, lvl := range cov.Levels {
			if lvl == cov.Reference {
				continue
			}
			d.Terms = append(d.Terms, Term{Metadata: cov.Name, Value: lvl, Column: len(cols)})
			cols = append(cols, indicator(cov.Codes, li))
		}
	}
	if len(cols) >= n {
		return nil, model.Configf("fixed_effects", "%d design columns need more than %d samples", len(cols), n)
	}
	d.X = columnMatrix(n, cols)
	if !fullRank(d.X) {
		return nil, model.Configf("fixed_effects", "design matrix is rank deficient; check for collinear covariates")
	}

	var zcols [][]float64
	for _, cov := range d.Random {
		for li, lvl := range cov.Levels {
			d.RandomCols = append(d.RandomCols, cov.Name+"="+lvl)
			zcols = append(zcols, indicator(cov.Codes, li))
		}
	}
	if len(zcols) > 0 {
		d.Z = columnMatrix(n, zcols)
	}
	return d, nil
}

func covariate(md *table.Metadata, name string, forceCategorical bool, field string) (Covariate, error) {
	col, ok := md.Column(name)
	if !ok {
		return Covariate{}, model.Configf(field, "covariate %q not found in metadata (columns: %v)", name, md.Columns)
	}
	cov := Covariate{Name: name}
	if !forceCategorical {
		if vals, numeric := md.Numeric(name); numeric {
			if stat.Variance(vals, nil) == 0 || len(vals) < 2 {
				return Covariate{}, model.Configf(field, "numeric covariate %q is constant", name)
			}
			cov.Values = vals
			return cov, nil
		}
	}

	cov.Categorical = true
	set := map[string]struct{}{}
	for _, v := range col {
		set[v] = struct{}{}
	}
	for v := range set {
		cov.Levels = append(cov.Levels, v)
	}
	sort.Strings(cov.Levels)
	if len(cov.Levels) < 2 {
		return Covariate{}, model.Configf(field, "categorical covariate %q has a single level", name)
	}
	idx := make(map[string]int, len(cov.Levels))
	for i, l := range cov.Levels {
		idx[l] = i
	}
	cov.Codes = make([]int, len(col))
	for i, v := range col {
		cov.Codes[i] = idx[v]
	}
	return cov, nil
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func indicator(codes []int, level int) []float64 {
	out := make([]float64, len(codes))
	for i, c := range codes {
		if c == level {
			out[i] = 1
		}
	}
	return out
}

func columnMatrix(n int, cols [][]float64) *mat.Dense {
	m := mat.NewDense(n, len(cols), nil)
	for j, c := range cols {
		m.SetCol(j, c)
	}
	return m
}

func fullRank(x *mat.Dense) bool {
	_, p := x.Dims()
	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	var chol mat.Cholesky
	if !chol.Factorize(&xtx) {
		return false
	}
	// Guard against numerically singular but technically PD matrices.
	return chol.Cond() < 1e12 && p > 0
}

// SparseLevels names the categorical levels under which y has fewer than two
// distinct non-zero values, as "covariate=level".
func (d *Design) SparseLevels(y []float64) []string {
	var out []string
	for _, cov := range d.Fixed {
		if !cov.Categorical {
			continue
		}
		distinct := make([]map[float64]struct{}, len(cov.Levels))
		for i := range distinct {
			distinct[i] = map[float64]struct{}{}
		}
		for s, c := range cov.Codes {
			if y[s] != 0 {
				distinct[c][y[s]] = struct{}{}
			}
		}
		for li, lvl := range cov.Levels {
			if len(distinct[li]) < 2 {
				out = append(out, fmt.Sprintf("%s=%s", cov.Name, lvl))
			}
		}
	}
	return out
}
