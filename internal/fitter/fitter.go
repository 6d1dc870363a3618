// Package fitter runs one feature through its model family and the family's
// fallback chain. A Fitter never returns an error: every outcome, including a
// panic in the numeric code, becomes a Result with a Status.
package fitter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"dafit/internal/design"
	"dafit/internal/family"
	"dafit/internal/glm"
	"dafit/internal/model"
)

// Status is the per-feature outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is one feature's fit. Coef, StdErr and PValue hold one entry per
// design term (intercept excluded); they are NaN unless Status is ok.
type Result struct {
	Index     int
	Feature   string
	Requested family.Family
	ModelUsed family.Family // None unless Status is ok
	Status    Status

	Coef   []float64
	StdErr []float64
	PValue []float64

	Converged bool
	N         int
	NNotZero  int
	Power     float64
	ZeroProb  float64
	Note      string
	Attempts  []family.Family
}

// Fitter is shared by all workers; it holds only read-only state.
type Fitter struct {
	spec   model.Spec
	chain  []family.Family
	design *design.Design
	offset []float64
	caps   map[family.Family]glm.Fitter
}

// New prepares the capability for every family on spec's fallback chain.
// reg must come from spec.Validate.
func New(spec model.Spec, reg *family.Registry, d *design.Design, offset []float64, opts glm.Options) (*Fitter, error) {
	if len(offset) != d.N {
		return nil, fmt.Errorf("fitter: %d offsets for %d samples", len(offset), d.N)
	}
	f := &Fitter{
		spec:   spec.Clone(),
		chain:  reg.Chain(spec.Family),
		design: d,
		offset: offset,
		caps:   make(map[family.Family]glm.Fitter),
	}
	for _, fam := range f.chain {
		c, err := glm.New(fam, opts)
		if err != nil {
			return nil, err
		}
		f.caps[fam] = c
	}
	return f, nil
}

// Chain is the ordered list of families a feature may be fitted with.
func (f *Fitter) Chain() []family.Family { return append([]family.Family(nil), f.chain...) }

// Terms is the design term list shared by every Result.
func (f *Fitter) Terms() []design.Term { return f.design.Terms }

// Fit fits feature idx (named id) with response y. y is owned by the call
// and may be modified.
func (f *Fitter) Fit(ctx context.Context, idx int, id string, y []float64) Result {
	r := newResult(idx, id, f.spec.Family, len(f.design.Terms))
	r.N = len(y)
	for _, v := range y {
		if v != 0 {
			r.NNotZero++
		}
	}

	if reason := f.degenerate(y); reason != "" {
		r.Status = StatusSkipped
		r.Note = reason
		return r
	}

	var notes []string
	for _, lvl := range f.design.SparseLevels(y) {
		notes = append(notes, "sparse level "+lvl)
	}

	if f.spec.Standardize {
		if sd := stat.StdDev(y, nil); sd > 0 {
			for i := range y {
				y[i] /= sd
			}
		}
	}

	pr := glm.Problem{X: f.design.X, Z: f.design.Z, Y: y, Offset: f.offset}
	var reasons []string
	for _, fam := range f.chain {
		if err := ctx.Err(); err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", fam, err))
			break
		}
		r.Attempts = append(r.Attempts, fam)
		e, err := attempt(ctx, f.caps[fam], pr)
		if err == nil && !e.Converged {
			err = errors.New("did not converge")
			if e.Note != "" {
				err = fmt.Errorf("did not converge (%s)", e.Note)
			}
		}
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", fam, err))
			continue
		}
		r.Status = StatusOK
		r.ModelUsed = fam
		r.Converged = true
		r.Power = e.Power
		r.ZeroProb = e.ZeroProb
		copy(r.Coef, e.Coef[1:])
		copy(r.StdErr, e.StdErr[1:])
		copy(r.PValue, e.PValue[1:])
		if fam != f.spec.Family {
			notes = append(notes, "fallback from "+f.spec.Family.String())
		}
		if e.Note != "" {
			notes = append(notes, e.Note)
		}
		r.Note = strings.Join(notes, "; ")
		return r
	}

	r.Status = StatusFailed
	r.Note = strings.Join(append(notes, reasons...), "; ")
	return r
}

// degenerate returns the skip reason for y, or "".
func (f *Fitter) degenerate(y []float64) string {
	if len(y) < 2 {
		return "zero variance"
	}
	if v := stat.Variance(y, nil); !(v > f.spec.MinVariance) {
		return "zero variance"
	}
	if f.spec.MinPrevalence > 0 {
		var present int
		for _, v := range y {
			if v > f.spec.MinAbundance {
				present++
			}
		}
		if float64(present)/float64(len(y)) < f.spec.MinPrevalence {
			return "low prevalence"
		}
	}
	return ""
}

// attempt isolates a single capability call; a panic is reported as an error.
func attempt(ctx context.Context, c glm.Fitter, pr glm.Problem) (e glm.Estimate, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return c.Fit(ctx, pr)
}

// Failed builds the result for a feature whose fit never completed, such as
// one that hit the per-feature timeout.
func Failed(idx int, id string, requested family.Family, terms int, reason string) Result {
	r := newResult(idx, id, requested, terms)
	r.Status = StatusFailed
	r.Note = reason
	return r
}

func newResult(idx int, id string, requested family.Family, terms int) Result {
	r := Result{
		Index:     idx,
		Feature:   id,
		Requested: requested,
		Coef:      nanSlice(terms),
		StdErr:    nanSlice(terms),
		PValue:    nanSlice(terms),
		Power:     math.NaN(),
		ZeroProb:  math.NaN(),
	}
	return r
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
