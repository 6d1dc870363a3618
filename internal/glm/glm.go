// Package glm fits one feature's count-regression model. It is the numeric
// capability behind every model family: given a design, a response, an
// offset and prior weights it returns fixed-effect coefficients, standard
// errors, p-values and a convergence flag.
//
// All families share one penalized IRLS solver (irls.go). Random intercepts
// enter as ridge-penalized indicator columns whose penalty is re-estimated
// from the fitted group effects.
package glm

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"dafit/internal/family"
)

var (
	ErrSingular     = errors.New("glm: information matrix is singular")
	ErrDiverged     = errors.New("glm: fit diverged (non-finite deviance)")
	ErrNoDF         = errors.New("glm: no residual degrees of freedom")
	ErrInsufficient = errors.New("glm: not enough informative observations")
	ErrDegenerate   = errors.New("glm: degenerate estimate")
)

// Problem is one feature's fitting input. X, Z and Offset are shared and
// must not be modified; Y and Weights belong to the caller's feature.
type Problem struct {
	X       *mat.Dense // n × p fixed effects, column 0 intercept
	Z       *mat.Dense // n × q random-intercept indicators, nil when absent
	Y       []float64
	Offset  []float64 // link scale; nil means zero
	Weights []float64 // prior weights; nil means one
}

func (pr Problem) dims() (n, p, q int) {
	n, p = pr.X.Dims()
	if pr.Z != nil {
		_, q = pr.Z.Dims()
	}
	return n, p, q
}

// Estimate is the fixed-effect summary of a fit. Slices have one entry per
// column of X.
type Estimate struct {
	Coef      []float64
	StdErr    []float64
	Stat      []float64 // Wald t statistic
	PValue    []float64
	DF        float64
	Converged bool
	Iter      int

	Dispersion float64
	Power      float64 // Tweedie variance power (CPLM/ZICP)
	ZeroProb   float64 // structural-zero probability (ZICP/ZACP)
	Note       string
}

// Fitter is the per-family capability. Implementations are stateless and
// safe for concurrent use.
type Fitter interface {
	Fit(ctx context.Context, pr Problem) (Estimate, error)
}

// Options tunes the solvers. Zero values take the defaults below.
type Options struct {
	MaxIter  int       // IRLS iterations per fit [100]
	Tol      float64   // relative deviance change [1e-8]
	MaxOuter int       // random-effect penalty updates [200]
	MaxEM    int       // zero-inflation EM iterations [200]
	Powers   []float64 // Tweedie power grid [1.1 .. 1.9]
}

// DefaultPowers is the Tweedie power profile grid.
var DefaultPowers = []float64{1.1, 1.2, 1.3, 1.4, 1.5, 1.6, 1.7, 1.8, 1.9}

func (o Options) withDefaults() Options {
	if o.MaxIter <= 0 {
		o.MaxIter = 100
	}
	if o.Tol <= 0 {
		o.Tol = 1e-8
	}
	if o.MaxOuter <= 0 {
		o.MaxOuter = 200
	}
	if o.MaxEM <= 0 {
		o.MaxEM = 200
	}
	if len(o.Powers) == 0 {
		o.Powers = DefaultPowers
	}
	return o
}

// New returns the capability for f.
func New(f family.Family, o Options) (Fitter, error) {
	o = o.withDefaults()
	switch f {
	case family.CPLM:
		return cplm{opts: o}, nil
	case family.ZICP:
		return zicp{opts: o}, nil
	case family.ZACP:
		return zacp{opts: o}, nil
	case family.LM:
		return lm{opts: o}, nil
	}
	return nil, fmt.Errorf("glm: no fitter for family %s", f)
}
