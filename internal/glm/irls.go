package glm

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

type linkKind uint8

const (
	logLink linkKind = iota
	identityLink
)

const muFloor = 1e-12

func (l linkKind) inverse(eta float64) float64 {
	if l == identityLink {
		return eta
	}
	return math.Max(math.Exp(math.Min(eta, 700)), muFloor)
}

func (l linkKind) link(mu float64) float64 {
	if l == identityLink {
		return mu
	}
	return math.Log(math.Max(mu, muFloor))
}

// dmu/deta
func (l linkKind) derivative(mu float64) float64 {
	if l == identityLink {
		return 1
	}
	return mu
}

// glmFamily is an exponential-dispersion family with a fixed link.
type glmFamily struct {
	link     linkKind
	variance func(mu float64) float64
	deviance func(y, mu float64) float64 // unit deviance
	initMu   func(y, w []float64) []float64
}

// fit is the raw solver output over all p+q coefficients.
type fit struct {
	beta      []float64
	mu        []float64
	inv       *mat.SymDense // inverse penalized information, unscaled
	dev       float64
	pearson   float64
	sumW      float64
	iter      int
	converged bool
	lambda    float64
	note      string
}

func (f *fit) dispersion(p int) (float64, float64, error) {
	df := f.sumW - float64(p)
	if df <= 0 {
		return 0, 0, ErrNoDF
	}
	return f.pearson / df, df, nil
}

// irls runs iteratively reweighted least squares with a ridge penalty lambda
// on the random-effect columns. start may be nil.
func irls(ctx context.Context, pr Problem, fam glmFamily, o Options, start []float64, lambda float64) (*fit, error) {
	n, p, q := pr.dims()
	k := p + q
	rows := designRows(pr, n, p, q)
	prior := pr.Weights
	if prior == nil {
		prior = make([]float64, n)
		for i := range prior {
			prior[i] = 1
		}
	}
	off := func(i int) float64 {
		if pr.Offset == nil {
			return 0
		}
		return pr.Offset[i]
	}

	eta := make([]float64, n)
	mu := make([]float64, n)
	beta := make([]float64, k)
	if start != nil && len(start) == k {
		copy(beta, start)
		for i := 0; i < n; i++ {
			eta[i] = dot(rows[i*k:(i+1)*k], beta) + off(i)
			mu[i] = fam.link.inverse(eta[i])
		}
	} else {
		copy(mu, fam.initMu(pr.Y, prior))
		for i := range mu {
			eta[i] = fam.link.link(mu[i])
		}
	}
	deviance := func(mu []float64) float64 {
		var d float64
		for i, m := range mu {
			if prior[i] != 0 {
				d += prior[i] * fam.deviance(pr.Y[i], m)
			}
		}
		return d
	}

	devOld := deviance(mu)
	w := make([]float64, n)
	z := make([]float64, n)
	a := make([]float64, k*k)
	rhs := make([]float64, k)
	betaNew := mat.NewVecDense(k, nil)
	var chol mat.Cholesky

	out := &fit{lambda: lambda}
	for it := 1; it <= o.MaxIter; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			d := fam.link.derivative(mu[i])
			v := fam.variance(mu[i])
			if !(v > 0) || math.IsInf(v, 0) {
				v = muFloor
			}
			w[i] = prior[i] * d * d / v
			z[i] = eta[i] - off(i) + (pr.Y[i]-mu[i])/d
		}
		sym := normalEquations(rows, w, z, n, k, a, rhs)
		for j := p; j < k; j++ {
			sym.SetSym(j, j, sym.At(j, j)+lambda)
		}
		if !chol.Factorize(sym) {
			return nil, ErrSingular
		}
		if err := chol.SolveVecTo(betaNew, mat.NewVecDense(k, rhs)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSingular, err)
		}

		prev := append([]float64(nil), beta...)
		for j := 0; j < k; j++ {
			beta[j] = betaNew.AtVec(j)
		}
		devNew := math.NaN()
		for half := 0; half <= 10; half++ {
			for i := 0; i < n; i++ {
				eta[i] = dot(rows[i*k:(i+1)*k], beta) + off(i)
				mu[i] = fam.link.inverse(eta[i])
			}
			devNew = deviance(mu)
			if !math.IsNaN(devNew) && !math.IsInf(devNew, 0) {
				break
			}
			for j := range beta {
				beta[j] = (beta[j] + prev[j]) / 2
			}
		}
		if math.IsNaN(devNew) || math.IsInf(devNew, 0) {
			return nil, ErrDiverged
		}

		out.iter = it
		if math.Abs(devNew-devOld)/(math.Abs(devNew)+0.1) < o.Tol {
			out.converged = true
			devOld = devNew
			break
		}
		devOld = devNew
	}

	// Information at the final estimate.
	for i := 0; i < n; i++ {
		d := fam.link.derivative(mu[i])
		v := fam.variance(mu[i])
		if !(v > 0) || math.IsInf(v, 0) {
			v = muFloor
		}
		w[i] = prior[i] * d * d / v
	}
	sym := normalEquations(rows, w, z, n, k, a, rhs)
	for j := p; j < k; j++ {
		sym.SetSym(j, j, sym.At(j, j)+lambda)
	}
	if !chol.Factorize(sym) {
		return nil, ErrSingular
	}
	inv := mat.NewSymDense(k, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	out.beta = beta
	out.mu = mu
	out.inv = inv
	out.dev = devOld
	for i := 0; i < n; i++ {
		out.sumW += prior[i]
		if prior[i] == 0 {
			continue
		}
		v := fam.variance(mu[i])
		if !(v > 0) {
			v = muFloor
		}
		r := pr.Y[i] - mu[i]
		out.pearson += prior[i] * r * r / v
	}
	return out, nil
}

// Random-effect penalty bounds. A variance below collapsedVariance times the
// dispersion is fitted as zero (penalty maxPenalty).
const (
	minPenalty        = 1e-6
	maxPenalty        = 1e8
	collapsedVariance = 1e-2
)

// penalized wraps irls with the random-effect variance update
// sigma² = (b'b + phi·tr(C_zz)) / q, lambda = phi / sigma².
func penalized(ctx context.Context, pr Problem, fam glmFamily, o Options, start []float64) (*fit, error) {
	_, p, q := pr.dims()
	if q == 0 {
		return irls(ctx, pr, fam, o, start, 0)
	}
	lambda, prev := 1.0, math.Inf(1)
	for outer := 0; outer < o.MaxOuter; outer++ {
		f, err := irls(ctx, pr, fam, o, start, lambda)
		if err != nil {
			return nil, err
		}
		phi, _, err := f.dispersion(p)
		if err != nil {
			return nil, err
		}
		var ss, tr float64
		for j := p; j < p+q; j++ {
			ss += f.beta[j] * f.beta[j]
			tr += f.inv.At(j, j)
		}
		sigma2 := (ss + phi*tr) / float64(q)
		next := math.Min(math.Max(phi/math.Max(sigma2, 1e-12), minPenalty), maxPenalty)
		start = f.beta
		if math.Abs(next-lambda) <= 1e-3*lambda || math.Abs(sigma2-prev) <= 1e-4*phi {
			return f, nil
		}
		// The update creeps towards a zero variance without ever meeting
		// the tolerance; settle it on the boundary instead.
		if sigma2 <= collapsedVariance*phi || next >= maxPenalty {
			return irls(ctx, pr, fam, o, start, maxPenalty)
		}
		lambda, prev = next, sigma2
	}
	f, err := irls(ctx, pr, fam, o, start, lambda)
	if err != nil {
		return nil, err
	}
	f.converged = false
	f.note = "random-effect variance did not stabilise"
	return f, nil
}

// estimate turns the fixed-effect block of f into Wald inference with a
// Student t reference distribution.
func estimate(f *fit, p int) (Estimate, error) {
	phi, df, err := f.dispersion(p)
	if err != nil {
		return Estimate{}, err
	}
	e := Estimate{
		Coef:       make([]float64, p),
		StdErr:     make([]float64, p),
		Stat:       make([]float64, p),
		PValue:     make([]float64, p),
		DF:         df,
		Converged:  f.converged,
		Iter:       f.iter,
		Dispersion: phi,
		Note:       f.note,
	}
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	for j := 0; j < p; j++ {
		se := math.Sqrt(phi * f.inv.At(j, j))
		if !(se > 0) || math.IsInf(se, 0) || math.IsNaN(f.beta[j]) {
			return Estimate{}, fmt.Errorf("%w: standard error for coefficient %d is %g", ErrDegenerate, j, se)
		}
		t := f.beta[j] / se
		e.Coef[j] = f.beta[j]
		e.StdErr[j] = se
		e.Stat[j] = t
		e.PValue[j] = math.Min(1, 2*tdist.Survival(math.Abs(t)))
	}
	return e, nil
}

// designRows flattens [X Z] row-major.
func designRows(pr Problem, n, p, q int) []float64 {
	k := p + q
	rows := make([]float64, n*k)
	for i := 0; i < n; i++ {
		r := rows[i*k : (i+1)*k]
		mat.Row(r[:p], i, pr.X)
		if q > 0 {
			mat.Row(r[p:], i, pr.Z)
		}
	}
	return rows
}

// normalEquations fills a = R'WR and rhs = R'Wz and wraps a as symmetric.
func normalEquations(rows, w, z []float64, n, k int, a, rhs []float64) *mat.SymDense {
	clear(a)
	clear(rhs)
	for i := 0; i < n; i++ {
		wi := w[i]
		if wi == 0 {
			continue
		}
		r := rows[i*k : (i+1)*k]
		for j := 0; j < k; j++ {
			if r[j] == 0 {
				continue
			}
			wr := wi * r[j]
			rhs[j] += wr * z[i]
			for l := j; l < k; l++ {
				a[j*k+l] += wr * r[l]
			}
		}
	}
	return mat.NewSymDense(k, a)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func meanW(y, w []float64) float64 {
	var s, sw float64
	for i, v := range y {
		s += w[i] * v
		sw += w[i]
	}
	if sw == 0 {
		return 0
	}
	return s / sw
}
