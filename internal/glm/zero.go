package glm

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// zicp is the zero-inflated compound Poisson model: with probability pi a
// zero is structural, otherwise Y follows the CPLM. The structural-zero
// probability is intercept-only; EM alternates zero responsibilities with a
// weighted CPLM fit at the profiled power.
type zicp struct{ opts Options }

func (z zicp) Fit(ctx context.Context, pr Problem) (Estimate, error) {
	n, p, _ := pr.dims()
	base, power, err := profileTweedie(ctx, pr, z.opts, nil)
	if err != nil {
		return Estimate{}, err
	}

	var zeros, sumPrior float64
	for i, y := range pr.Y {
		wi := weightAt(pr.Weights, i)
		sumPrior += wi
		if y == 0 {
			zeros += wi
		}
	}
	if zeros == 0 {
		e, err := estimate(base, p)
		if err != nil {
			return Estimate{}, err
		}
		e.Power = power
		e.Note = "no zeros observed; zero-inflation fixed at 0"
		return e, nil
	}

	phi, _, err := base.dispersion(p)
	if err != nil {
		return Estimate{}, err
	}
	p0 := make([]float64, n)
	var meanP0 float64
	for i := range p0 {
		p0[i] = tweedieZeroProb(base.mu[i], phi, power)
		meanP0 += weightAt(pr.Weights, i) * p0[i] / sumPrior
	}
	pi := math.Min(math.Max(zeros/sumPrior-meanP0, 0.01), 0.9)

	weights := make([]float64, n)
	sub := pr
	sub.Weights = weights
	cur, beta := base, base.beta
	converged := false
	iter := 0
	for it := 1; it <= z.opts.MaxEM; it++ {
		if err := ctx.Err(); err != nil {
			return Estimate{}, err
		}
		var sumR float64
		for i, y := range pr.Y {
			wi := weightAt(pr.Weights, i)
			r := 0.0
			if y == 0 {
				if d := pi + (1-pi)*p0[i]; d > 0 {
					r = pi / d
				}
			}
			sumR += wi * r
			weights[i] = wi * (1 - r)
		}
		piNew := sumR / sumPrior
		if piNew > 0.99 {
			return Estimate{}, fmt.Errorf("%w: structural-zero probability tends to 1", ErrDegenerate)
		}

		f, err := penalized(ctx, sub, tweedie(power), z.opts, beta)
		if err != nil {
			return Estimate{}, err
		}
		phiNew, _, err := f.dispersion(p)
		if err != nil {
			return Estimate{}, err
		}

		delta := math.Abs(piNew - pi)
		for j := 0; j < p; j++ {
			delta = math.Max(delta, math.Abs(f.beta[j]-beta[j]))
		}
		pi, beta, cur, phi = piNew, f.beta, f, phiNew
		for i := range p0 {
			p0[i] = tweedieZeroProb(cur.mu[i], phi, power)
		}
		iter = it
		if delta < 1e-6 {
			converged = cur.converged
			break
		}
	}

	e, err := estimate(cur, p)
	if err != nil {
		return Estimate{}, err
	}
	e.Converged = converged
	e.Iter = iter
	e.Power = power
	e.ZeroProb = pi
	return e, nil
}

// zacp is the zero-adjusted (hurdle) model: zeros are modelled by an
// intercept-only logistic part and the positive observations by a gamma GLM
// with log link. Reported coefficients belong to the positive part.
type zacp struct{ opts Options }

func gamma() glmFamily {
	return glmFamily{
		link:     logLink,
		variance: func(mu float64) float64 { return mu * mu },
		deviance: func(y, mu float64) float64 { return 2 * (-math.Log(y/mu) + (y-mu)/mu) },
		initMu: func(y, _ []float64) []float64 {
			return append([]float64(nil), y...)
		},
	}
}

func (z zacp) Fit(ctx context.Context, pr Problem) (Estimate, error) {
	n, p, _ := pr.dims()
	var idx []int
	for i, y := range pr.Y {
		if y > 0 && weightAt(pr.Weights, i) > 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) < p+2 {
		return Estimate{}, fmt.Errorf("%w: %d positive observations for %d coefficients", ErrInsufficient, len(idx), p)
	}
	f, err := penalized(ctx, subset(pr, idx), gamma(), z.opts, nil)
	if err != nil {
		return Estimate{}, err
	}
	e, err := estimate(f, p)
	if err != nil {
		return Estimate{}, err
	}
	e.ZeroProb = float64(n-len(idx)) / float64(n)
	return e, nil
}

// subset restricts pr to the listed observations.
func subset(pr Problem, idx []int) Problem {
	_, p, q := pr.dims()
	out := Problem{
		X: mat.NewDense(len(idx), p, nil),
		Y: make([]float64, len(idx)),
	}
	if pr.Z != nil {
		out.Z = mat.NewDense(len(idx), q, nil)
	}
	if pr.Offset != nil {
		out.Offset = make([]float64, len(idx))
	}
	if pr.Weights != nil {
		out.Weights = make([]float64, len(idx))
	}
	xrow := make([]float64, p)
	zrow := make([]float64, q)
	for r, i := range idx {
		out.X.SetRow(r, mat.Row(xrow, i, pr.X))
		if pr.Z != nil {
			out.Z.SetRow(r, mat.Row(zrow, i, pr.Z))
		}
		out.Y[r] = pr.Y[i]
		if pr.Offset != nil {
			out.Offset[r] = pr.Offset[i]
		}
		if pr.Weights != nil {
			out.Weights[r] = pr.Weights[i]
		}
	}
	return out
}
