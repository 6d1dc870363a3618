package glm

import (
	"context"
	"math"
)

// tweedie returns the compound Poisson family with variance mu^power,
// 1 < power < 2, and log link.
func tweedie(power float64) glmFamily {
	return glmFamily{
		link:     logLink,
		variance: func(mu float64) float64 { return math.Pow(mu, power) },
		deviance: func(y, mu float64) float64 { return tweedieDeviance(y, mu, power) },
		initMu: func(y, w []float64) []float64 {
			m := meanW(y, w)
			out := make([]float64, len(y))
			for i, v := range y {
				out[i] = math.Max((v+m)/2, muFloor)
			}
			return out
		},
	}
}

func tweedieDeviance(y, mu, p float64) float64 {
	if y == 0 {
		return 2 * math.Pow(mu, 2-p) / (2 - p)
	}
	return 2 * (math.Pow(y, 2-p)/((1-p)*(2-p)) - y*math.Pow(mu, 1-p)/(1-p) + math.Pow(mu, 2-p)/(2-p))
}

// tweedieZeroProb is P(Y = 0) under the compound Poisson model.
func tweedieZeroProb(mu, phi, p float64) float64 {
	return math.Exp(-math.Pow(mu, 2-p) / (phi * (2 - p)))
}

// eqlZeroAdjust stands in for y when evaluating V(y) at y = 0.
const eqlZeroAdjust = 1.0 / 6

// extendedQL is the extended quasi-likelihood used to profile the power.
func extendedQL(pr Problem, f *fit, p float64) float64 {
	n := len(pr.Y)
	w := pr.Weights
	var sumW float64
	for i := 0; i < n; i++ {
		sumW += weightAt(w, i)
	}
	phi := f.dev / sumW
	if !(phi > 0) {
		return math.Inf(-1)
	}
	var q float64
	for i, y := range pr.Y {
		wi := weightAt(w, i)
		if wi == 0 {
			continue
		}
		ys := y
		if ys == 0 {
			ys = eqlZeroAdjust
		}
		q += wi * (math.Log(2*math.Pi*phi*math.Pow(ys, p)) + tweedieDeviance(y, f.mu[i], p)/phi)
	}
	return -0.5 * q
}

func weightAt(w []float64, i int) float64 {
	if w == nil {
		return 1
	}
	return w[i]
}

// profileTweedie fits every power in the grid and keeps the best extended
// quasi-likelihood. Each fit warm-starts from the previous coefficients.
func profileTweedie(ctx context.Context, pr Problem, o Options, start []float64) (*fit, float64, error) {
	var (
		best    *fit
		bestP   float64
		bestQL  = math.Inf(-1)
		lastErr error
	)
	for _, p := range o.Powers {
		f, err := penalized(ctx, pr, tweedie(p), o, start)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			lastErr = err
			continue
		}
		start = f.beta
		ql := extendedQL(pr, f, p)
		// A converged fit always beats a non-converged one.
		if best == nil || (f.converged && !best.converged) || (f.converged == best.converged && ql > bestQL) {
			best, bestP, bestQL = f, p, ql
		}
	}
	if best == nil {
		return nil, 0, lastErr
	}
	return best, bestP, nil
}

// cplm is the compound Poisson (Tweedie) GLM with log link.
type cplm struct{ opts Options }

func (c cplm) Fit(ctx context.Context, pr Problem) (Estimate, error) {
	f, power, err := profileTweedie(ctx, pr, c.opts, nil)
	if err != nil {
		return Estimate{}, err
	}
	_, p, _ := pr.dims()
	e, err := estimate(f, p)
	if err != nil {
		return Estimate{}, err
	}
	e.Power = power
	return e, nil
}
