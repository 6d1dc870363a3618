package glm

import (
	"context"
	"math"
)

// lmPseudoCount keeps log(y + c) finite at zero.
const lmPseudoCount = 0.5

// lm is a Gaussian linear model on log(y + 0.5); the offset stays on the
// log scale so it carries the same meaning as in the count families.
type lm struct{ opts Options }

func gaussian() glmFamily {
	return glmFamily{
		link:     identityLink,
		variance: func(float64) float64 { return 1 },
		deviance: func(y, mu float64) float64 { return (y - mu) * (y - mu) },
		initMu: func(y, _ []float64) []float64 {
			return append([]float64(nil), y...)
		},
	}
}

func (l lm) Fit(ctx context.Context, pr Problem) (Estimate, error) {
	_, p, _ := pr.dims()
	t := make([]float64, len(pr.Y))
	for i, y := range pr.Y {
		t[i] = math.Log(y + lmPseudoCount)
	}
	sub := pr
	sub.Y = t
	f, err := penalized(ctx, sub, gaussian(), l.opts, nil)
	if err != nil {
		return Estimate{}, err
	}
	return estimate(f, p)
}
