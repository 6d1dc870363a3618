// Package padjust implements multiple-testing corrections. NaN p-values are
// left out of the family size and come back as NaN.
package padjust

import (
	"fmt"
	"math"
	"sort"

	"dafit/internal/model"
)

// Adjust returns the q-values for p under method (see model.Correction*).
// The input is not modified.
func Adjust(method string, p []float64) ([]float64, error) {
	switch method {
	case model.CorrectionBH, "":
		return BH(p), nil
	case model.CorrectionBY:
		return BY(p), nil
	case model.CorrectionHolm:
		return Holm(p), nil
	case model.CorrectionBonferroni:
		return Bonferroni(p), nil
	}
	return nil, fmt.Errorf("padjust: unknown method %q", method)
}

// BH is the Benjamini-Hochberg step-up procedure:
// q_(i) = min_{j>=i} p_(j)·m/j, clipped to [0,1].
func BH(p []float64) []float64 { return stepUp(p, 1) }

// BY is Benjamini-Yekutieli, BH scaled by the harmonic sum of m.
func BY(p []float64) []float64 {
	m := valid(p)
	var c float64
	for i := 1; i <= len(m); i++ {
		c += 1 / float64(i)
	}
	return stepUp(p, c)
}

func stepUp(p []float64, c float64) []float64 {
	out := nanLike(p)
	idx := valid(p)
	m := float64(len(idx))
	// descending by p, ties broken by position for determinism
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] > p[idx[b]] })
	running := math.Inf(1)
	for k, i := range idx {
		rank := m - float64(k)
		q := p[i] * m * c / rank
		if q < running {
			running = q
		}
		out[i] = clip(running)
	}
	return out
}

// Holm is the step-down family-wise procedure.
func Holm(p []float64) []float64 {
	out := nanLike(p)
	idx := valid(p)
	m := float64(len(idx))
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })
	running := 0.0
	for k, i := range idx {
		q := p[i] * (m - float64(k))
		if q > running {
			running = q
		}
		out[i] = clip(running)
	}
	return out
}

// Bonferroni multiplies each p-value by m.
func Bonferroni(p []float64) []float64 {
	out := nanLike(p)
	idx := valid(p)
	m := float64(len(idx))
	for _, i := range idx {
		out[i] = clip(p[i] * m)
	}
	return out
}

func valid(p []float64) []int {
	idx := make([]int, 0, len(p))
	for i, v := range p {
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	return idx
}

func nanLike(p []float64) []float64 {
	out := make([]float64, len(p))
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func clip(q float64) float64 { return math.Min(1, math.Max(0, q)) }
