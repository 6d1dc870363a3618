// internal/pipeline/sim.go
package pipeline

import (
	"context"

	"dafit/internal/fitter"
)

// FeatureFitter is the minimal capability the pipeline needs.
// *fitter.Fitter satisfies it; tests use fakes.
type FeatureFitter interface {
	Fit(ctx context.Context, idx int, id string, y []float64) fitter.Result
}

// Source supplies one response vector per feature. Response must return a
// slice the caller owns.
type Source interface {
	NumFeatures() int
	FeatureID(i int) string
	Response(i int) []float64
}
