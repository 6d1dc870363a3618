package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"dafit/internal/family"
	"dafit/internal/fitter"
	"dafit/internal/model"
	"dafit/internal/offset"
	"dafit/internal/result"
	"dafit/internal/table"
)

// simulate builds nSamples × nFeatures counts with per-sample depth factors.
// The first nDiff features are four-fold higher in group B; the last
// feature is all zero.
func simulate(nSamples, nFeatures, nDiff int, seed int64) Input {
	rng := rand.New(rand.NewSource(seed))
	ft := &table.FeatureTable{}
	md := &table.Metadata{Columns: []string{"group", "batch"}, Cells: make([][]string, 2)}
	depth := make([]float64, nSamples)
	for s := 0; s < nSamples; s++ {
		id := fmt.Sprintf("S%03d", s)
		ft.Samples = append(ft.Samples, id)
		md.Samples = append(md.Samples, id)
		g := "A"
		if s%2 == 1 {
			g = "B"
		}
		md.Cells[0] = append(md.Cells[0], g)
		md.Cells[1] = append(md.Cells[1], fmt.Sprintf("b%d", s%3))
		depth[s] = 0.5 + 1.5*rng.Float64()
	}
	for f := 0; f < nFeatures; f++ {
		ft.Features = append(ft.Features, fmt.Sprintf("F%02d", f))
		row := make([]float64, nSamples)
		if f < nFeatures-1 {
			base := 5 + 45*rng.Float64()
			for s := range row {
				mu := base * depth[s]
				if f < nDiff && s%2 == 1 {
					mu *= 4
				}
				row[s] = math.Round(mu * (0.5 + rng.Float64()))
				if rng.Float64() < 0.05 {
					row[s] = 0
				}
			}
		}
		ft.Values = append(ft.Values, row)
	}
	return Input{Features: ft, Metadata: md}
}

func quiet() *Engine {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func baseSpec() model.Spec {
	return model.Spec{
		Family:       family.CPLM,
		FixedEffects: []string{"group"},
		AdjustOffset: true,
		Workers:      4,
	}
}

func TestRun_LibrarySizeScenario(t *testing.T) {
	// 100 features × 50 samples
	in := simulate(50, 100, 10, 7)
	rep, err := quiet().Run(context.Background(), in, baseSpec())
	require.NoError(t, err)

	require.Equal(t, offset.SourceLibrarySize, rep.Offset.Source)
	require.Equal(t, 50, rep.Samples)
	require.Len(t, rep.Table.Terms, 1)
	require.Equal(t, "B", rep.Table.Terms[0].Value)
	require.Len(t, rep.Table.Rows, 100)

	for i, r := range rep.Table.Rows {
		require.Equal(t, fmt.Sprintf("F%02d", i), r.Feature)
		require.Equal(t, "group", r.Metadata)
		if i == 99 {
			require.Equal(t, fitter.StatusSkipped, r.Status)
			require.True(t, math.IsNaN(r.QValue))
			continue
		}
		require.Equal(t, fitter.StatusOK, r.Status, "%s: %s", r.Feature, r.Note)
		require.Equal(t, 50, r.N)
		require.GreaterOrEqual(t, r.QValue, r.PValue)
		require.LessOrEqual(t, r.QValue, 1.0)
		if i < 10 {
			require.Less(t, r.QValue, 0.05, r.Feature)
			// depth normalization absorbs part of the shift, never all of it
			require.Greater(t, r.Coef, 0.5, r.Feature)
		}
	}
	require.Equal(t, result.Summary{Features: 100, OK: 99, Skipped: 1}, rep.Table.Summary)
}

func TestRun_DeterministicAcrossWorkerCounts(t *testing.T) {
	in := simulate(40, 30, 5, 3)
	spec := baseSpec()
	spec.Family = family.ZICP
	spec.FixedEffects = []string{"group", "batch"}

	var first []result.Row
	for _, w := range []int{1, 2, 7} {
		spec.Workers = w
		rep, err := quiet().Run(context.Background(), in, spec)
		require.NoError(t, err)
		if first == nil {
			first = rep.Table.Rows
			continue
		}
		if d := cmp.Diff(first, rep.Table.Rows, cmpopts.EquateNaNs()); d != "" {
			t.Fatalf("workers=%d changed the table (-1 worker +%d workers):\n%s", w, w, d)
		}
	}
}

func TestRun_DropsUnsharedAndMissingSamples(t *testing.T) {
	in := simulate(30, 5, 0, 11)
	// one metadata-only sample, one sample with a missing covariate
	in.Metadata.Samples = append(in.Metadata.Samples, "extra")
	in.Metadata.Cells[0] = append(in.Metadata.Cells[0], "A")
	in.Metadata.Cells[1] = append(in.Metadata.Cells[1], "b0")
	in.Metadata.Cells[0][3] = "NA"

	rep, err := quiet().Run(context.Background(), in, baseSpec())
	require.NoError(t, err)
	require.Equal(t, 1, rep.MissingDropped)
	require.Equal(t, 1, rep.Dropped.MetadataOnly)
	require.Equal(t, 1, rep.Dropped.FeatureOnly)
	require.Equal(t, 29, rep.Samples)
	require.Equal(t, 29, rep.Data.Features.NumSamples())
	require.NotContains(t, rep.Data.Metadata.Samples, "extra")
}

func TestRun_UnknownCovariateBeatsEmptyIntersection(t *testing.T) {
	in := simulate(20, 4, 0, 5)
	other := simulate(20, 4, 0, 5)
	for i := range other.Metadata.Samples {
		other.Metadata.Samples[i] = "X" + other.Metadata.Samples[i]
	}
	for _, spec := range []model.Spec{
		{Family: family.CPLM, FixedEffects: []string{"group", "age"}},
		{Family: family.CPLM, FixedEffects: []string{"group"}, RandomEffects: []string{"subject"}},
	} {
		_, err := quiet().Run(context.Background(), Input{Features: in.Features, Metadata: other.Metadata}, spec)
		require.ErrorIs(t, err, model.ErrFatalConfig)
		require.False(t, errors.Is(err, model.ErrEmptyIntersection))
	}
}

func TestRun_NullRandomEffectNeverReportsUnsettledFits(t *testing.T) {
	in := simulate(60, 40, 8, 13)
	for _, fam := range []family.Family{family.CPLM, family.ZICP, family.LM} {
		spec := baseSpec()
		spec.Family = fam
		spec.RandomEffects = []string{"batch"}
		rep, err := quiet().Run(context.Background(), in, spec)
		require.NoError(t, err)
		for _, r := range rep.Results {
			if r.Status != fitter.StatusOK {
				continue
			}
			require.True(t, r.Converged, "%s %s", fam, r.Feature)
			require.NotContains(t, r.Note, "did not stabilise", "%s %s", fam, r.Feature)
		}
		for _, r := range rep.Table.Rows[:8] {
			require.Equal(t, fitter.StatusOK, r.Status, "%s %s: %s", fam, r.Feature, r.Note)
		}
	}
}

func TestRun_FatalErrors(t *testing.T) {
	in := simulate(20, 4, 0, 5)

	spec := baseSpec()
	spec.FixedEffects = []string{"nope"}
	_, err := quiet().Run(context.Background(), in, spec)
	require.ErrorIs(t, err, model.ErrFatalConfig)

	spec = baseSpec()
	spec.FixedEffects = nil
	_, err = quiet().Run(context.Background(), in, spec)
	require.ErrorIs(t, err, model.ErrFatalConfig)

	other := simulate(20, 4, 0, 5)
	for i := range other.Metadata.Samples {
		other.Metadata.Samples[i] = "X" + other.Metadata.Samples[i]
	}
	_, err = quiet().Run(context.Background(), Input{Features: in.Features, Metadata: other.Metadata}, baseSpec())
	require.True(t, errors.Is(err, model.ErrEmptyIntersection), "got %v", err)

	empty := Input{
		Features: &table.FeatureTable{Samples: in.Features.Samples},
		Metadata: in.Metadata,
	}
	_, err = quiet().Run(context.Background(), empty, baseSpec())
	require.True(t, errors.Is(err, model.ErrMissingOffsetData), "got %v", err)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := quiet().Run(ctx, simulate(20, 10, 0, 1), baseSpec())
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, rep)
}
