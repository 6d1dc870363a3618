package fitter

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"dafit/internal/design"
	"dafit/internal/family"
	"dafit/internal/glm"
	"dafit/internal/model"
	"dafit/internal/table"
)

// twelve samples, six per group
func groups() *table.Metadata {
	md := &table.Metadata{Columns: []string{"group"}, Cells: [][]string{nil}}
	for i := 0; i < 12; i++ {
		md.Samples = append(md.Samples, string(rune('a'+i)))
		g := "A"
		if i >= 6 {
			g = "B"
		}
		md.Cells[0] = append(md.Cells[0], g)
	}
	return md
}

func newFitter(t *testing.T, spec model.Spec) *Fitter {
	t.Helper()
	reg, err := spec.Validate()
	require.NoError(t, err)
	d, err := design.Build(groups(), spec)
	require.NoError(t, err)
	f, err := New(spec, reg, d, make([]float64, d.N), glm.Options{})
	require.NoError(t, err)
	return f
}

func spec(f family.Family) model.Spec {
	return model.Spec{Family: f, FixedEffects: []string{"group"}}
}

func counts() []float64 {
	return []float64{4, 6, 5, 3, 7, 5, 12, 15, 9, 14, 11, 13}
}

func TestFit_OK(t *testing.T) {
	f := newFitter(t, spec(family.CPLM))
	r := f.Fit(context.Background(), 3, "otu3", counts())

	require.Equal(t, StatusOK, r.Status)
	require.Equal(t, family.CPLM, r.ModelUsed)
	require.Equal(t, []family.Family{family.CPLM}, r.Attempts)
	require.True(t, r.Converged)
	require.Equal(t, 3, r.Index)
	require.Equal(t, "otu3", r.Feature)
	require.Equal(t, 12, r.N)
	require.Equal(t, 12, r.NNotZero)
	require.Len(t, r.Coef, 1)
	require.InDelta(t, math.Log(74.0/30.0), r.Coef[0], 1e-5)
	require.Less(t, r.PValue[0], 0.01)
	require.Empty(t, r.Note)
}

func TestFit_ConstantFeatureSkipped(t *testing.T) {
	f := newFitter(t, spec(family.ZICP))
	for _, v := range []float64{0, 3} {
		y := make([]float64, 12)
		for i := range y {
			y[i] = v
		}
		r := f.Fit(context.Background(), 0, "flat", y)
		require.Equal(t, StatusSkipped, r.Status)
		require.Equal(t, "zero variance", r.Note)
		require.Equal(t, family.None, r.ModelUsed)
		require.Empty(t, r.Attempts)
		require.True(t, math.IsNaN(r.PValue[0]))
	}
}

func TestFit_LowPrevalenceSkipped(t *testing.T) {
	s := spec(family.CPLM)
	s.MinPrevalence = 0.5
	s.MinAbundance = 1
	f := newFitter(t, s)

	r := f.Fit(context.Background(), 0, "rare", []float64{0, 0, 2, 0, 0, 1, 0, 3, 0, 0, 5, 0})
	require.Equal(t, StatusSkipped, r.Status)
	require.Equal(t, "low prevalence", r.Note)
	require.Equal(t, 4, r.NNotZero)

	r = f.Fit(context.Background(), 1, "common", counts())
	require.Equal(t, StatusOK, r.Status)
}

func TestFit_FallbackReportsFamilyUsed(t *testing.T) {
	f := newFitter(t, spec(family.ZACP))
	// Two positive observations cannot support the positive part of ZACP.
	y := []float64{0, 0, 0, 0, 0, 5, 0, 0, 0, 0, 0, 9}
	r := f.Fit(context.Background(), 0, "sparse", y)

	require.Equal(t, StatusOK, r.Status)
	require.Equal(t, family.ZACP, r.Requested)
	require.Equal(t, family.CPLM, r.ModelUsed)
	require.Equal(t, []family.Family{family.ZACP, family.CPLM}, r.Attempts)
	require.Contains(t, r.Note, "fallback from ZACP")
	require.Contains(t, r.Note, "sparse level group=A")
	require.Contains(t, r.Note, "sparse level group=B")
}

func TestFit_StandardizeKeepsEffect(t *testing.T) {
	plain := newFitter(t, spec(family.CPLM)).Fit(context.Background(), 0, "x", counts())
	s := spec(family.CPLM)
	s.Standardize = true
	scaled := newFitter(t, s).Fit(context.Background(), 0, "x", counts())

	require.Equal(t, StatusOK, scaled.Status)
	require.InDelta(t, plain.Coef[0], scaled.Coef[0], 1e-5)
}

type panicky struct{}

func (panicky) Fit(context.Context, glm.Problem) (glm.Estimate, error) { panic("boom") }

type stalled struct{}

func (stalled) Fit(context.Context, glm.Problem) (glm.Estimate, error) {
	return glm.Estimate{Coef: []float64{0, 0}, StdErr: []float64{1, 1}, PValue: []float64{1, 1}}, nil
}

func TestFit_ExhaustedChainFails(t *testing.T) {
	f := newFitter(t, spec(family.CPLM))
	f.caps[family.CPLM] = panicky{}
	f.caps[family.LM] = stalled{}

	r := f.Fit(context.Background(), 7, "bad", counts())
	require.Equal(t, StatusFailed, r.Status)
	require.False(t, r.Converged)
	require.Equal(t, family.None, r.ModelUsed)
	require.Equal(t, []family.Family{family.CPLM, family.LM}, r.Attempts)
	require.Contains(t, r.Note, "CPLM: panic: boom")
	require.Contains(t, r.Note, "LM: did not converge")
	require.True(t, math.IsNaN(r.Coef[0]))
}

// unsettled reports an estimate whose random-effect variance never settled.
type unsettled struct{}

func (unsettled) Fit(context.Context, glm.Problem) (glm.Estimate, error) {
	return glm.Estimate{
		Coef: []float64{1, 1}, StdErr: []float64{1, 1}, PValue: []float64{.5, .5},
		Note: "random-effect variance did not stabilise",
	}, nil
}

func TestFit_UnsettledVarianceFallsBack(t *testing.T) {
	f := newFitter(t, spec(family.CPLM))
	f.caps[family.CPLM] = unsettled{}

	r := f.Fit(context.Background(), 0, "otu", counts())
	require.Equal(t, StatusOK, r.Status)
	require.Equal(t, family.LM, r.ModelUsed)
	require.Equal(t, []family.Family{family.CPLM, family.LM}, r.Attempts)
	require.Contains(t, r.Note, "fallback from CPLM")
	require.NotContains(t, r.Note, "did not stabilise")

	f.caps[family.LM] = unsettled{}
	r = f.Fit(context.Background(), 0, "otu", counts())
	require.Equal(t, StatusFailed, r.Status)
	require.Contains(t, r.Note, "LM: did not converge (random-effect variance did not stabilise)")
}

func TestFit_CancelledContextFails(t *testing.T) {
	f := newFitter(t, spec(family.CPLM))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := f.Fit(ctx, 0, "x", counts())
	require.Equal(t, StatusFailed, r.Status)
	require.Contains(t, r.Note, "context canceled")
}

func TestFailed(t *testing.T) {
	r := Failed(2, "slow", family.ZICP, 3, "timed out")
	require.Equal(t, StatusFailed, r.Status)
	require.Equal(t, family.ZICP, r.Requested)
	require.Len(t, r.PValue, 3)
	require.True(t, math.IsNaN(r.StdErr[2]))
	require.Equal(t, "timed out", r.Note)
}
