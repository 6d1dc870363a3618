package padjust

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var approx = cmp.Options{cmpopts.EquateApprox(0, 1e-12), cmpopts.EquateNaNs()}

func TestBH_KnownScenario(t *testing.T) {
	got := BH([]float64{0.01, 0.02, 0.03, 0.04, 0.50})
	want := []float64{0.05, 0.05, 0.05, 0.05, 0.50}
	if d := cmp.Diff(want, got, approx); d != "" {
		t.Fatalf("BH mismatch (-want +got):\n%s", d)
	}
}

func TestMethods_AgainstReferenceValues(t *testing.T) {
	p := []float64{0.04, 0.001, math.NaN(), 0.03, 0.2}
	nan := math.NaN()
	cases := map[string][]float64{
		"BH":         {0.16 / 3, 0.004, nan, 0.16 / 3, 0.2},
		"BY":         {0.16 / 3 * 25 / 12, 0.004 * 25 / 12, nan, 0.16 / 3 * 25 / 12, 0.2 * 25 / 12},
		"holm":       {0.09, 0.004, nan, 0.09, 0.2},
		"bonferroni": {0.16, 0.004, nan, 0.12, 0.8},
	}
	for method, want := range cases {
		got, err := Adjust(method, p)
		require.NoError(t, err)
		if d := cmp.Diff(want, got, approx); d != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", method, d)
		}
	}
	_, err := Adjust("fdr", p)
	require.Error(t, err)
}

func TestBH_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(200)
		p := make([]float64, n)
		for i := range p {
			p[i] = rng.Float64()
			if rng.Intn(10) == 0 {
				p[i] = math.NaN()
			}
		}
		orig := append([]float64(nil), p...)
		q := BH(p)
		require.Len(t, q, n)
		if d := cmp.Diff(orig, p, cmpopts.EquateNaNs()); d != "" {
			t.Fatalf("input modified:\n%s", d)
		}

		idx := valid(p)
		sort.Slice(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })
		prev := -1.0
		for _, i := range idx {
			require.GreaterOrEqual(t, q[i], 0.0)
			require.LessOrEqual(t, q[i], 1.0)
			require.GreaterOrEqual(t, q[i], p[i])
			require.GreaterOrEqual(t, q[i], prev, "q must be monotone in sorted p")
			prev = q[i]
		}
		for i, v := range p {
			if math.IsNaN(v) {
				require.True(t, math.IsNaN(q[i]))
			}
		}
	}
}

func TestEmptyAndAllNaN(t *testing.T) {
	require.Empty(t, BH(nil))
	q := Holm([]float64{math.NaN(), math.NaN()})
	require.True(t, math.IsNaN(q[0]) && math.IsNaN(q[1]))
}
