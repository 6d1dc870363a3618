package align

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"dafit/internal/model"
	"dafit/internal/table"
)

func features(samples ...string) *table.FeatureTable {
	ft := &table.FeatureTable{Samples: samples, Features: []string{"f1"}}
	col := make([]float64, len(samples))
	for i := range col {
		col[i] = float64(i + 1)
	}
	ft.Values = [][]float64{col}
	return ft
}

func metadata(samples ...string) *table.Metadata {
	col := make([]string, len(samples))
	for i, s := range samples {
		col[i] = "g_" + s
	}
	return &table.Metadata{Samples: samples, Columns: []string{"group"}, Cells: [][]string{col}}
}

func TestAlign_IntersectionInMetadataOrder(t *testing.T) {
	ft := features("a", "b", "c", "x")
	md := metadata("c", "a", "y", "b")

	ds, dropped, err := Align(ft, md)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, ds.Metadata.Samples)
	require.Equal(t, ds.Metadata.Samples, ds.Features.Samples)
	require.Equal(t, []float64{3, 1, 2}, ds.Features.Values[0])

	col, _ := ds.Metadata.Column("group")
	require.Equal(t, []string{"g_c", "g_a", "g_b"}, col)
	require.Equal(t, Dropped{FeatureOnly: 1, MetadataOnly: 1}, dropped)
	require.True(t, dropped.Any())
}

func TestAlign_Empty(t *testing.T) {
	_, _, err := Align(features("a"), metadata("b"))
	require.True(t, errors.Is(err, model.ErrEmptyIntersection))
}

func TestAlign_RandomizedOrderAndCount(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		var fs, ms []string
		want := 0
		for i := 0; i < 30; i++ {
			id := fmt.Sprintf("s%02d", i)
			inF, inM := rng.Intn(3) > 0, rng.Intn(3) > 0
			if inF {
				fs = append(fs, id)
			}
			if inM {
				ms = append(ms, id)
			}
			if inF && inM {
				want++
			}
		}
		rng.Shuffle(len(fs), func(i, j int) { fs[i], fs[j] = fs[j], fs[i] })
		rng.Shuffle(len(ms), func(i, j int) { ms[i], ms[j] = ms[j], ms[i] })

		ds, _, err := Align(features(fs...), metadata(ms...))
		if want == 0 {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, want, ds.NumSamples())
		require.Equal(t, ds.Metadata.Samples, ds.Features.Samples)
	}
}
