package table

import (
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Orientation tells which axis of a feature file holds the samples.
type Orientation string

const (
	OrientAuto           Orientation = "auto"
	OrientSamplesRows    Orientation = "samples-rows"
	OrientSamplesColumns Orientation = "samples-columns"
)

// ParseOrientation validates an orientation name ("" means auto).
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(s); o {
	case "", OrientAuto:
		return OrientAuto, nil
	case OrientSamplesRows, OrientSamplesColumns:
		return o, nil
	}
	return "", fmt.Errorf("invalid orientation %q (want auto | samples-rows | samples-columns)", s)
}

// FeatureTable holds non-negative abundances, stored feature-major so a
// worker can take one feature's response without a copy of the whole matrix.
type FeatureTable struct {
	Samples  []string
	Features []string
	Values   [][]float64 // [feature][sample]
}

// NumSamples and NumFeatures report the table shape.
func (t *FeatureTable) NumSamples() int  { return len(t.Samples) }
func (t *FeatureTable) NumFeatures() int { return len(t.Features) }

// FeatureID is the identifier of feature f.
func (t *FeatureTable) FeatureID(f int) string { return t.Features[f] }

// Response returns a private copy of one feature's values.
func (t *FeatureTable) Response(f int) []float64 { return slices.Clone(t.Values[f]) }

// LibrarySizes returns the per-sample total over all features.
func (t *FeatureTable) LibrarySizes() []float64 {
	out := make([]float64, len(t.Samples))
	for _, col := range t.Values {
		for s, v := range col {
			out[s] += v
		}
	}
	return out
}

// SelectSamples returns a table restricted to the given sample indices,
// in that order.
func (t *FeatureTable) SelectSamples(idx []int) *FeatureTable {
	out := &FeatureTable{
		Samples:  make([]string, len(idx)),
		Features: slices.Clone(t.Features),
		Values:   make([][]float64, len(t.Features)),
	}
	for i, s := range idx {
		out.Samples[i] = t.Samples[s]
	}
	for f, col := range t.Values {
		nc := make([]float64, len(idx))
		for i, s := range idx {
			nc[i] = col[s]
		}
		out.Values[f] = nc
	}
	return out
}

// Features interprets raw as a feature table. With OrientAuto, the axis
// sharing more identifiers with samples is taken as the sample axis; ties
// default to samples in rows.
func (raw *Raw) Features(o Orientation, samples []string) (*FeatureTable, error) {
	if o == OrientAuto || o == "" {
		o = OrientSamplesRows
		if overlap(raw.Cols, samples) > overlap(raw.Rows, samples) {
			o = OrientSamplesColumns
		}
	}

	var sampleIDs, featureIDs []string
	at := func(s, f int) string { return raw.Cells[s][f] }
	switch o {
	case OrientSamplesRows:
		sampleIDs, featureIDs = raw.Rows, raw.Cols
	case OrientSamplesColumns:
		sampleIDs, featureIDs = raw.Cols, raw.Rows
		at = func(s, f int) string { return raw.Cells[f][s] }
	default:
		return nil, fmt.Errorf("invalid orientation %q", o)
	}

	t := &FeatureTable{
		Samples:  slices.Clone(sampleIDs),
		Features: slices.Clone(featureIDs),
		Values:   make([][]float64, len(featureIDs)),
	}
	for f := range featureIDs {
		col := make([]float64, len(sampleIDs))
		for s := range sampleIDs {
			cell := at(s, f)
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%s: feature %q sample %q: not a finite number: %q", raw.Source, featureIDs[f], sampleIDs[s], cell)
			}
			if v < 0 {
				return nil, fmt.Errorf("%s: feature %q sample %q: negative abundance %g", raw.Source, featureIDs[f], sampleIDs[s], v)
			}
			col[s] = v
		}
		t.Values[f] = col
	}
	return t, nil
}

func overlap(ids, samples []string) int {
	set := make(map[string]struct{}, len(samples))
	for _, s := range samples {
		set[s] = struct{}{}
	}
	n := 0
	for _, id := range ids {
		if _, ok := set[id]; ok {
			n++
		}
	}
	return n
}
