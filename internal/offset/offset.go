// Package offset resolves the per-sample normalization term added to every
// model's linear predictor.
package offset

import (
	"fmt"
	"math"

	"dafit/internal/align"
	"dafit/internal/model"
)

// Source records where the offsets came from.
type Source string

const (
	SourceNone        Source = "none"
	SourceColumn      Source = "column"
	SourceLibrarySize Source = "library_size"
)

// Resolution is the resolved offset vector, aligned to the dataset samples.
type Resolution struct {
	Values []float64
	Source Source
	// ZeroLibraries counts samples whose library size was zero and were
	// given the smallest positive library size instead.
	ZeroLibraries int
}

// Resolve picks the offset for ds according to spec:
//   - adjust_offset off: zeros
//   - normalization column present: its values, used as given (link scale)
//   - otherwise: log of per-sample library size
func Resolve(ds align.Dataset, spec model.Spec) (Resolution, error) {
	n := ds.NumSamples()
	if !spec.AdjustOffset {
		return Resolution{Values: make([]float64, n), Source: SourceNone}, nil
	}

	name := spec.OffsetColumnName()
	if ds.Metadata.Has(name) {
		vals, ok := ds.Metadata.Numeric(name)
		if !ok {
			return Resolution{}, model.Configf("offset_column", "column %q is not numeric", name)
		}
		for i, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Resolution{}, model.Configf("offset_column", "column %q has no usable value for sample %q", name, ds.Metadata.Samples[i])
			}
		}
		return Resolution{Values: vals, Source: SourceColumn}, nil
	}

	if ds.Features == nil || ds.Features.NumFeatures() == 0 || n == 0 {
		return Resolution{}, fmt.Errorf("%w: feature table is empty", model.ErrMissingOffsetData)
	}
	lib := ds.Features.LibrarySizes()
	minPos := math.Inf(1)
	for _, v := range lib {
		if v > 0 && v < minPos {
			minPos = v
		}
	}
	if math.IsInf(minPos, 1) {
		return Resolution{}, fmt.Errorf("%w: every sample has a zero library size", model.ErrMissingOffsetData)
	}
	res := Resolution{Values: make([]float64, n), Source: SourceLibrarySize}
	for i, v := range lib {
		if v <= 0 {
			v = minPos
			res.ZeroLibraries++
		}
		res.Values[i] = math.Log(v)
	}
	return res, nil
}
