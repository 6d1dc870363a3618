// Package align reconciles a feature table and a metadata table to one
// shared, ordered set of samples.
package align

import (
	"dafit/internal/model"
	"dafit/internal/table"
)

// Dataset is a feature table and metadata table with identical sample order.
type Dataset struct {
	Features *table.FeatureTable
	Metadata *table.Metadata
}

// NumSamples is the aligned sample count.
func (d Dataset) NumSamples() int { return len(d.Metadata.Samples) }

// Dropped counts samples present in only one input.
type Dropped struct {
	FeatureOnly  int // in the feature table, absent from metadata
	MetadataOnly int // in metadata, absent from the feature table
}

// Any reports whether anything was dropped.
func (d Dropped) Any() bool { return d.FeatureOnly > 0 || d.MetadataOnly > 0 }

// Align restricts both tables to their shared samples, in metadata order.
// It returns model.ErrEmptyIntersection when nothing is shared.
func Align(ft *table.FeatureTable, md *table.Metadata) (Dataset, Dropped, error) {
	pos := make(map[string]int, len(ft.Samples))
	for i, s := range ft.Samples {
		pos[s] = i
	}

	var fIdx, mIdx []int
	for mi, s := range md.Samples {
		if fi, ok := pos[s]; ok {
			fIdx = append(fIdx, fi)
			mIdx = append(mIdx, mi)
		}
	}
	dropped := Dropped{
		FeatureOnly:  len(ft.Samples) - len(fIdx),
		MetadataOnly: len(md.Samples) - len(mIdx),
	}
	if len(fIdx) == 0 {
		return Dataset{}, dropped, model.ErrEmptyIntersection
	}
	return Dataset{
		Features: ft.SelectSamples(fIdx),
		Metadata: md.SelectSamples(mIdx),
	}, dropped, nil
}
