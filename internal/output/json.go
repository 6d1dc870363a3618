// internal/output/json.go
package output

import (
	"encoding/json"
	"io"
	"math"

	"dafit/internal/engine"
	"dafit/internal/result"
	"dafit/pkg/api"
)

func optFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ToAPIResult converts a result row to the stable wire schema (v1).
func ToAPIResult(r result.Row) api.ResultV1 {
	v := api.ResultV1{
		Feature:  r.Feature,
		Metadata: r.Metadata,
		Value:    r.Value,
		Coef:     optFloat(r.Coef),
		StdErr:   optFloat(r.StdErr),
		PValue:   optFloat(r.PValue),
		QValue:   optFloat(r.QValue),
		N:        r.N,
		NNotZero: r.NNotZero,
		Status:   string(r.Status),
		Note:     r.Note,
	}
	if r.ModelUsed.Valid() {
		v.ModelUsed = r.ModelUsed.String()
	}
	return v
}

// ToAPIRun summarizes rep; runID may be empty.
func ToAPIRun(rep *engine.Report, runID string) api.RunV1 {
	s := rep.Table.Summary
	return api.RunV1{
		RunID:         runID,
		BaseModel:     rep.Spec.Family.String(),
		FixedEffects:  append([]string(nil), rep.Spec.FixedEffects...),
		RandomEffects: append([]string(nil), rep.Spec.RandomEffects...),
		Correction:    rep.Table.Correction,
		OffsetSource:  string(rep.Offset.Source),
		Samples:       rep.Samples,
		Features:      s.Features,
		OK:            s.OK,
		Failed:        s.Failed,
		Skipped:       s.Skipped,
		Fallback:      s.Fallback,
	}
}

// WriteJSON writes one indented v1 report document.
func WriteJSON(w io.Writer, run api.RunV1, rows []result.Row) error {
	doc := api.ReportV1{Run: run, Results: make([]api.ResultV1, 0, len(rows))}
	for _, r := range rows {
		doc.Results = append(doc.Results, ToAPIResult(r))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
