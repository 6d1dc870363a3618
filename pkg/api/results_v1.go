// pkg/api/results_v1.go
package api

// ResultV1 is the stable JSON/JSONL schema for one (feature, term) row.
// Keep fields, names, and types stable. Add new fields only with ",omitempty".
// Missing statistics are null.
type ResultV1 struct {
	Feature   string   `json:"feature"`
	Metadata  string   `json:"metadata"`
	Value     string   `json:"value"`
	Coef      *float64 `json:"coef"`
	StdErr    *float64 `json:"stderr"`
	PValue    *float64 `json:"pval"`
	QValue    *float64 `json:"qval"`
	N         int      `json:"N"`
	NNotZero  int      `json:"N_not_zero"`
	ModelUsed string   `json:"model_used,omitempty"` // "CPLM" | "ZICP" | "ZACP" | "LM"
	Status    string   `json:"status"`               // "ok" | "failed" | "skipped"
	Note      string   `json:"note,omitempty"`
}

// RunV1 summarizes one analysis run.
type RunV1 struct {
	RunID         string   `json:"run_id,omitempty"`
	BaseModel     string   `json:"base_model"`
	FixedEffects  []string `json:"fixed_effects"`
	RandomEffects []string `json:"random_effects,omitempty"`
	Correction    string   `json:"correction"`
	OffsetSource  string   `json:"offset_source"`
	Samples       int      `json:"samples"`
	Features      int      `json:"features"`
	OK            int      `json:"ok"`
	Failed        int      `json:"failed"`
	Skipped       int      `json:"skipped"`
	Fallback      int      `json:"fallback"`
}

// ReportV1 is the single-document JSON output.
type ReportV1 struct {
	Run     RunV1      `json:"run"`
	Results []ResultV1 `json:"results"`
}
