package output

import "testing"

func TestTSVHeader_Stable(t *testing.T) {
	const want = "feature\tmetadata\tvalue\tcoef\tstderr\tpval\tqval\tN\tN_not_zero\tmodel_used\tnote"
	if TSVHeader != want {
		t.Fatalf("TSVHeader changed:\n got:  %q\n want: %q", TSVHeader, want)
	}
}

func TestFormats_Stable(t *testing.T) {
	if FormatText != "text" || FormatJSON != "json" || FormatJSONL != "jsonl" {
		t.Fatal("format constants changed")
	}
}
