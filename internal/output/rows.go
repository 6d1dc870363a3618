package output

import (
	"math"
	"strconv"
	"strings"

	"dafit/internal/family"
	"dafit/internal/result"
)

// FormatFloat prints v with the shortest exact representation, or NA.
func FormatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NA
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ModelName is the model_used cell: the family name, or NA when the
// feature was not fitted.
func ModelName(f family.Family) string {
	if f == family.None {
		return NA
	}
	return f.String()
}

// FormatRowTSV returns the TSVHeader columns for r (no trailing newline).
func FormatRowTSV(r result.Row) string {
	var b strings.Builder
	cols := [...]string{
		r.Feature, r.Metadata, r.Value,
		FormatFloat(r.Coef), FormatFloat(r.StdErr), FormatFloat(r.PValue), FormatFloat(r.QValue),
		strconv.Itoa(r.N), strconv.Itoa(r.NNotZero),
		ModelName(r.ModelUsed), sanitize(r.Note),
	}
	for i, c := range cols {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(c)
	}
	return b.String()
}

// sanitize keeps free text on one TSV cell.
func sanitize(s string) string {
	if !strings.ContainsAny(s, "\t\r\n") {
		return s
	}
	return strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(s)
}
