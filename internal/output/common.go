package output

// TSVHeader is the canonical header row for text/TSV outputs.
// Keep this as the single source of truth; all writers should use it.
const TSVHeader = "feature\tmetadata\tvalue\tcoef\tstderr\tpval\tqval\tN\tN_not_zero\tmodel_used\tnote"

// Output formats accepted by --output.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// NA is printed for missing values in text output.
const NA = "NA"
