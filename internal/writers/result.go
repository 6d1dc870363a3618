package writers

import (
	"io"

	"dafit/internal/output"
	"dafit/internal/result"
)

func init() {
	RegisterResult(output.FormatText, func(out io.Writer, in <-chan result.Row, o Options) error {
		return output.StreamText(out, in, o.Header)
	})
	RegisterResult(output.FormatJSON, func(out io.Writer, in <-chan result.Row, o Options) error {
		var buf []result.Row
		for r := range in {
			buf = append(buf, r)
		}
		return output.WriteJSON(out, o.Run, buf)
	})
	RegisterResult(output.FormatJSONL, writeJSONL)
}
