// internal/output/text.go
package output

import (
	"bufio"
	"io"

	"dafit/internal/result"
)

// WriteText prints the optional header and one TSV line per row.
func WriteText(w io.Writer, rows []result.Row, header bool) error {
	bw := bufio.NewWriter(w)
	if header {
		if _, err := bw.WriteString(TSVHeader + "\n"); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if _, err := bw.WriteString(FormatRowTSV(r) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// StreamText is WriteText for rows arriving on a channel. It drains in
// even after a write error so senders never block.
func StreamText(w io.Writer, in <-chan result.Row, header bool) error {
	bw := bufio.NewWriter(w)
	var err error
	if header {
		_, err = bw.WriteString(TSVHeader + "\n")
	}
	for r := range in {
		if err != nil {
			continue
		}
		_, err = bw.WriteString(FormatRowTSV(r) + "\n")
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}
