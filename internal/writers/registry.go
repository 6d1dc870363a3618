// internal/writers/registry.go
package writers

import (
	"fmt"
	"io"
	"sort"

	"dafit/internal/result"
	"dafit/pkg/api"
)

// Options configures a result writer.
type Options struct {
	Format string
	Header bool      // text only
	Run    api.RunV1 // json only: the run summary document header
}

// WriteFunc consumes every row from in and serializes it to out. It must
// drain in even after an error.
type WriteFunc func(out io.Writer, in <-chan result.Row, o Options) error

// ResultWriters maps format → handler. Handlers register in init() blocks.
var ResultWriters = map[string]WriteFunc{}

// RegisterResult adds or replaces (last wins) the handler for format.
func RegisterResult(format string, fn WriteFunc) { ResultWriters[format] = fn }

// Formats lists the registered formats, sorted.
func Formats() []string {
	out := make([]string, 0, len(ResultWriters))
	for f := range ResultWriters {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func drain(in <-chan result.Row) {
	for range in {
	}
}

// StartResultWriter spins up a writer goroutine. Send rows on the returned
// channel, close it, then receive the final error.
func StartResultWriter(out io.Writer, o Options, bufSize int) (chan<- result.Row, <-chan error) {
	if bufSize <= 0 {
		bufSize = 64
	}
	in := make(chan result.Row, bufSize)
	errCh := make(chan error, 1)
	go func() {
		fn, ok := ResultWriters[o.Format]
		if !ok {
			drain(in)
			errCh <- fmt.Errorf("unknown result format %q (no writer registered)", o.Format)
			return
		}
		errCh <- fn(out, in, o)
	}()
	return in, errCh
}
