// internal/appshell/shell.go
package appshell

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// RunFunc is an application entry point returning a process exit code.
type RunFunc func(ctx context.Context, argv []string, stdout, stderr io.Writer) int

// Main runs fn with a context cancelled on SIGINT/SIGTERM and exits with
// its code. A run interrupted by a signal never exits 0.
func Main(name string, fn RunFunc) {
	os.Exit(run(name, fn, os.Args[1:], os.Stdout, os.Stderr))
}

func run(name string, fn RunFunc, argv []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := fn(ctx, argv, stdout, stderr)
	if ctx.Err() != nil {
		_, _ = fmt.Fprintf(stderr, "%s: interrupted\n", name)
		if code == 0 {
			code = 130
		}
	}
	return code
}
