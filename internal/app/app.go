// internal/app/app.go
package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"dafit/internal/appcore"
	"dafit/internal/cli"
	"dafit/internal/cmdutil"
	"dafit/internal/version"
	"dafit/internal/writers"
)

// flushed maps the result of flushing buffered stdout to an exit code.
func flushed(outw *bufio.Writer, stderr io.Writer, code int) int {
	if e := outw.Flush(); writers.IsBrokenPipe(e) {
		return cmdutil.ExitOK
	} else if e != nil {
		_, _ = fmt.Fprintln(stderr, e)
		return cmdutil.ExitIO
	}
	return code
}

func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	outw := bufio.NewWriter(stdout)

	fs := cli.NewFlagSet("dafit")
	fs.SetOutput(io.Discard)

	if len(argv) == 0 {
		_, _ = cli.ParseArgs(fs, []string{"-h"})
		fs.SetOutput(outw)
		fs.Usage()
		return flushed(outw, stderr, cmdutil.ExitOK)
	}

	opts, err := cli.ParseArgs(fs, argv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(outw)
			fs.Usage()
			return flushed(outw, stderr, cmdutil.ExitOK)
		}
		_, _ = fmt.Fprintln(stderr, "error:", err)
		_, _ = fmt.Fprintln(stderr, "run 'dafit -h' for usage")
		return cmdutil.ExitUsage
	}

	if opts.Version {
		_, _ = fmt.Fprintf(outw, "dafit version %s\n", version.Version)
		return flushed(outw, stderr, cmdutil.ExitOK)
	}

	logger := cmdutil.NewLogger(stderr, opts.Quiet, opts.Verbose)
	return appcore.Run(parent, stdout, logger, appcore.Options{
		FeaturesFile: opts.FeaturesFile,
		MetadataFile: opts.MetadataFile,
		Orientation:  opts.Orientation,
		Spec:         opts.Spec,
		Format:       opts.Output,
		Header:       opts.Header,
		Unsorted:     opts.Unsorted,
		SQLite:       opts.SQLite,
		MetricsFile:  opts.MetricsFile,
		Volcano:      opts.Volcano,
		Alpha:        opts.Alpha,
	})
}

func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}
