// internal/cmdutil/exit.go
package cmdutil

import (
	"context"
	"errors"

	"dafit/internal/model"
	"dafit/internal/writers"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitUsage     = 2 // bad flags, bad config, unusable inputs
	ExitIO        = 3
	ExitCancelled = 130
)

// ExitCode maps a run error to a process exit code. A closed stdout pipe
// is not an error.
func ExitCode(err error) int {
	switch {
	case err == nil, writers.IsBrokenPipe(err):
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.Is(err, model.ErrFatalConfig),
		errors.Is(err, model.ErrEmptyIntersection),
		errors.Is(err, model.ErrMissingOffsetData):
		return ExitUsage
	}
	return ExitIO
}
