package runutil

import (
	"fmt"
	"runtime"
	"time"
)

// EffectiveWorkers resolves the worker count: <=0 means one per CPU, and
// there is never more than one worker per feature.
func EffectiveWorkers(requested, features int) int {
	w := requested
	if w <= 0 {
		w = runtime.NumCPU()
	}
	if features > 0 && w > features {
		w = features
	}
	if w < 1 {
		w = 1
	}
	return w
}

// ValidateParallelism returns the worker count to use and warnings about
// settings that will be adjusted or look unintended.
func ValidateParallelism(requested, features int, timeout time.Duration) (int, []string) {
	var warns []string
	w := EffectiveWorkers(requested, features)
	if requested > 0 && w < requested {
		warns = append(warns, fmt.Sprintf("warning: --workers %d exceeds the %d features to fit; using %d", requested, features, w))
	}
	if timeout > 0 && timeout < time.Millisecond {
		warns = append(warns, fmt.Sprintf("warning: --fit-timeout %s is below 1ms; most fits will time out", timeout))
	}
	return w, warns
}
