package runutil

import (
	"runtime"
	"testing"
	"time"
)

func TestEffectiveWorkers(t *testing.T) {
	if got := EffectiveWorkers(4, 100); got != 4 {
		t.Fatalf("want 4, got %d", got)
	}
	if got := EffectiveWorkers(0, 1<<20); got != runtime.NumCPU() {
		t.Fatalf("0 → NumCPU, got %d", got)
	}
	if got := EffectiveWorkers(8, 3); got != 3 {
		t.Fatalf("capped by features → want 3, got %d", got)
	}
	if got := EffectiveWorkers(-1, 0); got < 1 {
		t.Fatalf("never below 1, got %d", got)
	}
}

func TestValidateParallelism(t *testing.T) {
	w, warns := ValidateParallelism(2, 10, 0)
	if w != 2 || len(warns) != 0 {
		t.Fatalf("plain settings: got %d %v", w, warns)
	}
	w, warns = ValidateParallelism(16, 5, 0)
	if w != 5 || len(warns) != 1 {
		t.Fatalf("too many workers should warn: got %d %v", w, warns)
	}
	_, warns = ValidateParallelism(1, 5, time.Microsecond)
	if len(warns) != 1 {
		t.Fatalf("tiny timeout should warn: %v", warns)
	}
}
