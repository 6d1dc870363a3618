package pipeline

import (
	"context"
	"log/slog"
	"time"

	"dafit/internal/fitter"
)

// Observer receives per-feature callbacks from the workers. Calls arrive
// concurrently; implementations must be safe for that and fast.
type Observer interface {
	FitStarted(ctx context.Context, idx int, id string)
	FitFinished(ctx context.Context, r fitter.Result, d time.Duration)
}

// NoopObserver does nothing.
type NoopObserver struct{}

func (NoopObserver) FitStarted(context.Context, int, string)                    {}
func (NoopObserver) FitFinished(context.Context, fitter.Result, time.Duration) {}

type composite []Observer

// Observers fans events out to every non-nil observer in obs.
func Observers(obs ...Observer) Observer {
	var c composite
	for _, o := range obs {
		if o != nil {
			c = append(c, o)
		}
	}
	switch len(c) {
	case 0:
		return NoopObserver{}
	case 1:
		return c[0]
	}
	return c
}

func (c composite) FitStarted(ctx context.Context, idx int, id string) {
	for _, o := range c {
		o.FitStarted(ctx, idx, id)
	}
}

func (c composite) FitFinished(ctx context.Context, r fitter.Result, d time.Duration) {
	for _, o := range c {
		o.FitFinished(ctx, r, d)
	}
}

// LoggingObserver logs every finished fit at debug level and failures at
// warn level.
type LoggingObserver struct {
	Logger *slog.Logger
}

func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) FitStarted(ctx context.Context, idx int, id string) {}

func (o *LoggingObserver) FitFinished(ctx context.Context, r fitter.Result, d time.Duration) {
	attrs := []slog.Attr{
		slog.String("feature", r.Feature),
		slog.String("status", string(r.Status)),
		slog.String("model", r.ModelUsed.String()),
		slog.Duration("duration", d),
	}
	if r.Note != "" {
		attrs = append(attrs, slog.String("note", r.Note))
	}
	level := slog.LevelDebug
	if r.Status == fitter.StatusFailed {
		level = slog.LevelWarn
	}
	o.Logger.LogAttrs(ctx, level, "fit", attrs...)
}
