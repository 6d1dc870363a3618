package engine

import (
	"context"
	"log/slog"
	"time"

	"dafit/internal/align"
	"dafit/internal/design"
	"dafit/internal/fitter"
	"dafit/internal/glm"
	"dafit/internal/model"
	"dafit/internal/offset"
	"dafit/internal/pipeline"
	"dafit/internal/result"
	"dafit/internal/runutil"
	"dafit/internal/table"
)

// Input is the pair of parsed tables for one run. Neither is modified.
type Input struct {
	Features *table.FeatureTable
	Metadata *table.Metadata
}

// Report is everything a completed run produced.
type Report struct {
	Spec    model.Spec
	Table   *result.Table
	Results []fitter.Result
	Design  *design.Design
	Offset  offset.Resolution
	Data    align.Dataset // aligned inputs every fit saw

	Samples        int // samples used in every fit
	Dropped        align.Dropped
	MissingDropped int // samples dropped for missing covariate values
	Workers        int
	Elapsed        time.Duration
}

// Engine holds run-independent collaborators. The zero value is usable.
type Engine struct {
	Logger   *slog.Logger
	Observer pipeline.Observer
	Options  glm.Options
}

func New(logger *slog.Logger, obs pipeline.Observer) *Engine {
	return &Engine{Logger: logger, Observer: obs}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Run validates spec, prepares the shared inputs and fits every feature.
// Configuration errors are returned before any fit starts; after that the
// only error is cancellation of ctx. No partial report is returned.
func (e *Engine) Run(ctx context.Context, in Input, spec model.Spec) (*Report, error) {
	start := time.Now()
	log := e.logger()

	spec = spec.Clone()
	reg, err := spec.Validate()
	if err != nil {
		return nil, err
	}

	if err := checkColumns(in.Metadata, spec); err != nil {
		return nil, err
	}
	md, missing := in.Metadata.DropMissing(spec.Covariates())
	if missing > 0 {
		log.Warn("dropped samples with missing covariate values", "samples", missing)
	}

	ds, dropped, err := align.Align(in.Features, md)
	if err != nil {
		return nil, err
	}
	if dropped.Any() {
		log.Warn("samples not present in both tables were dropped",
			"feature_only", dropped.FeatureOnly, "metadata_only", dropped.MetadataOnly)
	}

	d, err := design.Build(ds.Metadata, spec)
	if err != nil {
		return nil, err
	}

	off, err := offset.Resolve(ds, spec)
	if err != nil {
		return nil, err
	}
	if off.ZeroLibraries > 0 {
		log.Warn("samples with zero library size use the smallest positive library size",
			"samples", off.ZeroLibraries)
	}

	f, err := fitter.New(spec, reg, d, off.Values, e.Options)
	if err != nil {
		return nil, err
	}

	workers, warns := runutil.ValidateParallelism(spec.Workers, ds.Features.NumFeatures(), spec.FitTimeout)
	for _, w := range warns {
		log.Warn(w)
	}
	log.Debug("fitting",
		"features", ds.Features.NumFeatures(), "samples", ds.NumSamples(),
		"terms", len(d.Terms), "family", spec.Family.String(), "chain", f.Chain(),
		"offset", string(off.Source), "workers", workers)

	results, err := pipeline.Run(ctx, pipeline.Config{
		Workers:   workers,
		Timeout:   spec.FitTimeout,
		Requested: spec.Family,
		Terms:     len(d.Terms),
	}, ds.Features, f, e.Observer)
	if err != nil {
		return nil, err
	}

	tab := result.Aggregate(results, d.Terms)
	if err := tab.Adjust(spec.CorrectionMethod()); err != nil {
		return nil, err
	}

	rep := &Report{
		Spec:           spec,
		Table:          tab,
		Results:        results,
		Design:         d,
		Offset:         off,
		Data:           ds,
		Samples:        ds.NumSamples(),
		Dropped:        dropped,
		MissingDropped: missing,
		Workers:        workers,
		Elapsed:        time.Since(start),
	}
	s := tab.Summary
	log.Info("run complete",
		"features", s.Features, "ok", s.OK, "fallback", s.Fallback,
		"failed", s.Failed, "skipped", s.Skipped, "elapsed", rep.Elapsed.Round(time.Millisecond))
	return rep, nil
}

// checkColumns rejects covariates absent from the metadata before any
// sample is dropped, so the error names the column rather than an empty
// intersection.
func checkColumns(md *table.Metadata, spec model.Spec) error {
	for _, name := range spec.FixedEffects {
		if !md.Has(name) {
			return model.Configf("fixed_effects", "covariate %q not found in metadata (columns: %v)", name, md.Columns)
		}
	}
	for _, name := range spec.RandomEffects {
		if !md.Has(name) {
			return model.Configf("random_effects", "covariate %q not found in metadata (columns: %v)", name, md.Columns)
		}
	}
	return nil
}
