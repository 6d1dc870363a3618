// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dafit/internal/family"
	"dafit/internal/fitter"
)

// Config controls the fitting pipeline.
type Config struct {
	Workers   int           // number of worker goroutines (>=1)
	Timeout   time.Duration // per-feature fit deadline; 0 disables
	Requested family.Family // reported on results the pipeline synthesizes
	Terms     int           // statistics per result, for synthesized results
}

// Run fits every feature of src and returns the results indexed by feature.
// A feature that panics or exceeds cfg.Timeout becomes a failed result; the
// run as a whole fails only when ctx is cancelled.
func Run(
	ctx context.Context,
	cfg Config,
	src Source,
	fit FeatureFitter,
	obs Observer,
) ([]fitter.Result, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if obs == nil {
		obs = NoopObserver{}
	}
	n := src.NumFeatures()
	out := make([]fitter.Result, n)

	type job struct {
		idx int
		id  string
	}
	jobs := make(chan job, cfg.Workers*2)
	results := make(chan fitter.Result, cfg.Workers*2)

	// Workers
	var wg sync.WaitGroup
	wg.Add(cfg.Workers)
	for w := 0; w < cfg.Workers; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-jobs:
					if !ok {
						return
					}
					obs.FitStarted(ctx, j.idx, j.id)
					start := time.Now()
					r := fitOne(ctx, cfg, fit, j.idx, j.id, src.Response(j.idx))
					obs.FitFinished(ctx, r, time.Since(start))

					select {
					case results <- r:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	// Collector: results land at their feature index.
	var cwg sync.WaitGroup
	cwg.Add(1)
	go func() {
		defer cwg.Done()
		for r := range results {
			out[r.Index] = r
		}
	}()

	// Feed work
feed:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- job{idx: i, id: src.FeatureID(i)}:
		}
	}

	close(jobs)
	wg.Wait()
	close(results)
	cwg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return out, nil
}

// fitOne applies the per-feature deadline and panic boundary.
func fitOne(ctx context.Context, cfg Config, fit FeatureFitter, idx int, id string, y []float64) (r fitter.Result) {
	defer func() {
		if p := recover(); p != nil {
			r = fitter.Failed(idx, id, cfg.Requested, cfg.Terms, fmt.Sprintf("panic: %v", p))
		}
	}()
	if cfg.Timeout <= 0 {
		return fit.Fit(ctx, idx, id, y)
	}

	fctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	done := make(chan fitter.Result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fitter.Failed(idx, id, cfg.Requested, cfg.Terms, fmt.Sprintf("panic: %v", p))
			}
		}()
		done <- fit.Fit(fctx, idx, id, y)
	}()
	select {
	case r = <-done:
	case <-fctx.Done():
		// The fit goroutine sees fctx and exits on its own.
		r = fitter.Failed(idx, id, cfg.Requested, cfg.Terms, fmt.Sprintf("timed out after %s", cfg.Timeout))
	}
	return r
}
