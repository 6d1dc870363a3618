// Package metrics exposes fit counters and durations as Prometheus metrics.
// A Metrics value is a pipeline.Observer; after the run its registry can be
// written to a node-exporter textfile.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dafit/internal/fitter"
	"dafit/internal/result"
)

const namespace = "dafit"

type Metrics struct {
	reg *prometheus.Registry

	fits     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	features *prometheus.GaugeVec
	elapsed  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		fits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fits_total",
			Help:      "Per-feature fits by outcome and model family used.",
		}, []string{"status", "model"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_duration_seconds",
			Help:      "Wall time of one feature fit, fallbacks included.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"status"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fits_in_flight",
			Help:      "Feature fits currently running.",
		}),
		features: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_features",
			Help:      "Features in the last run by outcome.",
		}, []string{"outcome"}),
		elapsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
	}
	m.reg.MustRegister(m.fits, m.duration, m.inflight, m.features, m.elapsed)
	return m
}

// Registry is the private registry holding every dafit metric.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) FitStarted(context.Context, int, string) { m.inflight.Inc() }

func (m *Metrics) FitFinished(_ context.Context, r fitter.Result, d time.Duration) {
	m.inflight.Dec()
	model := "none"
	if r.ModelUsed.Valid() {
		model = r.ModelUsed.String()
	}
	m.fits.WithLabelValues(string(r.Status), model).Inc()
	m.duration.WithLabelValues(string(r.Status)).Observe(d.Seconds())
}

// ObserveRun records the run-level summary.
func (m *Metrics) ObserveRun(s result.Summary, elapsed time.Duration) {
	m.features.WithLabelValues("ok").Set(float64(s.OK))
	m.features.WithLabelValues("failed").Set(float64(s.Failed))
	m.features.WithLabelValues("skipped").Set(float64(s.Skipped))
	m.features.WithLabelValues("fallback").Set(float64(s.Fallback))
	m.elapsed.Set(elapsed.Seconds())
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
