// Package metrics records optimization runs as Prometheus metrics and writes
// them in the node_exporter textfile format for batch jobs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/backmassage/gltfpress/internal/failure"
	"github.com/backmassage/gltfpress/internal/stats"
)

const namespace = "gltfpress"

// Collector holds the run metrics on its own registry. It implements
// pipeline.Observer.
type Collector struct {
	reg *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	FailuresTotal    *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	BytesSavedTotal  prometheus.Counter
	CompressionRatio prometheus.Histogram
	InputBytesTotal  prometheus.Counter
	OutputBytesTotal prometheus.Counter
}

// New creates a Collector with a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		reg: reg,
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Optimization runs by result",
			},
			[]string{"result"},
		),
		FailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Failed optimization runs by failure kind",
			},
			[]string{"kind"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock time of successful runs",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		BytesSavedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_saved_total",
				Help:      "Bytes saved across successful runs (negative savings are not counted)",
			},
		),
		CompressionRatio: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compression_ratio",
				Help:      "Output size over input size of successful runs",
				Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 1.5},
			},
		),
		InputBytesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "input_bytes_total",
				Help:      "Input bytes of successful runs",
			},
		),
		OutputBytesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "output_bytes_total",
				Help:      "Output bytes of successful runs",
			},
		),
	}
}

// Registry exposes the underlying registry for gathering.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// ObserveRun records one finished run.
func (c *Collector) ObserveRun(rec stats.RunStatistics, err error) {
	if err != nil {
		c.RunsTotal.WithLabelValues("failure").Inc()
		c.FailuresTotal.WithLabelValues(failure.KindOf(err).String()).Inc()
		return
	}
	c.RunsTotal.WithLabelValues("success").Inc()
	c.RunDuration.Observe(rec.Elapsed.Seconds())
	c.InputBytesTotal.Add(float64(rec.InputSizeBytes))
	c.OutputBytesTotal.Add(float64(rec.OutputSizeBytes))
	if saved := rec.BytesSaved(); saved > 0 {
		c.BytesSavedTotal.Add(float64(saved))
	}
	if ratio := rec.CompressionRatio(); ratio > 0 {
		c.CompressionRatio.Observe(ratio)
	}
}

// WriteTextfile writes all metrics to path atomically in the text
// exposition format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.reg)
}
