// Package metrics registers the Prometheus instrumentation the pipeline
// exposes: per-stage durations, per-invoker outcomes, and cache/health
// gauges, namespaced "council" in the style of the teacher's background
// metrics collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "council"

// Metrics bundles every collector the pipeline updates during a run.
type Metrics struct {
	StageDuration   *prometheus.HistogramVec
	InvokerCalls    *prometheus.CounterVec
	PipelineResults *prometheus.CounterVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	BackendsOnline  prometheus.Gauge
}

// New registers and returns the pipeline's collector set against reg. Pass
// prometheus.DefaultRegisterer for process-global metrics, or a fresh
// *prometheus.Registry in tests to avoid collisions across cases.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),

		InvokerCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invoker",
			Name:      "calls_total",
			Help:      "Invoker calls by model label and outcome.",
		}, []string{"model", "outcome"}),

		PipelineResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "results_total",
			Help:      "Pipeline runs by terminal outcome.",
		}, []string{"outcome"}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Response cache hits.",
		}),

		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Response cache misses.",
		}),

		BackendsOnline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "backends_online",
			Help:      "Number of backends reporting online at the last health check.",
		}),
	}
}
