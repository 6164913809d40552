package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/batchmut/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string

	tickDuration           prometheus.Histogram
	registeredTransformers prometheus.Gauge
	inFlightChunks         prometheus.Gauge
	pendingResults         prometheus.Gauge

	dispatches      *prometheus.CounterVec
	chunksIssued    *prometheus.CounterVec
	chunksResolved  *prometheus.CounterVec
	resolveLatency  prometheus.Histogram
	discards        *prometheus.CounterVec
	applyDuration   prometheus.Histogram
	mutationsTotal  prometheus.Counter
	lockContentions *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "batchmut" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "batchmut"
	}

	c := &PrometheusCollector{reg: reg, namespace: namespace}

	c.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Time taken by one scheduler tick.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
	c.registeredTransformers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "registered_transformers",
		Help:      "Current number of registered transformers.",
	})
	c.inFlightChunks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "in_flight_chunks",
		Help:      "Dispatched chunks awaiting release or abandon.",
	})
	c.pendingResults = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_results",
		Help:      "Queued results and abandons awaiting the next drain.",
	})
	c.dispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatches_total",
		Help:      "Transformer dispatches by transformer name.",
	}, []string{"transformer"})
	c.chunksIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_issued_total",
		Help:      "Chunks issued to transformers by transformer name.",
	}, []string{"transformer"})
	c.chunksResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_resolved_total",
		Help:      "Resolved chunks by transformer and outcome.",
	}, []string{"transformer", "outcome"})
	c.resolveLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "chunk_resolve_latency_seconds",
		Help:      "Seconds between handle issue and chunk resolution.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
	})
	c.discards = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "results_discarded_total",
		Help:      "Results and abandon keys discarded instead of applied.",
	}, []string{"reason"})
	c.applyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "apply_duration_seconds",
		Help:      "Time taken to apply one mutation result.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
	c.mutationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_applied_total",
		Help:      "Instance mutations applied to containers.",
	})
	c.lockContentions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lock_contentions_total",
		Help:      "Dispatches skipped because the target container was locked.",
	}, []string{"transformer"})

	reg.MustRegister(
		c.tickDuration,
		c.registeredTransformers,
		c.inFlightChunks,
		c.pendingResults,
		c.dispatches,
		c.chunksIssued,
		c.chunksResolved,
		c.resolveLatency,
		c.discards,
		c.applyDuration,
		c.mutationsTotal,
		c.lockContentions,
	)

	return c
}

// RecordTickDuration records the time taken by one scheduler tick.
func (c *PrometheusCollector) RecordTickDuration(duration float64) {
	c.tickDuration.Observe(duration)
}

// SetRegisteredTransformers sets the current registry size.
func (c *PrometheusCollector) SetRegisteredTransformers(count int) {
	c.registeredTransformers.Set(float64(count))
}

// SetInFlightChunks sets the number of dispatched-but-unresolved chunks.
func (c *PrometheusCollector) SetInFlightChunks(count int) {
	c.inFlightChunks.Set(float64(count))
}

// SetPendingResults sets the number of queued results awaiting drain.
func (c *PrometheusCollector) SetPendingResults(count int) {
	c.pendingResults.Set(float64(count))
}

// RecordDispatch records one transformer dispatch.
func (c *PrometheusCollector) RecordDispatch(transformer string, chunks int) {
	c.dispatches.WithLabelValues(transformer).Inc()
	c.chunksIssued.WithLabelValues(transformer).Add(float64(chunks))
}

// RecordChunkResolved records the resolution of one in-flight chunk.
func (c *PrometheusCollector) RecordChunkResolved(transformer string, abandoned bool, duration float64) {
	outcome := "released"
	if abandoned {
		outcome = "abandoned"
	}
	c.chunksResolved.WithLabelValues(transformer, outcome).Inc()
	c.resolveLatency.Observe(duration)
}

// RecordResultDiscarded records a result that could not be matched or applied.
func (c *PrometheusCollector) RecordResultDiscarded(reason string) {
	c.discards.WithLabelValues(reason).Inc()
}

// RecordApplyDuration records the time taken to apply one mutation result.
func (c *PrometheusCollector) RecordApplyDuration(duration float64) {
	c.applyDuration.Observe(duration)
}

// RecordMutationsApplied records how many instance mutations one result applied.
func (c *PrometheusCollector) RecordMutationsApplied(count int) {
	c.mutationsTotal.Add(float64(count))
}

// RecordLockContention records a dispatch skipped due to a locked container.
func (c *PrometheusCollector) RecordLockContention(transformer string) {
	c.lockContentions.WithLabelValues(transformer).Inc()
}
