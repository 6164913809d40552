package metrics

import "github.com/arloliu/batchmut/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	collector := metrics.NewNop()
//	sched, _ := batchmut.NewScheduler(&cfg, batchmut.WithMetrics(collector))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// SchedulerMetrics implementation

// RecordTickDuration discards the tick duration metric.
func (n *NopMetrics) RecordTickDuration(_ /* duration */ float64) {
	// No-op
}

// SetRegisteredTransformers discards the registry size metric.
func (n *NopMetrics) SetRegisteredTransformers(_ /* count */ int) {
	// No-op
}

// SetInFlightChunks discards the in-flight chunk gauge.
func (n *NopMetrics) SetInFlightChunks(_ /* count */ int) {
	// No-op
}

// SetPendingResults discards the pending result gauge.
func (n *NopMetrics) SetPendingResults(_ /* count */ int) {
	// No-op
}

// DispatchMetrics implementation

// RecordDispatch discards the dispatch metric.
func (n *NopMetrics) RecordDispatch(_ /* transformer */ string, _ /* chunks */ int) {
	// No-op
}

// RecordChunkResolved discards the chunk resolution metric.
func (n *NopMetrics) RecordChunkResolved(_ /* transformer */ string, _ /* abandoned */ bool, _ /* duration */ float64) {
	// No-op
}

// RecordResultDiscarded discards the discard counter.
func (n *NopMetrics) RecordResultDiscarded(_ /* reason */ string) {
	// No-op
}

// RecordApplyDuration discards the apply duration metric.
func (n *NopMetrics) RecordApplyDuration(_ /* duration */ float64) {
	// No-op
}

// RecordMutationsApplied discards the mutation counter.
func (n *NopMetrics) RecordMutationsApplied(_ /* count */ int) {
	// No-op
}

// RecordLockContention discards the contention counter.
func (n *NopMetrics) RecordLockContention(_ /* transformer */ string) {
	// No-op
}
