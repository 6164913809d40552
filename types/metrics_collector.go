package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// Dispatch-side methods are called from the scheduler's owning goroutine;
// queue gauges may be updated from any goroutine and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	SchedulerMetrics
	DispatchMetrics
}

// SchedulerMetrics defines metrics for scheduler-level state.
type SchedulerMetrics interface {
	// RecordTickDuration records the time taken by one scheduler tick.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	RecordTickDuration(duration float64)

	// SetRegisteredTransformers sets the current registry size (gauge metric).
	SetRegisteredTransformers(count int)

	// SetInFlightChunks sets the number of dispatched-but-unresolved chunks (gauge metric).
	SetInFlightChunks(count int)

	// SetPendingResults sets the number of queued results and abandons awaiting
	// the next drain (gauge metric).
	SetPendingResults(count int)
}

// DispatchMetrics defines metrics for dispatch, resolution and apply operations.
type DispatchMetrics interface {
	// RecordDispatch records one transformer dispatch.
	//
	// Parameters:
	//   - transformer: Transformer name
	//   - chunks: Number of chunks dispatched (may be 0)
	RecordDispatch(transformer string, chunks int)

	// RecordChunkResolved records the resolution of one in-flight chunk.
	//
	// Parameters:
	//   - transformer: Transformer name
	//   - abandoned: true if the chunk was abandoned rather than released
	//   - duration: Seconds between handle issue and resolution
	RecordChunkResolved(transformer string, abandoned bool, duration float64)

	// RecordResultDiscarded records a result or abandon key that could not be
	// matched or applied.
	//
	// Parameters:
	//   - reason: Discard reason ("stale_target", "no_matching_chunk", "post_teardown")
	RecordResultDiscarded(reason string)

	// RecordApplyDuration records the time taken to apply one mutation result.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	RecordApplyDuration(duration float64)

	// RecordMutationsApplied records how many instance mutations one result applied.
	RecordMutationsApplied(count int)

	// RecordLockContention records a dispatch skipped because the target
	// container was already batch-locked.
	//
	// Parameters:
	//   - transformer: Transformer name that was skipped
	RecordLockContention(transformer string)
}
