package types

import "time"

// Handle is the single-use capability required to commit or discard a chunk's
// results. Handles are created only by the scheduler and passed to
// Transformer.ProcessChunk; the transformer must terminate the handle exactly
// once, synchronously or from work it owns.
//
// Release and Abandon are safe to call from any goroutine. Calling either on a
// handle that is no longer open is logged and ignored.
type Handle interface {
	// Release submits the mutation result and closes the handle. The scheduler
	// applies the result on the owning goroutine during a later drain.
	Release(result MutationResult)

	// Abandon closes the handle without submitting changes. The chunk is left
	// unchanged and the container lock is freed.
	Abandon()

	// IsOpen reports whether the handle has not yet been released or abandoned.
	IsOpen() bool

	// Container returns the container this handle covers.
	Container() Container

	// Cell returns the chunk cell this handle covers.
	Cell() Cell

	// Generation returns the snapshot generation token, for transformer-side
	// staleness checks.
	Generation() uint32

	// IssuedAt returns when the handle was issued. Used by the scheduler's
	// timeout enforcement.
	IssuedAt() time.Time
}

// Transformer is a registered recurring unit of work that mutates bulk
// per-instance container data through the batch pipeline.
//
// Each tick the scheduler checks registered transformers for pending work via
// IsDirty, then drives the snapshot and dispatch pipeline automatically.
//
// Goroutine contract:
//   - Name, Priority, IsDirty, ClearDirty, BuildRequest, OnHandleIssued and
//     OnRequestComplete are called on the goroutine that owns the scheduler.
//   - ProcessChunk may run work on any goroutine, but must only read the
//     snapshot and previously captured context, never the live container.
//
// Constraints:
//   - Transformers cannot add or remove instances (structural changes forbidden).
//   - Returned mutations must reference indices present in the original chunk.
//   - The handle must be terminated exactly once via Release or Abandon.
type Transformer interface {
	// Name returns a stable identifier used for registration, cycle tracking
	// and logging. Must be unique within one scheduler.
	Name() string

	// Priority orders dispatch: higher values dispatch first within a tick.
	// There is no preemption; one transformer's dispatch fully completes
	// before the next begins.
	Priority() int

	// IsDirty reports whether the transformer has work ready this tick.
	// Continuous transformers return true every tick; event-driven ones return
	// true only after an external signal. Cheap checks keep idle transformers
	// effectively free.
	IsDirty() bool

	// ClearDirty is called after the scheduler finishes dispatching this
	// transformer for the tick, even if zero chunks resulted. A transformer
	// that still has pending work must re-arm itself.
	ClearDirty()

	// BuildRequest declares target containers and required fields for this
	// cycle. It may change every dispatch, for example to track a moving
	// reference point.
	BuildRequest() SnapshotRequest

	// OnHandleIssued is a one-time per-cycle setup hook invoked with the
	// snapshot before ProcessChunk, on the owning goroutine. Typical use is
	// capturing pre-mutation baseline state.
	OnHandleIssued(snapshot Snapshot)

	// ProcessChunk processes one snapshot chunk and must terminate the handle
	// exactly once. It produces a MutationResult containing only instances
	// that actually changed.
	ProcessChunk(chunk Snapshot, handle Handle)

	// OnRequestComplete fires once all chunks of a dispatch have resolved,
	// released or abandoned. Resolution may span multiple ticks, so this is
	// the only safe point to publish "last cycle" statistics.
	OnRequestComplete()
}
