package batchmut

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/batchmut/types"
)

// Handle states. The zero value is open so a freshly constructed handle is live.
const (
	handleOpen int32 = iota
	handleReleased
	handleAbandoned
)

// MutationHandle is the single-use capability granting the right to commit
// (Release) or discard (Abandon) one chunk's results exactly once.
//
// Handles are created only by the scheduler and handed to
// Transformer.ProcessChunk. Ownership transfers with the pointer; the
// scheduler keeps no reference. Release and Abandon are safe to call from any
// goroutine, and whichever is called first wins: later terminal calls are
// logged and ignored.
//
// A handle that becomes unreachable while still open is abandoned by its leak
// guard with a warning, so the container lock cannot leak from handle
// mishandling. Transformers should still terminate handles explicitly; the
// guard runs at the garbage collector's convenience.
type MutationHandle struct {
	id         string
	scheduler  *Scheduler
	container  types.Container
	cell       types.Cell
	generation uint32
	issuedAt   time.Time
	state      atomic.Int32
}

// Compile-time assertion that MutationHandle implements Handle.
var _ types.Handle = (*MutationHandle)(nil)

// newMutationHandle binds a handle to one dispatched chunk.
// Only the scheduler creates handles.
func newMutationHandle(s *Scheduler, container types.Container, cell types.Cell, generation uint32, issuedAt time.Time) *MutationHandle {
	h := &MutationHandle{
		id:         uuid.NewString(),
		scheduler:  s,
		container:  container,
		cell:       cell,
		generation: generation,
		issuedAt:   issuedAt,
	}

	runtime.SetFinalizer(h, (*MutationHandle).autoAbandon)

	return h
}

// Release submits the mutation result and closes the handle.
//
// The scheduler stamps the chunk identity (target, cell, generation) onto the
// result and applies it on the owning goroutine during a later drain. Calling
// Release on a handle that is no longer open is logged and ignored.
func (h *MutationHandle) Release(result types.MutationResult) {
	if !h.state.CompareAndSwap(handleOpen, handleReleased) {
		h.scheduler.logger.Warn("Release called on a closed handle, ignoring", "handle", h.id)
		return
	}
	runtime.SetFinalizer(h, nil)

	// Stamp the chunk identity for drain-side matching.
	result.Target = h.container
	result.Cell = h.cell
	result.Generation = h.generation

	h.scheduler.enqueueReleased(result)
}

// Abandon closes the handle without submitting changes.
//
// The chunk is left unchanged and the container lock is freed on the next
// drain. Calling Abandon on a handle that is no longer open is logged and
// ignored.
func (h *MutationHandle) Abandon() {
	if !h.state.CompareAndSwap(handleOpen, handleAbandoned) {
		h.scheduler.logger.Warn("Abandon called on a closed handle, ignoring", "handle", h.id)
		return
	}
	runtime.SetFinalizer(h, nil)

	h.scheduler.enqueueAbandoned(chunkKey{container: h.container, cell: h.cell})
}

// autoAbandon is the leak guard. It runs when an open handle becomes
// unreachable and behaves exactly like Abandon, plus a warning.
func (h *MutationHandle) autoAbandon() {
	if !h.state.CompareAndSwap(handleOpen, handleAbandoned) {
		return
	}

	if h.scheduler.cfg.WarnOnAutoAbandon {
		h.scheduler.logger.Warn("handle dropped while open, auto-abandoning", "handle", h.id, "cell", h.cell)
	}
	if h.scheduler.hooks.OnHandleAutoAbandoned != nil {
		h.scheduler.hooks.OnHandleAutoAbandoned(h.cell)
	}

	h.scheduler.enqueueAbandoned(chunkKey{container: h.container, cell: h.cell})
}

// IsOpen reports whether the handle has not yet been released or abandoned.
func (h *MutationHandle) IsOpen() bool {
	return h.state.Load() == handleOpen
}

// Container returns the container this handle covers.
func (h *MutationHandle) Container() types.Container {
	return h.container
}

// Cell returns the chunk cell this handle covers.
func (h *MutationHandle) Cell() types.Cell {
	return h.cell
}

// Generation returns the snapshot generation token, for transformer-side
// staleness checks.
func (h *MutationHandle) Generation() uint32 {
	return h.generation
}

// IssuedAt returns when the handle was issued.
func (h *MutationHandle) IssuedAt() time.Time {
	return h.issuedAt
}

// ID returns the handle's unique identifier, used for log correlation.
func (h *MutationHandle) ID() string {
	return h.id
}
