package types

// Container is the external owner of addressable instances whose data the
// batch pipeline reads and writes.
//
// All methods are called from the single goroutine that owns the scheduler,
// except SetBatchLocked which must be safe for concurrent use: it is the
// mutual-exclusion entry point between the scheduler and any other party that
// batches against the same container.
//
// Implementations must treat indices uniformly: a destroyed or converted
// instance keeps its index (no compaction during a batch cycle).
type Container interface {
	// InstanceCount returns the total number of instance slots, including
	// destroyed and converted ones.
	InstanceCount() int

	// IsInstanceDestroyed reports whether the instance at index has been removed.
	// Destroyed instances are excluded from snapshots and never mutated.
	IsInstanceDestroyed(index int) bool

	// IsInstanceConverted reports whether the instance at index has been handed
	// to an external system (for example converted to a standalone actor).
	// Converted instances are excluded from batching.
	IsInstanceConverted(index int) bool

	// InstanceTransform returns the current world transform of the instance.
	InstanceTransform(index int) Transform

	// InstanceCustomData returns the per-instance custom float data.
	// The returned slice must not be retained past the call; snapshot building
	// copies it.
	InstanceCustomData(index int) []float32

	// InstanceStateFlags returns the per-instance state flag byte.
	InstanceStateFlags(index int) StateFlags

	// UpdateInstanceTransform writes a new world transform for the instance.
	UpdateInstanceTransform(index int, transform Transform)

	// SetInstanceCustomData replaces the full custom data array of the instance.
	SetInstanceCustomData(index int, data []float32)

	// SetInstanceCustomDataValue writes a single custom data slot.
	SetInstanceCustomDataValue(index int, slot int, value float32)

	// SetInstanceState toggles a single state flag bit on the instance.
	SetInstanceState(index int, flag StateFlags, enabled bool)

	// SetBatchLocked acquires (true) or releases (false) the container's
	// exclusive batch lock. Acquiring returns false if the container is already
	// locked; releasing always succeeds and returns true.
	SetBatchLocked(locked bool) bool
}
