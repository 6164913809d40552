package container

import (
	"slices"
	"sync/atomic"

	"github.com/arloliu/batchmut/types"
)

// Memory is a dense, slice-backed container. Instances keep their index for
// their whole lifetime; destroying or converting an instance marks it rather
// than compacting the slices, so indices captured in snapshots stay valid.
//
// All methods except SetBatchLocked and IsBatchLocked must be called from the
// goroutine that owns the scheduler. The batch lock itself is an atomic flag
// so scheduler and host can contend for it safely.
type Memory struct {
	transforms []types.Transform
	customData [][]float32
	states     []types.StateFlags
	destroyed  []bool
	converted  []bool

	locked atomic.Bool
}

// Compile-time assertion that Memory implements Container.
var _ types.Container = (*Memory)(nil)

// NewMemory creates a Memory container with the given number of instances,
// all at the identity transform with no custom data.
func NewMemory(count int) *Memory {
	m := &Memory{
		transforms: make([]types.Transform, count),
		customData: make([][]float32, count),
		states:     make([]types.StateFlags, count),
		destroyed:  make([]bool, count),
		converted:  make([]bool, count),
	}
	for i := range m.transforms {
		m.transforms[i] = types.IdentityTransform()
	}

	return m
}

// AddInstance appends a new instance and returns its index.
func (m *Memory) AddInstance(transform types.Transform, customData []float32) int {
	m.transforms = append(m.transforms, transform)
	m.customData = append(m.customData, slices.Clone(customData))
	m.states = append(m.states, 0)
	m.destroyed = append(m.destroyed, false)
	m.converted = append(m.converted, false)

	return len(m.transforms) - 1
}

// DestroyInstance marks the instance as destroyed. Its index is never reused.
func (m *Memory) DestroyInstance(index int) {
	if index >= 0 && index < len(m.destroyed) {
		m.destroyed[index] = true
	}
}

// MarkConverted marks the instance as handed off to an external system,
// excluding it from batching without destroying its data.
func (m *Memory) MarkConverted(index int) {
	if index >= 0 && index < len(m.converted) {
		m.converted[index] = true
	}
}

// InstanceCount returns the total number of instance slots, including
// destroyed and converted ones.
func (m *Memory) InstanceCount() int {
	return len(m.transforms)
}

// IsInstanceDestroyed reports whether the instance at index has been destroyed.
// Out-of-range indices report true so callers skip them.
func (m *Memory) IsInstanceDestroyed(index int) bool {
	if index < 0 || index >= len(m.destroyed) {
		return true
	}

	return m.destroyed[index]
}

// IsInstanceConverted reports whether the instance was handed off externally.
func (m *Memory) IsInstanceConverted(index int) bool {
	if index < 0 || index >= len(m.converted) {
		return false
	}

	return m.converted[index]
}

// InstanceTransform returns the current world transform of the instance.
func (m *Memory) InstanceTransform(index int) types.Transform {
	return m.transforms[index]
}

// InstanceCustomData returns the instance's custom float data. The slice is
// the live backing array; callers must copy before retaining.
func (m *Memory) InstanceCustomData(index int) []float32 {
	return m.customData[index]
}

// InstanceStateFlags returns the instance's state flag byte.
func (m *Memory) InstanceStateFlags(index int) types.StateFlags {
	return m.states[index]
}

// UpdateInstanceTransform writes a new world transform for the instance.
func (m *Memory) UpdateInstanceTransform(index int, transform types.Transform) {
	m.transforms[index] = transform
}

// SetInstanceCustomData replaces the instance's full custom data array.
func (m *Memory) SetInstanceCustomData(index int, data []float32) {
	m.customData[index] = slices.Clone(data)
}

// SetInstanceCustomDataValue writes a single custom data slot, growing the
// array if the slot is beyond its current length.
func (m *Memory) SetInstanceCustomDataValue(index int, slot int, value float32) {
	if slot < 0 {
		return
	}
	if slot >= len(m.customData[index]) {
		grown := make([]float32, slot+1)
		copy(grown, m.customData[index])
		m.customData[index] = grown
	}
	m.customData[index][slot] = value
}

// SetInstanceState toggles a single state flag bit on the instance.
func (m *Memory) SetInstanceState(index int, flag types.StateFlags, enabled bool) {
	if enabled {
		m.states[index] |= flag
	} else {
		m.states[index] &^= flag
	}
}

// SetBatchLocked acquires (true) or releases (false) the exclusive batch
// lock. Acquiring fails if already held; releasing always succeeds.
// Safe for concurrent use.
func (m *Memory) SetBatchLocked(locked bool) bool {
	if locked {
		return m.locked.CompareAndSwap(false, true)
	}

	m.locked.Store(false)

	return true
}

// IsBatchLocked reports whether the batch lock is currently held.
// Safe for concurrent use.
func (m *Memory) IsBatchLocked() bool {
	return m.locked.Load()
}
