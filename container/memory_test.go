package container

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/batchmut/types"
)

func TestNewMemory(t *testing.T) {
	m := NewMemory(3)

	assert.Equal(t, 3, m.InstanceCount())
	for i := 0; i < 3; i++ {
		assert.False(t, m.IsInstanceDestroyed(i))
		assert.False(t, m.IsInstanceConverted(i))
		assert.Equal(t, types.IdentityTransform(), m.InstanceTransform(i))
		assert.Empty(t, m.InstanceCustomData(i))
		assert.Equal(t, types.StateFlags(0), m.InstanceStateFlags(i))
	}
}

func TestMemoryAddInstance(t *testing.T) {
	m := NewMemory(0)

	transform := types.Transform{Location: types.Vec3{X: 1, Y: 2, Z: 3}}
	data := []float32{0.5}

	idx := m.AddInstance(transform, data)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, m.InstanceCount())
	assert.Equal(t, transform, m.InstanceTransform(idx))
	assert.Equal(t, data, m.InstanceCustomData(idx))

	// The stored data is a copy, not an alias of the caller's slice.
	data[0] = 99
	assert.Equal(t, float32(0.5), m.InstanceCustomData(idx)[0])

	assert.Equal(t, 1, m.AddInstance(types.Transform{}, nil))
}

func TestMemoryDestroyAndConvert(t *testing.T) {
	m := NewMemory(3)

	m.DestroyInstance(0)
	m.MarkConverted(1)

	assert.True(t, m.IsInstanceDestroyed(0))
	assert.False(t, m.IsInstanceDestroyed(1))
	assert.True(t, m.IsInstanceConverted(1))
	assert.False(t, m.IsInstanceConverted(2))

	// Indices are never compacted.
	assert.Equal(t, 3, m.InstanceCount())

	// Out-of-range indices are tolerated.
	m.DestroyInstance(-1)
	m.DestroyInstance(10)
	m.MarkConverted(10)
	assert.True(t, m.IsInstanceDestroyed(-1))
	assert.True(t, m.IsInstanceDestroyed(10))
	assert.False(t, m.IsInstanceConverted(10))
}

func TestMemoryCustomData(t *testing.T) {
	m := NewMemory(1)

	m.SetInstanceCustomData(0, []float32{1, 2})
	assert.Equal(t, []float32{1, 2}, m.InstanceCustomData(0))

	t.Run("slot write", func(t *testing.T) {
		m.SetInstanceCustomDataValue(0, 1, 9)
		assert.Equal(t, []float32{1, 9}, m.InstanceCustomData(0))
	})

	t.Run("slot write grows the array", func(t *testing.T) {
		m.SetInstanceCustomDataValue(0, 4, 7)
		assert.Equal(t, []float32{1, 9, 0, 0, 7}, m.InstanceCustomData(0))
	})

	t.Run("negative slot ignored", func(t *testing.T) {
		m.SetInstanceCustomDataValue(0, -1, 5)
		assert.Equal(t, []float32{1, 9, 0, 0, 7}, m.InstanceCustomData(0))
	})
}

func TestMemoryStateFlags(t *testing.T) {
	m := NewMemory(1)

	flagA := types.StateFlags(1 << 0)
	flagB := types.StateFlags(1 << 5)

	m.SetInstanceState(0, flagA, true)
	m.SetInstanceState(0, flagB, true)
	assert.Equal(t, flagA|flagB, m.InstanceStateFlags(0))

	m.SetInstanceState(0, flagA, false)
	assert.Equal(t, flagB, m.InstanceStateFlags(0))

	// Disabling an already-clear flag is a no-op.
	m.SetInstanceState(0, flagA, false)
	assert.Equal(t, flagB, m.InstanceStateFlags(0))
}

func TestMemoryBatchLock(t *testing.T) {
	m := NewMemory(1)

	assert.False(t, m.IsBatchLocked())
	assert.True(t, m.SetBatchLocked(true))
	assert.True(t, m.IsBatchLocked())

	// A second acquire fails while held.
	assert.False(t, m.SetBatchLocked(true))

	// Release always succeeds, even when repeated.
	assert.True(t, m.SetBatchLocked(false))
	assert.False(t, m.IsBatchLocked())
	assert.True(t, m.SetBatchLocked(false))

	assert.True(t, m.SetBatchLocked(true))
}

func TestMemoryBatchLockConcurrent(t *testing.T) {
	m := NewMemory(1)

	const goroutines = 32

	var wg sync.WaitGroup
	acquired := make(chan struct{}, goroutines)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if m.SetBatchLocked(true) {
				acquired <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(acquired)

	// Exactly one contender wins the lock.
	require.Len(t, acquired, 1)
	assert.True(t, m.IsBatchLocked())
}
