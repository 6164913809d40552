package batchmut

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/batchmut/container"
	"github.com/arloliu/batchmut/internal/logger"
	"github.com/arloliu/batchmut/internal/logging"
	"github.com/arloliu/batchmut/types"
)

// stubTransformer is a scriptable transformer for scheduler tests.
type stubTransformer struct {
	name     string
	priority int
	dirty    bool
	targets  []types.Container
	readMask types.Field

	// process handles each dispatched chunk; nil abandons immediately.
	process func(chunk Snapshot, handle Handle)

	issued          []Snapshot
	clearDirtyCalls int
	completions     int
}

func (s *stubTransformer) Name() string       { return s.name }
func (s *stubTransformer) Priority() int      { return s.priority }
func (s *stubTransformer) IsDirty() bool      { return s.dirty }
func (s *stubTransformer) ClearDirty()        { s.dirty = false; s.clearDirtyCalls++ }
func (s *stubTransformer) OnRequestComplete() { s.completions++ }

func (s *stubTransformer) BuildRequest() SnapshotRequest {
	mask := s.readMask
	if mask == FieldNone {
		mask = FieldTransform
	}

	return SnapshotRequest{Targets: s.targets, ReadMask: mask, WriteMask: mask}
}

func (s *stubTransformer) OnHandleIssued(snapshot Snapshot) {
	s.issued = append(s.issued, snapshot)
}

func (s *stubTransformer) ProcessChunk(chunk Snapshot, handle Handle) {
	if s.process == nil {
		handle.Abandon()
		return
	}
	s.process(chunk, handle)
}

// moveAllBy returns a process func that releases a transform mutation shifting
// every instance by dx on the X axis.
func moveAllBy(dx float64) func(chunk Snapshot, handle Handle) {
	return func(chunk Snapshot, handle Handle) {
		mutations := make([]InstanceMutation, 0, chunk.Len())
		for i := range chunk.Instances {
			inst := chunk.Instances[i]
			next := inst.Transform
			next.Location.X += dx
			mutations = append(mutations, InstanceMutation{Index: inst.Index, Transform: &next})
		}
		handle.Release(MutationResult{Written: FieldTransform, Mutations: mutations})
	}
}

func TestNewScheduler(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		sched, err := NewScheduler(nil)
		require.ErrorIs(t, err, ErrInvalidConfig)
		assert.Nil(t, sched)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := Config{MaxInstancesPerChunk: 8}
		sched, err := NewScheduler(&cfg)
		require.Error(t, err)
		assert.Nil(t, sched)
	})

	t.Run("defaults applied", func(t *testing.T) {
		cfg := Config{}
		sched, err := NewScheduler(&cfg, WithLogger(logger.NewTest(t)))
		require.NoError(t, err)
		defer sched.Close()

		assert.Equal(t, 2048, cfg.MaxInstancesPerChunk)
		assert.Equal(t, 32, cfg.MaxConcurrentChunks)
		assert.Equal(t, 5*time.Second, cfg.HandleTimeout)
	})

	t.Run("slog logger", func(t *testing.T) {
		cfg := TestConfig()
		slogger := logging.NewSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))

		sched, err := NewScheduler(&cfg, WithLogger(slogger))
		require.NoError(t, err)
		defer sched.Close()

		assert.False(t, sched.RegisterTransformer(nil))
	})

	t.Run("close twice", func(t *testing.T) {
		cfg := TestConfig()
		sched, err := NewScheduler(&cfg, WithLogger(logger.NewTest(t)))
		require.NoError(t, err)

		require.NoError(t, sched.Close())
		assert.ErrorIs(t, sched.Close(), ErrNotInitialized)
	})
}

func TestRegisterTransformer(t *testing.T) {
	sched := newTestScheduler(t)

	t.Run("nil transformer", func(t *testing.T) {
		assert.False(t, sched.RegisterTransformer(nil))
	})

	t.Run("success", func(t *testing.T) {
		assert.True(t, sched.RegisterTransformer(&stubTransformer{name: "a"}))
		assert.True(t, sched.IsTransformerRegistered("a"))
		assert.Equal(t, 1, sched.RegisteredTransformerCount())
	})

	t.Run("duplicate name", func(t *testing.T) {
		assert.False(t, sched.RegisterTransformer(&stubTransformer{name: "a"}))
		assert.Equal(t, 1, sched.RegisteredTransformerCount())
	})

	t.Run("unregister", func(t *testing.T) {
		sched.UnregisterTransformer("a")
		assert.False(t, sched.IsTransformerRegistered("a"))
		assert.Equal(t, 0, sched.RegisteredTransformerCount())
	})
}

func TestTickSynchronousRoundTrip(t *testing.T) {
	sched := newTestScheduler(t)
	target := container.NewMemory(4)

	stub := &stubTransformer{
		name:    "mover",
		dirty:   true,
		targets: []types.Container{target},
		process: moveAllBy(10),
	}
	require.True(t, sched.RegisterTransformer(stub))

	sched.Tick(16 * time.Millisecond)

	// A synchronous release applies within the same tick.
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 10.0, target.InstanceTransform(i).Location.X, 1e-9, "instance %d", i)
	}

	assert.False(t, target.IsBatchLocked())
	assert.Equal(t, 0, sched.InFlightChunkCount())
	assert.Equal(t, 0, sched.PendingResultCount())
	assert.Equal(t, 1, stub.completions)
	assert.Equal(t, 1, stub.clearDirtyCalls)
	assert.False(t, stub.dirty)

	// A clean tick dispatches nothing.
	sched.Tick(16 * time.Millisecond)
	assert.Equal(t, 1, stub.completions)
}

func TestTickPriorityOrdering(t *testing.T) {
	sched := newTestScheduler(t)

	var order []string
	record := func(name string) func(chunk Snapshot, handle Handle) {
		return func(_ Snapshot, handle Handle) {
			order = append(order, name)
			handle.Abandon()
		}
	}

	low := &stubTransformer{
		name: "low", priority: 1, dirty: true,
		targets: []types.Container{container.NewMemory(1)},
		process: record("low"),
	}
	high := &stubTransformer{
		name: "high", priority: 10, dirty: true,
		targets: []types.Container{container.NewMemory(1)},
		process: record("high"),
	}
	mid := &stubTransformer{
		name: "mid", priority: 5, dirty: true,
		targets: []types.Container{container.NewMemory(1)},
		process: record("mid"),
	}

	// Registration order differs from priority order on purpose.
	require.True(t, sched.RegisterTransformer(low))
	require.True(t, sched.RegisterTransformer(high))
	require.True(t, sched.RegisterTransformer(mid))

	sched.Tick(16 * time.Millisecond)

	assert.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestTickStableOrderOnEqualPriority(t *testing.T) {
	sched := newTestScheduler(t)

	var order []string
	record := func(name string) func(chunk Snapshot, handle Handle) {
		return func(_ Snapshot, handle Handle) {
			order = append(order, name)
			handle.Abandon()
		}
	}

	for _, name := range []string{"first", "second", "third"} {
		stub := &stubTransformer{
			name: name, priority: 3, dirty: true,
			targets: []types.Container{container.NewMemory(1)},
			process: record(name),
		}
		require.True(t, sched.RegisterTransformer(stub))
	}

	sched.Tick(16 * time.Millisecond)

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestTickLockContention(t *testing.T) {
	sched := newTestScheduler(t)
	target := container.NewMemory(2)

	var held Handle
	holder := &stubTransformer{
		name: "holder", priority: 10, dirty: true,
		targets: []types.Container{target},
		process: func(_ Snapshot, handle Handle) { held = handle },
	}
	contender := &stubTransformer{
		name: "contender", priority: 1, dirty: true,
		targets: []types.Container{target},
		process: moveAllBy(5),
	}

	require.True(t, sched.RegisterTransformer(holder))
	require.True(t, sched.RegisterTransformer(contender))

	// The holder locks the container; the contender is skipped, not failed.
	sched.Tick(16 * time.Millisecond)

	require.NotNil(t, held)
	assert.True(t, target.IsBatchLocked())
	assert.Equal(t, 1, sched.InFlightChunkCount())
	assert.Equal(t, 0, contender.completions)
	assert.InDelta(t, 0.0, target.InstanceTransform(0).Location.X, 1e-9)

	// The contender retries once the holder resolves and the lock frees.
	held.Release(MutationResult{Written: FieldTransform})
	contender.dirty = true
	sched.Tick(16 * time.Millisecond)

	assert.False(t, target.IsBatchLocked())
	assert.Equal(t, 1, holder.completions)
	assert.Equal(t, 1, contender.completions)
	assert.InDelta(t, 5.0, target.InstanceTransform(0).Location.X, 1e-9)
}

func TestTickAbandonLeavesDataUntouched(t *testing.T) {
	sched := newTestScheduler(t)
	target := container.NewMemory(3)

	stub := &stubTransformer{
		name: "quitter", dirty: true,
		targets: []types.Container{target},
		// nil process abandons immediately
	}
	require.True(t, sched.RegisterTransformer(stub))

	sched.Tick(16 * time.Millisecond)

	for i := 0; i < 3; i++ {
		assert.InDelta(t, 0.0, target.InstanceTransform(i).Location.X, 1e-9)
	}
	assert.False(t, target.IsBatchLocked())
	assert.Equal(t, 0, sched.InFlightChunkCount())
	assert.Equal(t, 1, stub.completions)
}

func TestTickSkipsDestroyedAndConvertedInstances(t *testing.T) {
	sched := newTestScheduler(t)
	target := container.NewMemory(4)
	target.DestroyInstance(1)
	target.MarkConverted(2)

	stub := &stubTransformer{
		name: "mover", dirty: true,
		targets: []types.Container{target},
		process: moveAllBy(7),
	}
	require.True(t, sched.RegisterTransformer(stub))

	sched.Tick(16 * time.Millisecond)

	// Only eligible instances were snapshotted and mutated.
	require.Len(t, stub.issued, 1)
	assert.Equal(t, 2, stub.issued[0].Len())

	assert.InDelta(t, 7.0, target.InstanceTransform(0).Location.X, 1e-9)
	assert.InDelta(t, 0.0, target.InstanceTransform(1).Location.X, 1e-9)
	assert.InDelta(t, 0.0, target.InstanceTransform(2).Location.X, 1e-9)
	assert.InDelta(t, 7.0, target.InstanceTransform(3).Location.X, 1e-9)
}

func TestTickDestroyedBetweenSnapshotAndApply(t *testing.T) {
	sched := newTestScheduler(t)
	target := container.NewMemory(3)

	var held Handle
	var heldChunk Snapshot
	stub := &stubTransformer{
		name: "slow", dirty: true,
		targets: []types.Container{target},
		process: func(chunk Snapshot, handle Handle) {
			held = handle
			heldChunk = chunk
		},
	}
	require.True(t, sched.RegisterTransformer(stub))

	sched.Tick(16 * time.Millisecond)
	require.NotNil(t, held)

	// Instance 1 disappears while its mutation is in flight.
	target.DestroyInstance(1)

	mutations := make([]InstanceMutation, 0, heldChunk.Len())
	for i := range heldChunk.Instances {
		next := heldChunk.Instances[i].Transform
		next.Location.X = 99
		mutations = append(mutations, InstanceMutation{Index: heldChunk.Instances[i].Index, Transform: &next})
	}
	held.Release(MutationResult{Written: FieldTransform, Mutations: mutations})

	sched.Tick(16 * time.Millisecond)

	assert.InDelta(t, 99.0, target.InstanceTransform(0).Location.X, 1e-9)
	assert.InDelta(t, 0.0, target.InstanceTransform(1).Location.X, 1e-9, "destroyed instance must not be written")
	assert.InDelta(t, 99.0, target.InstanceTransform(2).Location.X, 1e-9)
	assert.False(t, target.IsBatchLocked())
}

func TestTickAppliesCustomDataAndStateFlags(t *testing.T) {
	sched := newTestScheduler(t)
	target := container.NewMemory(2)
	target.SetInstanceCustomData(0, []float32{1, 2, 3})

	flags := types.StateFlags(0b1010_0001)
	stub := &stubTransformer{
		name: "writer", dirty: true,
		targets:  []types.Container{target},
		readMask: FieldCustomData | FieldStateFlags,
		process: func(chunk Snapshot, handle Handle) {
			handle.Release(MutationResult{
				Written: FieldCustomData | FieldStateFlags,
				Mutations: []InstanceMutation{
					{
						Index:         0,
						CustomData:    []float32{9, 8, 7},
						SlotOverrides: []SlotOverride{{Slot: 1, Value: 42}},
						StateFlags:    &flags,
					},
					{
						Index:         1,
						SlotOverrides: []SlotOverride{{Slot: 0, Value: 5}},
					},
				},
			})
		},
	}
	require.True(t, sched.RegisterTransformer(stub))

	sched.Tick(16 * time.Millisecond)

	// Full replacement applies first, then sparse overrides on top.
	assert.Equal(t, []float32{9, 42, 7}, target.InstanceCustomData(0))
	assert.Equal(t, flags, target.InstanceStateFlags(0))

	// A mutation with overrides only leaves other slots untouched.
	assert.Equal(t, []float32{5}, target.InstanceCustomData(1))
	assert.Equal(t, types.StateFlags(0), target.InstanceStateFlags(1))
}

func TestTickAsynchronousRelease(t *testing.T) {
	sched := newTestScheduler(t)
	target := container.NewMemory(2)

	released := make(chan struct{})
	stub := &stubTransformer{
		name: "async", dirty: true,
		targets: []types.Container{target},
		process: func(chunk Snapshot, handle Handle) {
			go func() {
				mutations := make([]InstanceMutation, 0, chunk.Len())
				for i := range chunk.Instances {
					next := chunk.Instances[i].Transform
					next.Location.Y = 3
					mutations = append(mutations, InstanceMutation{Index: chunk.Instances[i].Index, Transform: &next})
				}
				handle.Release(MutationResult{Written: FieldTransform, Mutations: mutations})
				close(released)
			}()
		},
	}
	require.True(t, sched.RegisterTransformer(stub))

	sched.Tick(16 * time.Millisecond)

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("async release never happened")
	}

	assert.True(t, sched.HasPendingWork())

	// The queued result applies on the next tick's leading drain.
	sched.Tick(16 * time.Millisecond)

	assert.InDelta(t, 3.0, target.InstanceTransform(0).Location.Y, 1e-9)
	assert.False(t, target.IsBatchLocked())
	assert.False(t, sched.HasPendingWork())
	assert.Equal(t, 1, stub.completions)
}

func TestTickMaxConcurrentChunks(t *testing.T) {
	cfg := TestConfig()
	cfg.MaxConcurrentChunks = 1

	sched, err := NewScheduler(&cfg, WithLogger(logger.NewTest(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Close() })

	first := container.NewMemory(1)
	second := container.NewMemory(1)

	var handles []Handle
	stub := &stubTransformer{
		name: "wide", dirty: true,
		targets: []types.Container{first, second},
		process: func(_ Snapshot, handle Handle) { handles = append(handles, handle) },
	}
	require.True(t, sched.RegisterTransformer(stub))

	sched.Tick(16 * time.Millisecond)

	// Only one chunk fits under the cap; the second container waits.
	require.Len(t, handles, 1)
	assert.Equal(t, 1, sched.InFlightChunkCount())
	assert.True(t, first.IsBatchLocked())
	assert.False(t, second.IsBatchLocked())

	handles[0].Abandon()
	stub.dirty = true
	stub.targets = []types.Container{second}
	sched.Tick(16 * time.Millisecond)

	// The freed capacity admits the second container.
	require.Len(t, handles, 2)
	assert.False(t, first.IsBatchLocked())
	assert.True(t, second.IsBatchLocked())

	// Terminate the open handle so its leak guard never fires against a dead test.
	handles[1].Abandon()
	sched.Tick(16 * time.Millisecond)
}

func TestTickCompletionFiresOncePerCycle(t *testing.T) {
	completions := []string{}
	hooks := &Hooks{
		OnCycleComplete: func(transformer string, total, abandoned int) {
			completions = append(completions, transformer)
			assert.Equal(t, 2, total)
			assert.Equal(t, 1, abandoned)
		},
	}

	sched := newTestScheduler(t, WithHooks(hooks))
	first := container.NewMemory(1)
	second := container.NewMemory(1)

	var handles []Handle
	stub := &stubTransformer{
		name: "pair", dirty: true,
		targets: []types.Container{first, second},
		process: func(_ Snapshot, handle Handle) { handles = append(handles, handle) },
	}
	require.True(t, sched.RegisterTransformer(stub))

	sched.Tick(16 * time.Millisecond)
	require.Len(t, handles, 2)

	// Resolving the first chunk is not enough.
	handles[0].Release(MutationResult{Written: FieldTransform})
	sched.Tick(16 * time.Millisecond)
	assert.Equal(t, 0, stub.completions)

	// The second resolution, an abandon, completes the cycle exactly once.
	handles[1].Abandon()
	sched.Tick(16 * time.Millisecond)
	assert.Equal(t, 1, stub.completions)
	assert.Equal(t, []string{"pair"}, completions)

	sched.Tick(16 * time.Millisecond)
	assert.Equal(t, 1, stub.completions)
}

func TestTickDiscardsResultsAfterUnregisterAll(t *testing.T) {
	discarded := []string{}
	hooks := &Hooks{
		OnResultDiscarded: func(reason string) { discarded = append(discarded, reason) },
	}

	sched := newTestScheduler(t, WithHooks(hooks))
	target := container.NewMemory(2)

	var held Handle
	stub := &stubTransformer{
		name: "doomed", dirty: true,
		targets: []types.Container{target},
		process: func(_ Snapshot, handle Handle) { held = handle },
	}
	require.True(t, sched.RegisterTransformer(stub))

	sched.Tick(16 * time.Millisecond)
	require.NotNil(t, held)

	sched.UnregisterAll()
	assert.Equal(t, 0, sched.InFlightChunkCount())

	// The straggler release matches no in-flight chunk and is dropped quietly.
	held.Release(MutationResult{
		Written:   FieldTransform,
		Mutations: []InstanceMutation{{Index: 0, Transform: &Transform{Location: Vec3{X: 77}}}},
	})
	sched.Tick(16 * time.Millisecond)

	assert.InDelta(t, 0.0, target.InstanceTransform(0).Location.X, 1e-9)
	assert.Equal(t, []string{"no_matching_chunk"}, discarded)
	assert.Equal(t, 0, stub.completions)
}

func TestTickSnapshotIsolatedFromLiveData(t *testing.T) {
	sched := newTestScheduler(t)
	target := container.NewMemory(1)
	target.SetInstanceCustomData(0, []float32{1})

	var captured Snapshot
	var held Handle
	stub := &stubTransformer{
		name: "reader", dirty: true,
		targets:  []types.Container{target},
		readMask: FieldTransform | FieldCustomData,
		process: func(chunk Snapshot, handle Handle) {
			captured = chunk
			held = handle
		},
	}
	require.True(t, sched.RegisterTransformer(stub))

	sched.Tick(16 * time.Millisecond)
	require.NotNil(t, held)

	// Host mutates live data while the chunk is open; the snapshot is a copy.
	target.SetInstanceCustomDataValue(0, 0, 999)

	assert.Equal(t, []float32{1}, captured.Instances[0].CustomData)

	held.Abandon()
	sched.Tick(16 * time.Millisecond)
}

func TestTickAutoAbandonFreesLock(t *testing.T) {
	autoAbandoned := 0
	hooks := &Hooks{
		OnHandleAutoAbandoned: func(types.Cell) { autoAbandoned++ },
	}

	sched := newTestScheduler(t, WithHooks(hooks))
	target := container.NewMemory(1)

	var leaked Handle
	stub := &stubTransformer{
		name: "leaky", dirty: true,
		targets: []types.Container{target},
		process: func(_ Snapshot, handle Handle) { leaked = handle },
	}
	require.True(t, sched.RegisterTransformer(stub))

	sched.Tick(16 * time.Millisecond)
	require.NotNil(t, leaked)
	require.True(t, target.IsBatchLocked())

	// Fire the leak guard directly instead of waiting on the collector.
	leaked.(*MutationHandle).autoAbandon()
	sched.Tick(16 * time.Millisecond)

	assert.Equal(t, 1, autoAbandoned)
	assert.False(t, target.IsBatchLocked())
	assert.Equal(t, 0, sched.InFlightChunkCount())
	assert.Equal(t, 1, stub.completions)
}

func TestSchedulerStats(t *testing.T) {
	sched := newTestScheduler(t)
	target := container.NewMemory(1)

	var held Handle
	stub := &stubTransformer{
		name: "tracked", dirty: true,
		targets: []types.Container{target},
		process: func(_ Snapshot, handle Handle) { held = handle },
	}
	require.True(t, sched.RegisterTransformer(stub))

	assert.False(t, sched.HasPendingWork())

	sched.Tick(16 * time.Millisecond)

	assert.Equal(t, 1, sched.InFlightChunkCount())
	assert.Equal(t, []string{"tracked"}, sched.TransformersWithOpenHandles())
	assert.True(t, sched.HasPendingWork())

	held.Abandon()
	sched.Tick(16 * time.Millisecond)

	assert.Equal(t, 0, sched.InFlightChunkCount())
	assert.Empty(t, sched.TransformersWithOpenHandles())
	assert.False(t, sched.HasPendingWork())
}

func TestTickAfterClose(t *testing.T) {
	cfg := TestConfig()
	sched, err := NewScheduler(&cfg, WithLogger(logger.NewTest(t)))
	require.NoError(t, err)
	require.NoError(t, sched.Close())

	// Must be a no-op, not a panic.
	sched.Tick(16 * time.Millisecond)
}

func TestTickConcurrentReleases(t *testing.T) {
	sched := newTestScheduler(t)

	const targetCount = 8
	targets := make([]types.Container, targetCount)
	for i := range targets {
		targets[i] = container.NewMemory(4)
	}

	var wg sync.WaitGroup
	stub := &stubTransformer{
		name: "parallel", dirty: true,
		targets: targets,
		process: func(chunk Snapshot, handle Handle) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				mutations := make([]InstanceMutation, 0, chunk.Len())
				for i := range chunk.Instances {
					next := chunk.Instances[i].Transform
					next.Location.Z = 1
					mutations = append(mutations, InstanceMutation{Index: chunk.Instances[i].Index, Transform: &next})
				}
				handle.Release(MutationResult{Written: FieldTransform, Mutations: mutations})
			}()
		},
	}
	require.True(t, sched.RegisterTransformer(stub))

	sched.Tick(16 * time.Millisecond)
	wg.Wait()
	sched.Tick(16 * time.Millisecond)

	for i, target := range targets {
		mem := target.(*container.Memory)
		assert.InDelta(t, 1.0, mem.InstanceTransform(0).Location.Z, 1e-9, "container %d", i)
		assert.False(t, mem.IsBatchLocked(), "container %d", i)
	}
	assert.Equal(t, 1, stub.completions)
	assert.False(t, sched.HasPendingWork())
}
