package batchmut

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/batchmut/internal/hooks"
	"github.com/arloliu/batchmut/internal/logger"
	"github.com/arloliu/batchmut/internal/metrics"
	"github.com/arloliu/batchmut/types"
)

// transformerEntry is one registry slot.
type transformerEntry struct {
	transformer types.Transformer
	name        string
	priority    int
	registered  bool
}

// inFlightChunk tracks a single dispatched-but-unresolved chunk.
// The scheduler stores chunk identity only, never the live handle.
type inFlightChunk struct {
	transformer string
	container   types.Container
	cell        types.Cell
	issuedAt    time.Time
	released    bool
	abandoned   bool
}

// requestCycle tracks all in-flight chunks for a single transformer dispatch.
// When every chunk is resolved, OnRequestComplete fires.
type requestCycle struct {
	transformer string
	total       int
	resolved    int
	abandoned   int
	complete    bool
}

// chunkKey identifies one chunk for abandon-side matching.
type chunkKey struct {
	container types.Container
	cell      types.Cell
}

// Scheduler drives the batch mutation pipeline for all registered transformers.
//
// Each tick:
//  1. Drain results that arrived since the previous tick and apply them
//  2. Poll registered transformers for dirty state, in priority order
//  3. For dirty transformers, build requests and snapshot eligible instances
//  4. Lock each target container and hand one chunk to ProcessChunk
//  5. Drain again so synchronously completed work applies within the same tick
//  6. When all chunks of a dispatch have resolved, fire OnRequestComplete
//
// Goroutine model: a single authoritative goroutine owns the registry,
// dispatch and apply phases; all public methods except handle termination must
// be called from it. ProcessChunk may run synchronously on that goroutine or
// hand its snapshot to background work; only Release/Abandon cross goroutines,
// through mutex-guarded queues drained at the tick boundaries.
//
// Thread Safety:
//   - Tick, registration and stats methods: owning goroutine only
//   - MutationHandle.Release / Abandon: any goroutine
//
// Lifecycle:
//   - Create with NewScheduler()
//   - Call Tick(dt) once per step from the owning goroutine
//   - Call Close() to tear down; queued late results are discarded, never applied
type Scheduler struct {
	cfg     Config
	hooks   Hooks
	metrics MetricsCollector
	logger  Logger

	// Registry, sorted by priority descending. Ties keep insertion order.
	transformers []transformerEntry

	// Dispatched chunks awaiting release or abandon.
	inFlight []inFlightChunk

	// Active request cycles, one per transformer with chunks in flight.
	cycles []requestCycle

	// Released results posted by handles from any goroutine,
	// drained on the owning goroutine via swap-then-process.
	releasedMu sync.Mutex
	released   []MutationResult

	// Abandoned chunk keys, same discipline as released results.
	abandonedMu sync.Mutex
	abandoned   []chunkKey

	// pending counts queued results and abandons across both queues.
	pending *xsync.Counter

	initialized atomic.Bool
}

// NewScheduler creates a new Scheduler instance with the provided configuration.
//
// Returns a concrete *Scheduler struct following the "accept interfaces,
// return structs" principle. Consumers can define their own interfaces for
// testing if needed.
//
// Parameters:
//   - cfg: Runtime configuration
//   - opts: Optional configuration (hooks, metrics, logger)
//
// Returns:
//   - *Scheduler: Initialized scheduler instance
//   - error: Validation error if configuration is invalid
//
// Example:
//
//	cfg := batchmut.DefaultConfig()
//	sched, err := batchmut.NewScheduler(&cfg, batchmut.WithLogger(myLogger))
//	if err != nil { /* handle */ }
//	defer sched.Close()
func NewScheduler(cfg *Config, opts ...Option) (*Scheduler, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	// Fill in missing configuration values with defaults
	SetDefaults(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Apply options
	options := &schedulerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logger.NewNop()
	}

	// Validate with warnings after logger is available
	cfg.ValidateWithWarnings(loggerInstance)

	hooksInstance := options.hooks
	if hooksInstance == nil {
		nopHooks := hooks.NewNop()
		hooksInstance = &nopHooks
	}

	s := &Scheduler{
		cfg:     *cfg,
		hooks:   *hooksInstance,
		metrics: metricsCollector,
		logger:  loggerInstance,
		pending: xsync.NewCounter(),
	}
	s.initialized.Store(true)

	return s, nil
}

// Close tears the scheduler down.
//
// The initialized flag drops first so any Release/Abandon arriving afterwards
// is discarded at enqueue time. Outstanding transformers are force-unregistered
// with a warning, and queued results are discarded, never applied.
//
// Returns:
//   - error: ErrNotInitialized if the scheduler was already closed
func (s *Scheduler) Close() error {
	if !s.initialized.CompareAndSwap(true, false) {
		return ErrNotInitialized
	}

	s.UnregisterAll()

	s.releasedMu.Lock()
	dropped := len(s.released)
	s.released = nil
	s.releasedMu.Unlock()

	s.abandonedMu.Lock()
	dropped += len(s.abandoned)
	s.abandoned = nil
	s.abandonedMu.Unlock()

	if dropped > 0 {
		s.logger.Warn("discarding queued results at teardown", "count", dropped)
	}
	s.pending.Reset()
	s.metrics.SetPendingResults(0)

	return nil
}

// RegisterTransformer registers a transformer with the scheduler.
//
// The transformer must remain valid for the lifetime of its registration. The
// registry is re-sorted by priority (descending, stable) after every
// successful registration.
//
// Parameters:
//   - t: The transformer to register (must not be nil)
//
// Returns:
//   - bool: true on success, false (logged) if t is nil or its name is taken
func (s *Scheduler) RegisterTransformer(t Transformer) bool {
	if !s.initialized.Load() {
		s.logger.Warn("RegisterTransformer called on a closed scheduler")
		return false
	}
	if t == nil {
		s.logger.Warn("RegisterTransformer called with a nil transformer")
		return false
	}

	name := t.Name()
	if s.IsTransformerRegistered(name) {
		s.logger.Warn("transformer is already registered", "transformer", name)
		return false
	}

	s.transformers = append(s.transformers, transformerEntry{
		transformer: t,
		name:        name,
		priority:    t.Priority(),
		registered:  true,
	})

	// Keep sorted by priority descending so dispatch processes high-priority
	// transformers first. Stable sort preserves insertion order on ties.
	sort.SliceStable(s.transformers, func(i, j int) bool {
		return s.transformers[i].priority > s.transformers[j].priority
	})

	s.metrics.SetRegisteredTransformers(len(s.transformers))

	return true
}

// UnregisterTransformer removes the transformer with the given name.
//
// TODO: abandon in-flight chunks for the removed transformer so its open cycle
// resolves instead of waiting on results that can no longer match an entry.
//
// Parameters:
//   - name: The name returned by the transformer's Name()
func (s *Scheduler) UnregisterTransformer(name string) {
	s.transformers = slices.DeleteFunc(s.transformers, func(e transformerEntry) bool {
		return e.name == name
	})
	s.metrics.SetRegisteredTransformers(len(s.transformers))
}

// UnregisterAll removes every transformer.
//
// Unregistering while chunks or cycles are outstanding logs a warning and
// force-clears the bookkeeping; any later-arriving Release/Abandon for those
// chunks finds no matching in-flight entry and is discarded at drain time.
func (s *Scheduler) UnregisterAll() {
	if len(s.inFlight) > 0 || len(s.cycles) > 0 {
		s.logger.Warn("unregistering all transformers with outstanding work, force-clearing bookkeeping",
			"inFlightChunks", len(s.inFlight),
			"activeCycles", len(s.cycles),
		)
	}

	s.transformers = nil
	s.inFlight = nil
	s.cycles = nil

	s.metrics.SetRegisteredTransformers(0)
	s.metrics.SetInFlightChunks(0)
}

// IsTransformerRegistered reports whether a transformer with the given name is registered.
func (s *Scheduler) IsTransformerRegistered(name string) bool {
	return slices.ContainsFunc(s.transformers, func(e transformerEntry) bool {
		return e.name == name
	})
}

// RegisteredTransformerCount returns the number of registered transformers.
func (s *Scheduler) RegisteredTransformerCount() int {
	return len(s.transformers)
}

// HasPendingWork reports whether chunks are in flight or results await a drain.
func (s *Scheduler) HasPendingWork() bool {
	return len(s.inFlight) > 0 || s.PendingResultCount() > 0
}

// Tick drives the scheduler pipeline for one step. Owning goroutine only.
//
// The drain runs on both sides of dispatch: results from the previous tick are
// applied before new work is issued, and work that completed synchronously
// during this tick is applied before Tick returns. There is no ordering
// guarantee between different transformers' completions across ticks.
//
// dt is not consumed by the scheduler itself; transformers own their
// throttling from their own accumulated time.
func (s *Scheduler) Tick(dt time.Duration) {
	if !s.initialized.Load() {
		return
	}

	start := time.Now()

	s.drainAndApplyResults()
	s.dispatchDirtyTransformers()
	s.drainAndApplyResults()

	s.enforceHandleTimeouts(time.Now())

	s.metrics.RecordTickDuration(time.Since(start).Seconds())
}

// dispatchDirtyTransformers polls the registry in priority order and
// dispatches every dirty transformer. ClearDirty is called unconditionally
// after each dispatch, even when zero chunks resulted, so a transformer with
// remaining work must re-arm itself.
func (s *Scheduler) dispatchDirtyTransformers() {
	for i := range s.transformers {
		entry := &s.transformers[i]
		if entry.transformer == nil || !entry.registered {
			continue
		}
		if !entry.transformer.IsDirty() {
			continue
		}

		chunks := s.dispatchTransformer(entry)
		entry.transformer.ClearDirty()

		s.metrics.RecordDispatch(entry.name, chunks)
	}
}

// dispatchTransformer builds one request for a dirty transformer and
// dispatches a chunk per resolvable target. A request cycle opens only when at
// least one chunk was issued.
func (s *Scheduler) dispatchTransformer(entry *transformerEntry) int {
	t := entry.transformer
	request := t.BuildRequest()

	if len(request.Targets) == 0 {
		s.logger.Debug("transformer built a request with no targets", "transformer", entry.name)
		return 0
	}

	total := 0
	for _, container := range request.Targets {
		if container == nil {
			continue
		}
		total += s.dispatchContainerChunks(t, container, request, entry.name)
	}

	if total > 0 {
		s.cycles = append(s.cycles, requestCycle{
			transformer: entry.name,
			total:       total,
		})
	}

	return total
}

// dispatchContainerChunks snapshots one container and hands the chunk to the
// transformer. Returns the number of chunks dispatched (0 or 1).
//
// Today every container yields a single chunk covering all eligible instances;
// the cell and generation fields are populated so spatial sub-chunking can key
// in-flight work by {container, cell} without changing this path's contract.
func (s *Scheduler) dispatchContainerChunks(t types.Transformer, container types.Container, request types.SnapshotRequest, name string) int {
	// Gather eligible instance indices.
	count := container.InstanceCount()
	eligible := make([]int, 0, count)
	for i := 0; i < count; i++ {
		if container.IsInstanceDestroyed(i) || container.IsInstanceConverted(i) {
			continue
		}
		eligible = append(eligible, i)
	}
	if len(eligible) == 0 {
		return 0
	}

	// Back-pressure: behave like lock contention and retry on a later tick.
	if len(s.inFlight) >= s.cfg.MaxConcurrentChunks {
		s.logger.Debug("concurrent chunk cap reached, skipping dispatch",
			"transformer", name,
			"inFlightChunks", len(s.inFlight),
		)

		return 0
	}

	// A container with an unresolved chunk stays locked; skip and retry on a
	// later tick. Not an error.
	if !container.SetBatchLocked(true) {
		s.logger.Debug("container already batch-locked, skipping this tick", "transformer", name)
		s.metrics.RecordLockContention(name)

		return 0
	}

	snapshot := s.buildSnapshot(container, types.CellZero, eligible, request.ReadMask)
	issuedAt := time.Now()

	// Track chunk identity before issuing the handle. No live handle is stored.
	s.inFlight = append(s.inFlight, inFlightChunk{
		transformer: name,
		container:   container,
		cell:        snapshot.Cell,
		issuedAt:    issuedAt,
	})
	s.metrics.SetInFlightChunks(len(s.inFlight))

	t.OnHandleIssued(snapshot)

	// Exactly one handle per chunk; the transformer owns it entirely.
	handle := newMutationHandle(s, container, snapshot.Cell, snapshot.Generation, issuedAt)
	t.ProcessChunk(snapshot, handle)

	return 1
}

// buildSnapshot copies the requested fields of the given instances.
//
// Must run on the owning goroutine: it reads live mutable container state.
// Unrequested fields stay unpopulated and Populated records which ones are
// meaningful.
func (s *Scheduler) buildSnapshot(container types.Container, cell types.Cell, indices []int, readMask types.Field) types.Snapshot {
	snapshot := types.Snapshot{
		Source:    container,
		Cell:      cell,
		Populated: readMask,
		Instances: make([]types.InstanceSnapshot, 0, len(indices)),
	}

	for _, idx := range indices {
		inst := types.InstanceSnapshot{Index: idx}

		if readMask.Has(types.FieldTransform) {
			inst.Transform = container.InstanceTransform(idx)
		}
		if readMask.Has(types.FieldCustomData) {
			inst.CustomData = slices.Clone(container.InstanceCustomData(idx))
		}
		if readMask.Has(types.FieldStateFlags) {
			inst.StateFlags = container.InstanceStateFlags(idx)
		}

		snapshot.Instances = append(snapshot.Instances, inst)
	}

	return snapshot
}

// enqueueReleased posts a released result for the next drain.
// Called from any goroutine via MutationHandle.Release.
func (s *Scheduler) enqueueReleased(result types.MutationResult) {
	if !s.initialized.Load() {
		s.discard("post_teardown")
		return
	}

	s.releasedMu.Lock()
	s.released = append(s.released, result)
	s.releasedMu.Unlock()

	s.pending.Inc()
	s.metrics.SetPendingResults(s.PendingResultCount())
}

// enqueueAbandoned posts an abandoned chunk key for the next drain.
// Called from any goroutine via MutationHandle.Abandon.
func (s *Scheduler) enqueueAbandoned(key chunkKey) {
	if !s.initialized.Load() {
		s.discard("post_teardown")
		return
	}

	s.abandonedMu.Lock()
	s.abandoned = append(s.abandoned, key)
	s.abandonedMu.Unlock()

	s.pending.Inc()
	s.metrics.SetPendingResults(s.PendingResultCount())
}

// discard records one dropped result or abandon key.
func (s *Scheduler) discard(reason string) {
	s.metrics.RecordResultDiscarded(reason)
	if s.hooks.OnResultDiscarded != nil {
		s.hooks.OnResultDiscarded(reason)
	}
}

// drainAndApplyResults swaps both result queues out under their locks and
// processes them outside the locks, keeping the critical sections minimal.
//
// Released results are validated and applied; abandoned keys unlock their
// containers; both resolve their in-flight chunk and feed cycle completion.
// Entries that match no open in-flight chunk (stale targets, post-unregister
// stragglers) are discarded with a diagnostic.
func (s *Scheduler) drainAndApplyResults() {
	s.releasedMu.Lock()
	released := s.released
	s.released = nil
	s.releasedMu.Unlock()

	s.abandonedMu.Lock()
	abandoned := s.abandoned
	s.abandoned = nil
	s.abandonedMu.Unlock()

	if len(released) == 0 && len(abandoned) == 0 {
		return
	}

	for i := range released {
		result := &released[i]
		s.pending.Dec()

		if result.Target == nil {
			s.logger.Warn("received a mutation result for a container that no longer exists, discarding")
			s.discard("stale_target")

			continue
		}

		chunk := s.findOpenChunk(result.Target, result.Cell)
		if chunk == nil {
			s.logger.Warn("received a mutation result with no matching in-flight chunk, discarding",
				"cell", result.Cell,
			)
			s.discard("no_matching_chunk")

			continue
		}

		start := time.Now()
		s.applyMutationResult(result)
		s.metrics.RecordApplyDuration(time.Since(start).Seconds())

		chunk.released = true
		s.notifyChunkResolved(chunk.transformer, false, chunk.issuedAt)
	}

	for _, key := range abandoned {
		s.pending.Dec()

		chunk := s.findOpenChunk(key.container, key.cell)
		if chunk == nil {
			s.logger.Debug("received an abandon with no matching in-flight chunk, discarding")
			s.discard("no_matching_chunk")

			continue
		}

		chunk.released = true // treat as resolved for cycle tracking
		chunk.abandoned = true

		// No writes happened; just free the container.
		if key.container != nil {
			key.container.SetBatchLocked(false)
		}

		s.notifyChunkResolved(chunk.transformer, true, chunk.issuedAt)
	}

	// Prune fully resolved chunks.
	s.inFlight = slices.DeleteFunc(s.inFlight, func(c inFlightChunk) bool {
		return c.released
	})

	s.metrics.SetInFlightChunks(len(s.inFlight))
	s.metrics.SetPendingResults(s.PendingResultCount())
}

// findOpenChunk returns the unresolved in-flight chunk matching the given
// identity, or nil. Identity is {container, cell}; one chunk per pair may be
// open at a time.
func (s *Scheduler) findOpenChunk(container types.Container, cell types.Cell) *inFlightChunk {
	for i := range s.inFlight {
		chunk := &s.inFlight[i]
		if !chunk.released && chunk.container == container && chunk.cell == cell {
			return chunk
		}
	}

	return nil
}

// applyMutationResult writes one validated result into its target container.
// Owning goroutine only. The container is unlocked afterward regardless of how
// many mutations applied.
func (s *Scheduler) applyMutationResult(result *types.MutationResult) {
	target := result.Target
	applied := 0

	for i := range result.Mutations {
		mutation := &result.Mutations[i]
		idx := mutation.Index

		// Core safety check: never write to a destroyed instance.
		if target.IsInstanceDestroyed(idx) {
			continue
		}

		if result.Written.Has(types.FieldTransform) && mutation.Transform != nil {
			target.UpdateInstanceTransform(idx, *mutation.Transform)
		}

		if result.Written.Has(types.FieldCustomData) {
			if mutation.CustomData != nil {
				target.SetInstanceCustomData(idx, mutation.CustomData)
			}

			// Sparse slot overrides apply after any full replacement.
			for _, override := range mutation.SlotOverrides {
				target.SetInstanceCustomDataValue(idx, override.Slot, override.Value)
			}
		}

		if result.Written.Has(types.FieldStateFlags) && mutation.StateFlags != nil {
			// Toggle each flag individually so container-side bookkeeping tied
			// to single flags stays correct.
			flags := *mutation.StateFlags
			for bit := 0; bit < types.StateFlagCount; bit++ {
				flag := types.StateFlags(1 << bit)
				target.SetInstanceState(idx, flag, flags.Has(flag))
			}
		}

		applied++
	}

	target.SetBatchLocked(false)

	s.metrics.RecordMutationsApplied(applied)
}

// notifyChunkResolved advances the matching open cycle and fires the
// transformer's completion callback exactly once when the cycle finishes.
// Completed cycles are pruned immediately. An abandoned chunk counts as
// resolved identically to a released one.
func (s *Scheduler) notifyChunkResolved(name string, wasAbandoned bool, issuedAt time.Time) {
	s.metrics.RecordChunkResolved(name, wasAbandoned, time.Since(issuedAt).Seconds())

	for i := range s.cycles {
		cycle := &s.cycles[i]
		if cycle.transformer != name || cycle.complete {
			continue
		}

		cycle.resolved++
		if wasAbandoned {
			cycle.abandoned++
		}

		if cycle.resolved >= cycle.total {
			cycle.complete = true

			for j := range s.transformers {
				entry := &s.transformers[j]
				if entry.name == name && entry.transformer != nil {
					entry.transformer.OnRequestComplete()
					break
				}
			}

			if s.hooks.OnCycleComplete != nil {
				s.hooks.OnCycleComplete(name, cycle.total, cycle.abandoned)
			}
		}

		break
	}

	s.cycles = slices.DeleteFunc(s.cycles, func(c requestCycle) bool {
		return c.complete
	})
}

// enforceHandleTimeouts will force-abandon open handles older than
// cfg.HandleTimeout so a stalled transformer cannot hold a container lock
// forever.
//
// TODO: walk inFlight, compare now against issuedAt+HandleTimeout and enqueue
// a synthetic abandon for expired chunks; needs a decision on how a late real
// Release should then be reconciled.
func (s *Scheduler) enforceHandleTimeouts(_ time.Time) {
}

// InFlightChunkCount returns the number of dispatched-but-unresolved chunks.
func (s *Scheduler) InFlightChunkCount() int {
	return len(s.inFlight)
}

// PendingResultCount returns the number of queued results and abandons
// awaiting the next drain. Safe to call from any goroutine.
func (s *Scheduler) PendingResultCount() int {
	return int(s.pending.Value())
}

// TransformersWithOpenHandles returns the name of every transformer that
// currently has unresolved chunks. Useful for diagnosing stalls.
func (s *Scheduler) TransformersWithOpenHandles() []string {
	var names []string
	for i := range s.inFlight {
		chunk := &s.inFlight[i]
		if !chunk.released && !slices.Contains(names, chunk.transformer) {
			names = append(names, chunk.transformer)
		}
	}

	return names
}
