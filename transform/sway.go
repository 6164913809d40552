package transform

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/zeebo/xxh3"

	"github.com/arloliu/batchmut/types"
)

// Waveform selects the periodic function driving the sway displacement.
type Waveform int

const (
	// WaveformSine is a smooth sine wave. The default.
	WaveformSine Waveform = iota

	// WaveformTriangle is a linear triangle wave, cheaper and sharper.
	WaveformTriangle

	// WaveformSquare snaps between the two displacement extremes.
	WaveformSquare
)

// PhaseMode selects how per-instance phase offsets are derived.
type PhaseMode int

const (
	// PhaseSynchronized gives every instance the same phase.
	PhaseSynchronized PhaseMode = iota

	// PhasePosition derives phase from the instance's rest location, so
	// neighbors sway in loose waves.
	PhasePosition

	// PhaseIndex derives phase from a hash of the instance index and seed,
	// fully decorrelating instances. The default.
	PhaseIndex
)

// FrameParams is the per-frame world state the host feeds the transformer.
type FrameParams struct {
	// DeltaTime is the host frame delta in seconds.
	DeltaTime float64

	// WorldTime is the accumulated world clock in seconds, the time base for
	// all waveforms.
	WorldTime float64

	// ReferenceLocation is the falloff center, typically the viewer.
	ReferenceLocation types.Vec3

	// WindDirection is the world-space wind vector. Zero disables blending.
	WindDirection types.Vec3

	// WindStrength scales the wind contribution.
	WindStrength float64
}

// Sway animates instance transforms around a captured rest pose.
//
// Each active cycle it displaces every in-range instance along its sway axes
// by a waveform of the world clock, optionally blended toward the wind
// direction. The rest pose is captured the first time an instance appears in a
// snapshot, so the displacement never compounds across cycles.
//
// The host calls UpdateFrameParams every frame; Sway throttles itself to its
// configured update rate and reports dirty only when a new cycle is due.
// UpdateFrameParams and the Transformer interface methods must be called from
// the goroutine that owns the scheduler. LastAnimatedCount and
// LastSkippedCount are safe from any goroutine.
type Sway struct {
	name     string
	priority int
	targets  []types.Container

	updateRate           float64
	amplitude            float64
	frequency            float64
	waveform             Waveform
	phaseMode            PhaseMode
	phaseVariation       float64
	maxDistance          float64
	falloffStartFraction float64
	windInfluence        float64
	seed                 uint64
	axes                 types.Vec3

	frame       FrameParams
	accumulated float64
	dirty       bool

	// Rest locations keyed by container and instance index, captured on first
	// sight in OnHandleIssued.
	baselines map[types.Container]map[int]types.Vec3

	// Counters for the cycle in progress, committed in OnRequestComplete.
	animated atomic.Int64
	skipped  atomic.Int64

	lastAnimated atomic.Int64
	lastSkipped  atomic.Int64
}

// Compile-time assertion that Sway implements Transformer.
var _ types.Transformer = (*Sway)(nil)

// SwayOption configures a Sway transformer.
type SwayOption func(*Sway)

// WithName overrides the registration name. Required when registering more
// than one Sway on the same scheduler.
func WithName(name string) SwayOption {
	return func(s *Sway) { s.name = name }
}

// WithPriority sets the dispatch priority. Higher dispatches first.
func WithPriority(priority int) SwayOption {
	return func(s *Sway) { s.priority = priority }
}

// WithUpdateRate sets how many animation cycles run per second of host time.
// Values <= 0 animate every frame.
func WithUpdateRate(hz float64) SwayOption {
	return func(s *Sway) { s.updateRate = hz }
}

// WithAmplitude sets the peak displacement distance in world units.
func WithAmplitude(amplitude float64) SwayOption {
	return func(s *Sway) { s.amplitude = amplitude }
}

// WithFrequency sets the waveform frequency in cycles per second.
func WithFrequency(hz float64) SwayOption {
	return func(s *Sway) { s.frequency = hz }
}

// WithWaveform selects the displacement waveform.
func WithWaveform(w Waveform) SwayOption {
	return func(s *Sway) { s.waveform = w }
}

// WithPhaseMode selects how per-instance phase offsets are derived.
func WithPhaseMode(mode PhaseMode) SwayOption {
	return func(s *Sway) { s.phaseMode = mode }
}

// WithPhaseVariation scales the per-instance phase spread. 0 synchronizes
// everything regardless of phase mode; 1 spreads across the full period.
func WithPhaseVariation(variation float64) SwayOption {
	return func(s *Sway) { s.phaseVariation = variation }
}

// WithMaxDistance sets the falloff outer radius around the reference location.
// Instances beyond it are skipped entirely. 0 disables distance culling.
func WithMaxDistance(distance float64) SwayOption {
	return func(s *Sway) { s.maxDistance = distance }
}

// WithFalloffStartFraction sets where the falloff band begins as a fraction of
// the max distance. Displacement is full strength inside the band and fades
// linearly to zero at the max distance.
func WithFalloffStartFraction(fraction float64) SwayOption {
	return func(s *Sway) { s.falloffStartFraction = fraction }
}

// WithWindInfluence sets how strongly the displacement bends toward the frame
// wind direction, from 0 (ignore wind) to 1 (fully wind-driven).
func WithWindInfluence(influence float64) SwayOption {
	return func(s *Sway) { s.windInfluence = influence }
}

// WithSeed sets the hash seed for index-based phase, so two Sway instances on
// the same container do not move in lockstep.
func WithSeed(seed uint64) SwayOption {
	return func(s *Sway) { s.seed = seed }
}

// WithAxes sets the displacement direction. Does not need to be normalized;
// its length scales the amplitude.
func WithAxes(axes types.Vec3) SwayOption {
	return func(s *Sway) { s.axes = axes }
}

// NewSway creates a Sway transformer animating the given containers.
//
// Parameters:
//   - targets: Containers to animate (the slice is retained, not copied)
//   - opts: Optional configuration
//
// Returns:
//   - *Sway: Transformer ready for Scheduler.RegisterTransformer
//
// Example:
//
//	sway := transform.NewSway([]batchmut.Container{grass},
//	    transform.WithAmplitude(0.3),
//	    transform.WithFrequency(0.8),
//	    transform.WithMaxDistance(5000),
//	)
func NewSway(targets []types.Container, opts ...SwayOption) *Sway {
	s := &Sway{
		name:                 "sway",
		targets:              targets,
		updateRate:           30,
		amplitude:            0.1,
		frequency:            1.0,
		waveform:             WaveformSine,
		phaseMode:            PhaseIndex,
		phaseVariation:       1.0,
		falloffStartFraction: 0.8,
		windInfluence:        0.5,
		axes:                 types.Vec3{X: 1},
		baselines:            make(map[types.Container]map[int]types.Vec3),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// UpdateFrameParams feeds the current frame state and advances the update
// throttle. Call once per host frame, before Scheduler.Tick.
func (s *Sway) UpdateFrameParams(frame FrameParams) {
	s.frame = frame

	if s.updateRate <= 0 {
		s.dirty = true
		return
	}

	s.accumulated += frame.DeltaTime
	interval := 1.0 / s.updateRate
	if s.accumulated >= interval {
		s.accumulated = math.Mod(s.accumulated, interval)
		s.dirty = true
	}
}

// Name returns the registration name.
func (s *Sway) Name() string { return s.name }

// Priority returns the dispatch priority.
func (s *Sway) Priority() int { return s.priority }

// IsDirty reports whether an animation cycle is due.
func (s *Sway) IsDirty() bool { return s.dirty }

// ClearDirty re-arms the update throttle.
func (s *Sway) ClearDirty() { s.dirty = false }

// BuildRequest declares the target containers and the transform field for
// both reading and writing.
func (s *Sway) BuildRequest() types.SnapshotRequest {
	return types.SnapshotRequest{
		Targets:   s.targets,
		ReadMask:  types.FieldTransform,
		WriteMask: types.FieldTransform,
	}
}

// OnHandleIssued captures the rest location of instances seen for the first
// time. Later snapshots carry already-displaced locations, so only the first
// sighting is authoritative.
func (s *Sway) OnHandleIssued(snapshot types.Snapshot) {
	rest := s.baselines[snapshot.Source]
	if rest == nil {
		rest = make(map[int]types.Vec3, snapshot.Len())
		s.baselines[snapshot.Source] = rest
	}

	for i := range snapshot.Instances {
		inst := &snapshot.Instances[i]
		if _, seen := rest[inst.Index]; !seen {
			rest[inst.Index] = inst.Transform.Location
		}
	}
}

// ProcessChunk computes displaced transforms for every in-range instance and
// releases the handle with the result. Chunks where every instance is out of
// range are abandoned.
func (s *Sway) ProcessChunk(chunk types.Snapshot, handle types.Handle) {
	rest := s.baselines[chunk.Source]
	frame := s.frame

	falloffStart := s.maxDistance * s.falloffStartFraction
	windWeight := clamp01(s.windInfluence * frame.WindStrength)
	blendWind := windWeight > 0 && !frame.WindDirection.IsNearlyZero()

	mutations := make([]types.InstanceMutation, 0, chunk.Len())
	for i := range chunk.Instances {
		inst := &chunk.Instances[i]

		baseline, ok := rest[inst.Index]
		if !ok {
			baseline = inst.Transform.Location
		}

		strength := 1.0
		if s.maxDistance > 0 {
			dist := baseline.Dist(frame.ReferenceLocation)
			if dist > s.maxDistance {
				s.skipped.Add(1)
				continue
			}
			if dist > falloffStart {
				strength = 1 - (dist-falloffStart)/(s.maxDistance-falloffStart)
			}
		}

		wave := s.sample(frame.WorldTime, s.instancePhase(inst.Index, baseline))

		offset := s.axes.Scale(s.amplitude * strength * wave)
		if blendWind {
			windOffset := frame.WindDirection.Scale(s.amplitude * strength * wave)
			offset = offset.Lerp(windOffset, windWeight)
		}

		next := inst.Transform
		next.Location = baseline.Add(offset)

		mutations = append(mutations, types.InstanceMutation{
			Index:     inst.Index,
			Transform: &next,
		})
		s.animated.Add(1)
	}

	if len(mutations) == 0 {
		handle.Abandon()
		return
	}

	handle.Release(types.MutationResult{
		Written:   types.FieldTransform,
		Mutations: mutations,
	})
}

// OnRequestComplete commits the cycle counters. Fires once per dispatch, after
// every chunk has resolved.
func (s *Sway) OnRequestComplete() {
	s.lastAnimated.Store(s.animated.Swap(0))
	s.lastSkipped.Store(s.skipped.Swap(0))
}

// LastAnimatedCount returns how many instances the most recent completed
// cycle displaced. Safe from any goroutine.
func (s *Sway) LastAnimatedCount() int {
	return int(s.lastAnimated.Load())
}

// LastSkippedCount returns how many instances the most recent completed cycle
// culled by distance. Safe from any goroutine.
func (s *Sway) LastSkippedCount() int {
	return int(s.lastSkipped.Load())
}

// instancePhase derives the per-instance phase offset in radians.
func (s *Sway) instancePhase(index int, baseline types.Vec3) float64 {
	if s.phaseVariation == 0 {
		return 0
	}

	switch s.phaseMode {
	case PhasePosition:
		// Spatial phase gives neighboring instances nearby phases.
		return math.Mod(baseline.X+baseline.Y+baseline.Z, 2*math.Pi) * s.phaseVariation

	case PhaseIndex:
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[:8], uint64(index)) //nolint:gosec // index is non-negative
		binary.LittleEndian.PutUint64(buf[8:], s.seed)
		h := xxh3.Hash(buf[:])

		return float64(h%100000) / 100000 * 2 * math.Pi * s.phaseVariation

	default:
		return 0
	}
}

// sample evaluates the configured waveform at the given time and phase,
// returning a value in [-1, 1].
func (s *Sway) sample(worldTime, phase float64) float64 {
	theta := 2*math.Pi*s.frequency*worldTime + phase

	switch s.waveform {
	case WaveformTriangle:
		// Normalized position within the period, shifted so 0 is a peak-to-peak
		// midpoint like sine.
		t := math.Mod(theta/(2*math.Pi)+0.75, 1)

		return 4*math.Abs(t-0.5) - 1

	case WaveformSquare:
		if math.Sin(theta) >= 0 {
			return 1
		}

		return -1

	default:
		return math.Sin(theta)
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
