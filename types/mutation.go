package types

// SlotOverride is a sparse custom data update targeting a single slot.
type SlotOverride struct {
	Slot  int
	Value float32
}

// InstanceMutation is a single instance mutation returned by a transformer.
//
// Only fields declared in the result's Written mask are applied; optional
// fields use nil to mean "not set". The index must have been present in the
// originating snapshot.
type InstanceMutation struct {
	// Index of the instance to mutate.
	Index int

	// Transform is the new world transform, applied if the written mask
	// includes FieldTransform.
	Transform *Transform

	// CustomData is a full replacement for the custom data array, applied if
	// the written mask includes FieldCustomData. Nil means no full write.
	CustomData []float32

	// SlotOverrides are sparse custom data writes, applied after CustomData if
	// both are set. Preferred over CustomData when only a few slots change.
	SlotOverrides []SlotOverride

	// StateFlags is the new state flag byte, applied if the written mask
	// includes FieldStateFlags. The scheduler decomposes it into individual
	// flag toggles.
	StateFlags *StateFlags
}

// MutationResult is what a transformer returns after processing one snapshot
// chunk. Instances not listed are left unchanged; a result may be empty.
//
// Transformers may not introduce indices that were absent from the originating
// snapshot and may not add or remove instances (no structural changes).
type MutationResult struct {
	// Target is the container this result applies to. The scheduler stamps it
	// from the handle on release; transformers do not need to fill it in.
	Target Container

	// Cell identifies the chunk this result resolves.
	// Stamped from the handle on release.
	Cell Cell

	// Generation is the token from the originating snapshot. Results whose
	// token no longer matches the container are discarded as stale.
	Generation uint32

	// Written declares the fields this result intends to write. Writes to
	// undeclared fields are ignored.
	Written Field

	// Mutations to apply. May be empty (no-op for this chunk).
	Mutations []InstanceMutation
}

// IsEmpty reports whether there is anything to apply.
func (r *MutationResult) IsEmpty() bool {
	return len(r.Mutations) == 0
}
