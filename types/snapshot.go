package types

// SnapshotRequest is a transformer's declaration of what data it needs and where.
//
// The scheduler uses it to determine which containers to snapshot, which fields
// to copy (minimizing allocation cost), and which fields the transformer is
// allowed to write back.
type SnapshotRequest struct {
	// Targets are the containers to include in this snapshot pass.
	// Nil entries are skipped.
	Targets []Container

	// ReadMask declares the fields to copy into each InstanceSnapshot.
	ReadMask Field

	// WriteMask declares the fields the transformer intends to write back.
	// It does not have to be a subset of ReadMask (write-only passes are valid).
	WriteMask Field

	// MaxInstancesPerChunk overrides the scheduler default chunk cap.
	// 0 uses the scheduler configuration. Reserved for spatial sub-chunking;
	// today every container yields exactly one chunk regardless.
	MaxInstancesPerChunk int
}

// InstanceSnapshot is a read-only copy of a single instance's data at the moment
// the snapshot was taken. A field is populated only if the corresponding bit was
// set in the request's ReadMask; callers must consult Snapshot.Populated before
// trusting a field.
type InstanceSnapshot struct {
	// Index is the instance index within the source container. Always valid.
	Index int

	// Transform is populated if the read mask includes FieldTransform.
	Transform Transform

	// CustomData is populated if the read mask includes FieldCustomData.
	CustomData []float32

	// StateFlags is populated if the read mask includes FieldStateFlags.
	StateFlags StateFlags
}

// Snapshot is an immutable point-in-time copy of the eligible instances of one
// chunk of one container. It is the unit of work handed to ProcessChunk.
//
// The transformer owns the snapshot and may read it freely on any goroutine
// without synchronization.
type Snapshot struct {
	// Source is the container this snapshot was taken from.
	Source Container

	// Cell identifies the spatial cell this snapshot covers.
	// Always CellZero until sub-chunking is implemented.
	Cell Cell

	// Populated records which fields were copied into the instance snapshots.
	Populated Field

	// Generation is the container generation token captured at snapshot time.
	// Always 0 today; reserved for slot-reuse staleness detection.
	Generation uint32

	// Instances holds the per-instance data, ordered by ascending index.
	Instances []InstanceSnapshot
}

// IsEmpty reports whether the snapshot contains no instances.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Instances) == 0
}

// Len returns the number of instances in this chunk.
func (s *Snapshot) Len() int {
	return len(s.Instances)
}
