package types

// Field is a bitmask declaring which per-instance data fields a transformer
// wants to read or write. Snapshots only populate declared fields to minimize
// copy cost, and results only apply fields declared in their written mask.
type Field uint8

const (
	// FieldNone declares no fields.
	FieldNone Field = 0

	// FieldTransform is the per-instance world transform.
	FieldTransform Field = 1 << 0

	// FieldCustomData is the per-instance custom float data (material params).
	FieldCustomData Field = 1 << 1

	// FieldStateFlags is the per-instance state flag byte.
	FieldStateFlags Field = 1 << 2

	// Tag mutation is reserved for a future revision.
)

// Has reports whether all bits of other are set in f.
func (f Field) Has(other Field) bool {
	return f&other == other
}

// StateFlags is a byte of eight independent per-instance state bits.
//
// The scheduler treats a written state-flag value as a full 8-bit replacement:
// it decomposes the byte and toggles each bit individually on the container so
// unrelated container-side bookkeeping tied to individual flags stays correct.
type StateFlags uint8

// Has reports whether the given flag bit is set.
func (s StateFlags) Has(flag StateFlags) bool {
	return s&flag != 0
}

// StateFlagCount is the number of independent state flag bits.
const StateFlagCount = 8
