package batchmut

import "github.com/arloliu/batchmut/types"

// Re-export types from the internal types package.
//
// This file provides a stable, backward-compatible public API for the library's
// core types and interfaces. It uses type aliases to re-export definitions
// from the `types` subpackage, which contains the actual implementations.
//
// This pattern solves the "import cycle" problem by allowing internal packages
// to depend on `types` without depending on the root `batchmut` package, while
// still providing a convenient `batchmut.Snapshot`, `batchmut.Logger`, etc. for users.
type (
	Field            = types.Field
	StateFlags       = types.StateFlags
	Vec3             = types.Vec3
	Transform        = types.Transform
	Cell             = types.Cell
	SnapshotRequest  = types.SnapshotRequest
	InstanceSnapshot = types.InstanceSnapshot
	Snapshot         = types.Snapshot
	SlotOverride     = types.SlotOverride
	InstanceMutation = types.InstanceMutation
	MutationResult   = types.MutationResult
)

// Re-export interfaces from the internal types package for convenience.
type (
	Container        = types.Container
	Transformer      = types.Transformer
	Handle           = types.Handle
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export Field constants from the internal types package.
const (
	FieldNone       = types.FieldNone
	FieldTransform  = types.FieldTransform
	FieldCustomData = types.FieldCustomData
	FieldStateFlags = types.FieldStateFlags
)
