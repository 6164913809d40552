package types

import "math"

// Vec3 is a three-component vector in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the component-wise sum of v and other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Scale returns v multiplied by the scalar s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dist returns the Euclidean distance between v and other.
func (v Vec3) Dist(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z

	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// IsNearlyZero reports whether every component is within a small epsilon of zero.
func (v Vec3) IsNearlyZero() bool {
	const epsilon = 1e-8

	return math.Abs(v.X) < epsilon && math.Abs(v.Y) < epsilon && math.Abs(v.Z) < epsilon
}

// Lerp returns the linear interpolation between v and other at parameter t.
func (v Vec3) Lerp(other Vec3, t float64) Vec3 {
	return Vec3{
		X: v.X + (other.X-v.X)*t,
		Y: v.Y + (other.Y-v.Y)*t,
		Z: v.Z + (other.Z-v.Z)*t,
	}
}

// Transform is a per-instance world transform.
//
// Rotation is expressed as Euler angles in degrees. Scale defaults to zero on a
// zero-value Transform; containers that care about scale should populate it.
type Transform struct {
	Location Vec3 `json:"location"`
	Rotation Vec3 `json:"rotation"`
	Scale    Vec3 `json:"scale"`
}

// IdentityTransform returns a Transform at the origin with unit scale.
func IdentityTransform() Transform {
	return Transform{Scale: Vec3{X: 1, Y: 1, Z: 1}}
}

// Cell identifies one spatial grid cell of a container.
//
// Today the scheduler always dispatches a single chunk per container at the
// zero cell; the coordinates exist so future spatial sub-chunking can key
// in-flight work by {container, cell} without an API change.
type Cell struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

// CellZero is the cell used while sub-chunking is not implemented.
var CellZero = Cell{}
