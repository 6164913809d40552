package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3Math(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: 4, Y: 6, Z: 3}

	assert.Equal(t, Vec3{X: 5, Y: 8, Z: 6}, a.Add(b))
	assert.Equal(t, Vec3{X: 2, Y: 4, Z: 6}, a.Scale(2))
	assert.InDelta(t, 5.0, a.Dist(b), 1e-9)
}

func TestVec3IsNearlyZero(t *testing.T) {
	assert.True(t, Vec3{}.IsNearlyZero())
	assert.True(t, Vec3{X: 1e-12}.IsNearlyZero())
	assert.False(t, Vec3{Y: 0.001}.IsNearlyZero())
}

func TestVec3Lerp(t *testing.T) {
	a := Vec3{X: 0, Y: 10}
	b := Vec3{X: 10, Y: 20}

	assert.Equal(t, a, a.Lerp(b, 0))
	assert.Equal(t, b, a.Lerp(b, 1))
	assert.Equal(t, Vec3{X: 5, Y: 15}, a.Lerp(b, 0.5))
}

func TestIdentityTransform(t *testing.T) {
	id := IdentityTransform()

	assert.True(t, id.Location.IsNearlyZero())
	assert.True(t, id.Rotation.IsNearlyZero())
	assert.Equal(t, Vec3{X: 1, Y: 1, Z: 1}, id.Scale)
}

func TestSnapshotHelpers(t *testing.T) {
	empty := Snapshot{}
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, 0, empty.Len())

	snap := Snapshot{Instances: []InstanceSnapshot{{Index: 0}, {Index: 2}}}
	assert.False(t, snap.IsEmpty())
	assert.Equal(t, 2, snap.Len())

	result := MutationResult{}
	assert.True(t, result.IsEmpty())
	result.Mutations = []InstanceMutation{{Index: 1}}
	assert.False(t, result.IsEmpty())
}
