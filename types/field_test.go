package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldHas(t *testing.T) {
	mask := FieldTransform | FieldStateFlags

	assert.True(t, mask.Has(FieldTransform))
	assert.True(t, mask.Has(FieldStateFlags))
	assert.False(t, mask.Has(FieldCustomData))

	assert.False(t, FieldNone.Has(FieldTransform))
}

func TestStateFlagsHas(t *testing.T) {
	flags := StateFlags(0b1000_0001)

	assert.True(t, flags.Has(1<<0))
	assert.True(t, flags.Has(1<<7))
	assert.False(t, flags.Has(1<<3))

	// Every representable flag fits in the fixed flag count.
	assert.Equal(t, 8, StateFlagCount)
}
