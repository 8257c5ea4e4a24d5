package exercise

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByID(t *testing.T) {
	ex, ok := ByID(Plank)
	assert.True(t, ok)
	assert.Equal(t, "Plank", ex.Name)
	assert.True(t, ex.IsStaticHold)

	_, ok = ByID(99)
	assert.False(t, ok)
}

func TestOnlyPlankIsStaticHold(t *testing.T) {
	for _, ex := range All() {
		assert.Equal(t, ex.ID == Plank, IsStaticHold(ex.ID), "exercise %d", ex.ID)
	}
	assert.False(t, IsStaticHold(99), "unknown ids score by reps")
}

func TestAllIsInIDOrder(t *testing.T) {
	all := All()
	assert.Len(t, all, 4)
	for i, ex := range all {
		assert.Equal(t, i+1, ex.ID)
	}
}
