package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_NormalizeLatchesFirstFrame(t *testing.T) {
	var c Clock

	first := []float64{100.5, 100.75}
	c.Normalize(first)
	assert.Equal(t, []float64{0, 0.25}, first)

	initial, ok := c.Initial()
	assert.True(t, ok)
	assert.Equal(t, 100.5, initial)

	second := []float64{101.5}
	c.Normalize(second)
	assert.Equal(t, []float64{1}, second)

	c.Normalize(nil)
	_, ok = c.Initial()
	assert.True(t, ok)
}

func TestClock_AssignAndAdvance(t *testing.T) {
	var c Clock
	idx := make([]int64, 3)
	c.Assign(idx)
	assert.Equal(t, []int64{0, 1, 2}, idx)

	c.Advance(3)
	c.Assign(idx[:2])
	assert.Equal(t, []int64{3, 4}, idx[:2])
	assert.Equal(t, int64(3), c.Total())

	c.Reset()
	assert.Zero(t, c.Total())
	_, ok := c.Initial()
	assert.False(t, ok)
}
