package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTee(t *testing.T) {
	primary := &recordSink{limit: 2}
	tap := &recordSink{}
	tee := NewTee(primary, nil, tap)

	n := tee.Append(Chunk{Frames: 3, Indices: []int64{0, 1, 2}})
	assert.Equal(t, 2, n)
	assert.Len(t, primary.all(), 1)
	assert.Len(t, tap.all(), 1)

	tee.Clear()
	assert.Equal(t, 1, primary.cleared)
	assert.Equal(t, 1, tap.cleared)
	assert.Empty(t, tap.all())
}

func TestChunk_CloneIsIndependent(t *testing.T) {
	c := Chunk{
		Frames:     2,
		Samples:    []float32{1, 2},
		Timestamps: []float64{0, 1},
		Indices:    []int64{5, 6},
		EventCodes: []uint64{0, 3},
	}
	clone := c.Clone()
	c.Samples[0] = 99
	c.EventCodes[1] = 0

	assert.Equal(t, float32(1), clone.Samples[0])
	assert.Equal(t, uint64(3), clone.EventCodes[1])
	assert.Equal(t, int64(5), clone.FirstIndex())
	assert.Equal(t, 1, clone.Events())
	assert.Equal(t, int64(-1), Chunk{}.FirstIndex())
}
