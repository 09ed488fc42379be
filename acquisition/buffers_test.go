package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/tne-lab/LSL-inlet/errors"
)

func TestBuffers_Configure(t *testing.T) {
	b := NewBuffers(DefaultMaxChannels, 1024)
	require.False(t, b.Configured())

	require.NoError(t, b.Configure(4, 256))
	assert.True(t, b.Configured())
	assert.Equal(t, Geometry{ChannelCount: 4, FramesPerPull: 256}, b.Geometry())
	assert.Len(t, b.Samples(), 1024)
	assert.Len(t, b.Timestamps(), 256)
	assert.Len(t, b.Indices(), 256)
	assert.Len(t, b.Events(), 256)
	for _, code := range b.Events() {
		assert.Zero(t, code)
	}

	// reconfigure to a new channel count
	require.NoError(t, b.Configure(2, 100))
	assert.Len(t, b.Samples(), 200)
	assert.Len(t, b.Events(), 100)
}

func TestBuffers_ConfigureFailures(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		frames   int
	}{
		{"zero channels", 0, 256},
		{"negative frames", 2, -1},
		{"too many channels", DefaultMaxChannels + 1, 256},
		{"too many frames", 2, 2048},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffers(DefaultMaxChannels, 1024)
			require.NoError(t, b.Configure(2, 16))

			err := b.Configure(tt.channels, tt.frames)
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrAllocationFailed)
			assert.True(t, errs.IsFatal(err))
			assert.False(t, b.Configured())
			assert.Equal(t, Geometry{}, b.Geometry())
		})
	}
}

func TestBuffers_ResetEvents(t *testing.T) {
	b := NewBuffers(0, 0)
	require.NoError(t, b.Configure(1, 8))

	events := b.Events()
	for i := range events {
		events[i] = uint64(i + 1)
	}
	b.ResetEvents(5)
	assert.Equal(t, []uint64{0, 0, 0, 0, 0, 6, 7, 8}, b.Events())

	b.ClearEvents()
	assert.Equal(t, make([]uint64, 8), b.Events())
}

func TestGeometry_Validate(t *testing.T) {
	assert.NoError(t, Geometry{ChannelCount: 1, FramesPerPull: 1}.Validate())
	assert.Equal(t, 512, Geometry{ChannelCount: 2, FramesPerPull: 256}.Scalars())

	err := Geometry{ChannelCount: 0, FramesPerPull: 1}.Validate()
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}
