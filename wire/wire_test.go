package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	errs "github.com/tne-lab/LSL-inlet/errors"
)

func TestChunk_EncodeDecode(t *testing.T) {
	in := ChunkMessage{
		StreamID:   "eeg-1",
		Seq:        7,
		Channels:   2,
		Samples:    []float32{1, 2, 3, 4, 5, 6},
		Timestamps: []float64{10.0, 10.001, 10.002},
	}

	data, err := EncodeChunk(in)
	require.NoError(t, err)

	out, err := DecodeChunk(data)
	require.NoError(t, err)
	assert.Equal(t, TypeChunk, out.Type)
	assert.Equal(t, in.Samples, out.Samples)
	assert.Equal(t, in.Timestamps, out.Timestamps)
	assert.Equal(t, 3, out.Frames())
	assert.Equal(t, uint64(7), out.Seq)
}

func TestDecodeChunk_Rejects(t *testing.T) {
	marker, err := EncodeMarker(MarkerMessage{Label: "Stim_A", Timestamp: 1})
	require.NoError(t, err)

	zeroChannels, err := EncodeChunk(ChunkMessage{Channels: 0})
	require.NoError(t, err)

	untyped, err := msgpack.Marshal(map[string]any{"channels": 2})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte{0xc1, 0xff, 0x00}},
		{"wrong type", marker},
		{"missing type", untyped},
		{"zero channels", zeroChannels},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeChunk(tt.data)
			require.Error(t, err)
			assert.True(t, errs.IsInvalid(err))
		})
	}
}

func TestMarker_EncodeDecode(t *testing.T) {
	data, err := EncodeMarker(MarkerMessage{StreamID: "markers", Label: "5", Timestamp: 12.5})
	require.NoError(t, err)

	out, err := DecodeMarker(data)
	require.NoError(t, err)
	assert.Equal(t, "5", out.Label)
	assert.Equal(t, 12.5, out.Timestamp)
}

func TestAligned_EncodeDecode(t *testing.T) {
	in := AlignedChunk{
		SessionID:  "3f1c",
		Stream:     "EEG-1",
		Channels:   1,
		FirstIndex: 100,
		Samples:    []float32{0.5, 1},
		Timestamps: []float64{0, 0.001},
		EventCodes: []uint64{0, 3},
	}

	data, err := EncodeAligned(in)
	require.NoError(t, err)

	out, err := DecodeAligned(data)
	require.NoError(t, err)
	assert.Equal(t, int64(100), out.FirstIndex)
	assert.Equal(t, []uint64{0, 3}, out.EventCodes)
	assert.Equal(t, "3f1c", out.SessionID)
}
