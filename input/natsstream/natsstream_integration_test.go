//go:build integration

package natsstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tne-lab/LSL-inlet/acquisition"
	"github.com/tne-lab/LSL-inlet/natsclient"
	"github.com/tne-lab/LSL-inlet/wire"
)

func TestNATSSources_EndToEnd(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithFastStartup())
	peer := tc.NewPeer(t)
	ctx := context.Background()

	chunks, err := NewChunkSource(
		acquisition.StreamInfo{Name: "eeg", Type: "EEG", ChannelCount: 2, NominalRate: 1000},
		Config{Subject: "lsl.it.chunks"}, Deps{Client: tc.Client})
	require.NoError(t, err)
	markers, err := NewMarkerSource("", Config{Subject: "lsl.it.markers"}, Deps{Client: tc.Client})
	require.NoError(t, err)

	require.NoError(t, chunks.Open(ctx))
	require.NoError(t, markers.Open(ctx))
	t.Cleanup(func() {
		_ = chunks.Close()
		_ = markers.Close()
	})
	require.NoError(t, tc.Client.Flush(ctx))

	data, err := wire.EncodeChunk(wire.ChunkMessage{
		Seq: 1, Channels: 2, Samples: []float32{1, 2, 3, 4}, Timestamps: []float64{10, 10.001},
	})
	require.NoError(t, err)
	require.NoError(t, peer.Publish(ctx, "lsl.it.chunks", data))

	marker, err := wire.EncodeMarker(wire.MarkerMessage{Label: "2", Timestamp: 10.0005})
	require.NoError(t, err)
	require.NoError(t, peer.Publish(ctx, "lsl.it.markers", marker))
	require.NoError(t, peer.Flush(ctx))

	pullCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	samples := make([]float32, 8)
	timestamps := make([]float64, 4)
	n, err := chunks.PullChunk(pullCtx, samples, timestamps)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []float64{10, 10.001}, timestamps[:2])

	require.Eventually(t, func() bool { return markers.inbox.Size() == 1 }, 5*time.Second, 10*time.Millisecond)
	m, ok, err := markers.PullMarker(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", m.Label)
}
