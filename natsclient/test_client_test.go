//go:build integration

package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestClient_Connects(t *testing.T) {
	tc := NewTestClient(t, WithFastStartup())
	require.NotNil(t, tc.Client)
	assert.True(t, tc.Client.IsHealthy())
	assert.NotEmpty(t, tc.URL)

	rtt, err := tc.Client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))
}

func TestClient_PublishSubscribe(t *testing.T) {
	tc := NewTestClient(t, WithFastStartup())
	peer := tc.NewPeer(t)

	received := make(chan []byte, 1)
	_, err := tc.Client.Subscribe("lsl.test.chunks", func(msg *nats.Msg) {
		received <- msg.Data
	})
	require.NoError(t, err)
	require.NoError(t, tc.Client.Flush(context.Background()))

	require.NoError(t, peer.Publish(context.Background(), "lsl.test.chunks", []byte("frame")))

	select {
	case data := <-received:
		assert.Equal(t, []byte("frame"), data)
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestClient_CloseUnsubscribes(t *testing.T) {
	tc := NewTestClient(t, WithFastStartup())
	peer := tc.NewPeer(t)

	sub, err := peer.Subscribe("lsl.test.close", func(*nats.Msg) {})
	require.NoError(t, err)
	require.True(t, sub.IsValid())

	require.NoError(t, peer.Close(context.Background()))
	assert.False(t, sub.IsValid())
	assert.Equal(t, StatusDisconnected, peer.Status())
}
