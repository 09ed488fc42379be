package natsclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/tne-lab/LSL-inlet/errors"
	"github.com/tne-lab/LSL-inlet/metric"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, time.Second, c.Backoff())
}

func TestNewClient_InvalidOption(t *testing.T) {
	_, err := NewClient("nats://localhost:4222", WithCircuitBreakerThreshold(0))
	require.Error(t, err)
	assert.True(t, errs.IsInvalid(err))

	_, err = NewClient("nats://localhost:4222", WithMaxBackoff(0))
	require.Error(t, err)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	c, err := NewClient("nats://invalid:4222", WithCircuitBreakerThreshold(3))
	require.NoError(t, err)

	c.recordFailure()
	c.recordFailure()
	assert.NotEqual(t, StatusCircuitOpen, c.Status())

	c.recordFailure()
	assert.Equal(t, StatusCircuitOpen, c.Status())
	assert.Equal(t, int32(3), c.failures.Load())

	err = c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		c.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, c.Status())

	c.resetCircuit()
	assert.Equal(t, int32(0), c.failures.Load())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, time.Second, c.Backoff())
}

func TestCircuitBreaker_BackoffGrowsAndCaps(t *testing.T) {
	c, err := NewClient("nats://localhost:4222", WithMaxBackoff(3*time.Second))
	require.NoError(t, err)

	assert.Equal(t, time.Second, c.Backoff())

	for i := 0; i < 5; i++ {
		c.recordFailure()
	}
	assert.Equal(t, 2*time.Second, c.Backoff())

	for i := 0; i < 5; i++ {
		c.recordFailure()
	}
	assert.Equal(t, 3*time.Second, c.Backoff())
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	c.setStatus(StatusCircuitOpen)
	c.testCircuit()
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestConnectionStatus_String(t *testing.T) {
	tests := map[ConnectionStatus]string{
		StatusDisconnected:   "disconnected",
		StatusConnecting:     "connecting",
		StatusConnected:      "connected",
		StatusReconnecting:   "reconnecting",
		StatusCircuitOpen:    "circuit_open",
		ConnectionStatus(42): "unknown",
	}
	for status, want := range tests {
		assert.Equal(t, want, status.String())
	}
}

func TestClient_ConcurrentFailures(t *testing.T) {
	c, err := NewClient("nats://localhost:4222", WithCircuitBreakerThreshold(1000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.recordFailure()
			_ = c.Status()
			_ = c.IsHealthy()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(50), c.failures.Load())
}

func TestWaitForConnection_Timeout(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err = c.WaitForConnection(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConnectionTimeout)
	assert.True(t, errs.IsTransient(err))
}

func TestNotConnectedOperations(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.ErrorIs(t, c.Publish(context.Background(), "lsl.out", []byte("x")), ErrNotConnected)
	_, err = c.Subscribe("lsl.in", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = c.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.Flush(context.Background()), ErrNotConnected)

	assert.NoError(t, c.Close(context.Background()))
	assert.NoError(t, c.Close(context.Background()), "second close is a no-op")
}

func TestConnectionOptions(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithName("lsl-inlet"),
		WithCredentials("user", "pass"),
		WithToken("token"),
		WithTLS("cert.pem", "key.pem", "ca.pem"),
	)
	require.NoError(t, err)

	// 9 base options plus credentials, token, cert, CA and name
	assert.Len(t, c.connectionOptions(), 14)
}

func TestTuningOptions(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithPingInterval(7*time.Second),
		WithDrainTimeout(3*time.Second),
		WithTimeout(time.Second),
		WithHealthInterval(0),
		WithMaxBackoff(4*time.Second),
		WithReconnectWait(250*time.Millisecond),
	)
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, c.pingInterval)
	assert.Equal(t, 3*time.Second, c.drainTimeout)
	assert.Equal(t, time.Second, c.timeout)
	assert.Zero(t, c.healthInterval)
	assert.Equal(t, 4*time.Second, c.maxBackoff)
	assert.Equal(t, 250*time.Millisecond, c.reconnectWait)
}

func TestHealthChangeCallback(t *testing.T) {
	changes := make(chan bool, 4)
	c, err := NewClient("nats://localhost:4222",
		WithHealthChangeCallback(func(healthy bool) { changes <- healthy }))
	require.NoError(t, err)

	c.handleDisconnect(nil, nil)
	assert.Equal(t, StatusReconnecting, c.Status())
	assert.False(t, <-changes)

	c.handleReconnect(nil)
	assert.Equal(t, StatusConnected, c.Status())
	assert.True(t, <-changes)

	c.handleClosed(nil)
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, <-changes)
}

func TestClient_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	c, err := NewClient("nats://localhost:4222", WithMetrics(registry))
	require.NoError(t, err)

	core := registry.CoreMetrics()

	c.setStatus(StatusConnected)
	assert.Equal(t, 1.0, testutil.ToFloat64(core.NATSConnected))

	c.setStatus(StatusCircuitOpen)
	assert.Equal(t, 0.0, testutil.ToFloat64(core.NATSConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.NATSCircuitBreaker))

	c.handleReconnect(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(core.NATSReconnects))
	assert.Equal(t, 0.0, testutil.ToFloat64(core.NATSCircuitBreaker))
}

func TestConnect_UnreachableServer(t *testing.T) {
	c, err := NewClient("nats://127.0.0.1:1", WithTimeout(100*time.Millisecond), WithMaxReconnects(0))
	require.NoError(t, err)

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, int32(1), c.failures.Load())
}
