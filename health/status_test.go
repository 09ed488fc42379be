package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tne-lab/LSL-inlet/component"
)

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"unix path", "failed to open /etc/lslinlet/mapping.yaml", "failed to open [PATH]"},
		{"windows path", "cannot read C:\\Users\\rig\\mapping.json", "cannot read [PATH]"},
		{"http url", "connection failed to https://api.example.com/v1/health", "connection failed to [URL]"},
		{"nats url", "cannot connect to nats://localhost:4222", "cannot connect to [URL]"},
		{"websocket url", "dial ws://monitor.local:8081/ws failed", "dial [URL] failed"},
		{"ip address", "stream host 10.0.0.12 unreachable", "stream host [IP] unreachable"},
		{"credential", "auth failed token=abc123", "auth failed [REDACTED]"},
		{"plain", "transport fault", "transport fault"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeErrorMessage(tt.input))
		})
	}
}

func TestFromComponentHealth(t *testing.T) {
	now := time.Now()

	t.Run("healthy", func(t *testing.T) {
		s := FromComponentHealth("lsl-inlet",
			component.HealthStatus{Healthy: true, LastCheck: now, Uptime: time.Minute},
			component.FlowMetrics{FramesPerSecond: 1000})

		assert.True(t, s.IsHealthy())
		assert.True(t, s.Healthy)
		assert.Equal(t, "lsl-inlet", s.Component)
		assert.Equal(t, "Component healthy", s.Message)
		assert.Equal(t, time.Minute, s.Metrics.Uptime)
		assert.Equal(t, 1000.0, s.Metrics.FramesPerSecond)
		assert.Equal(t, now, s.Metrics.LastActivity)
	})

	t.Run("recovering is degraded", func(t *testing.T) {
		s := FromComponentHealth("lsl-inlet",
			component.HealthStatus{Healthy: true, ErrorCount: 2, LastError: "pull from nats://10.0.0.1:4222 timed out"},
			component.FlowMetrics{LastActivity: now})

		assert.True(t, s.IsDegraded())
		assert.False(t, s.Healthy)
		assert.Equal(t, "pull from [URL] timed out", s.Message)
		assert.Equal(t, 2, s.Metrics.ErrorCount)
		assert.Equal(t, now, s.Metrics.LastActivity)
	})

	t.Run("unhealthy", func(t *testing.T) {
		s := FromComponentHealth("lsl-inlet", component.HealthStatus{Healthy: false}, component.FlowMetrics{})
		assert.True(t, s.IsUnhealthy())
		assert.Equal(t, "Component unhealthy", s.Message)
	})
}

func TestStatus_WithSubStatusDoesNotShare(t *testing.T) {
	base := NewHealthy("system", "ok").WithSubStatus(NewHealthy("a", "ok"))
	left := base.WithSubStatus(NewHealthy("b", "ok"))
	right := base.WithSubStatus(NewDegraded("c", "slow"))

	assert.Len(t, base.SubStatuses, 1)
	assert.Equal(t, "b", left.SubStatuses[1].Component)
	assert.Equal(t, "c", right.SubStatuses[1].Component)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, StatusHealthy},
		{"one degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, StatusDegraded},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("system", tt.subs)
			assert.Equal(t, tt.want, got.Status)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}

	got := Aggregate("system", []Status{NewHealthy("z", ""), NewHealthy("a", "")})
	assert.Equal(t, "a", got.SubStatuses[0].Component)
}
