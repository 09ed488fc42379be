package component

import (
	"log/slog"

	"github.com/tne-lab/LSL-inlet/metric"
	"github.com/tne-lab/LSL-inlet/natsclient"
)

// PlatformMeta identifies the deployment a component runs in.
type PlatformMeta struct {
	Org      string // Organization namespace (e.g., "tne")
	Platform string // Platform identifier (e.g., "rig-2")
}

// Dependencies provides all external dependencies needed by components.
type Dependencies struct {
	NATSClient      *natsclient.Client      // NATS client for messaging (can be nil)
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
	Logger          *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
	Platform        PlatformMeta            // Platform identity
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
