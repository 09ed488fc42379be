package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lslinlet"

// Metrics holds the process-wide metrics. Acquisition counters live with
// the engine; these cover lifecycle, errors and the broker connection.
type Metrics struct {
	ComponentStatus   *prometheus.GaugeVec
	HealthCheckStatus *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec
	ChunksPublished   *prometheus.CounterVec
	PublishDuration   *prometheus.HistogramVec

	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics builds the core metric set without registering it.
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "component",
			Name:      "status",
			Help:      "Component state (0=unconfigured, 1=configured, 2=acquiring, 3=stopped)",
		}, []string{"component"}),

		HealthCheckStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "status",
			Help:      "Health check status (0=unhealthy, 1=healthy)",
		}, []string{"component"}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "errors",
			Name:      "total",
			Help:      "Errors by component and class",
		}, []string{"component", "class"}),

		ChunksPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "chunks_published_total",
			Help:      "Emitted chunks forwarded to a downstream transport",
		}, []string{"component", "subject"}),

		PublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "publish_duration_seconds",
			Help:      "Time spent encoding and publishing one chunk",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"component"}),

		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "connected",
			Help:      "NATS connection status (0=disconnected, 1=connected)",
		}),

		NATSRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "rtt_milliseconds",
			Help:      "NATS round-trip time in milliseconds",
		}),

		NATSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "reconnects_total",
			Help:      "NATS reconnections",
		}),

		NATSCircuitBreaker: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "circuit_breaker",
			Help:      "NATS circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.ComponentStatus,
		c.HealthCheckStatus,
		c.ErrorsTotal,
		c.ChunksPublished,
		c.PublishDuration,
		c.NATSConnected,
		c.NATSRTT,
		c.NATSReconnects,
		c.NATSCircuitBreaker,
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// RecordComponentStatus sets the lifecycle state of a component.
func (c *Metrics) RecordComponentStatus(component string, state int) {
	c.ComponentStatus.WithLabelValues(component).Set(float64(state))
}

// RecordHealthStatus sets the health gauge of a component.
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	c.HealthCheckStatus.WithLabelValues(component).Set(boolGauge(healthy))
}

// RecordError counts an error of the given class ("transient", "invalid", "fatal").
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordChunkPublished counts one chunk forwarded on subject.
func (c *Metrics) RecordChunkPublished(component, subject string, took time.Duration) {
	c.ChunksPublished.WithLabelValues(component, subject).Inc()
	c.PublishDuration.WithLabelValues(component).Observe(took.Seconds())
}

func (c *Metrics) RecordNATSStatus(connected bool) {
	c.NATSConnected.Set(boolGauge(connected))
}

func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

func (c *Metrics) RecordCircuitBreakerState(state int) {
	c.NATSCircuitBreaker.Set(float64(state))
}
