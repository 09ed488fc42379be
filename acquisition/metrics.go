package acquisition

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tne-lab/LSL-inlet/metric"
)

// Metrics are the engine's Prometheus collectors. A nil *Metrics records
// nothing, so engines built without a registry need no special casing.
type Metrics struct {
	frames           prometheus.Counter
	chunks           prometheus.Counter
	markersAssigned  prometheus.Counter
	markersDropped   *prometheus.CounterVec
	transportFaults  prometheus.Counter
	framingAnomalies prometheus.Counter
	discardedScalars prometheus.Counter
	sinkShortWrites  prometheus.Counter
	cycleDuration    prometheus.Histogram
	sampleIndex      prometheus.Gauge
}

// NewMetrics creates and registers the acquisition collectors under
// componentName. A nil registry returns nil metrics and no error.
func NewMetrics(registry *metric.MetricsRegistry, componentName string) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"component": componentName}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lslinlet", Subsystem: "acquisition", Name: name, Help: help, ConstLabels: labels,
		})
	}

	m := &Metrics{
		frames:           counter("frames_total", "Frames emitted to the output sink"),
		chunks:           counter("chunks_total", "Non-empty chunks emitted"),
		markersAssigned:  counter("markers_assigned_total", "Markers attached to a frame"),
		transportFaults:  counter("transport_faults_total", "Source reads that failed"),
		framingAnomalies: counter("framing_anomalies_total", "Pulls whose scalar count was not a multiple of the channel count"),
		discardedScalars: counter("discarded_scalars_total", "Trailing scalars discarded by framing truncation"),
		sinkShortWrites:  counter("sink_short_writes_total", "Emits where the sink accepted fewer frames than offered"),
		markersDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lslinlet", Subsystem: "acquisition", Name: "markers_dropped_total",
			Help: "Markers dropped without being attached", ConstLabels: labels,
		}, []string{"reason"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lslinlet", Subsystem: "acquisition", Name: "cycle_duration_seconds",
			Help:        "Duration of non-empty acquisition cycles",
			ConstLabels: labels,
			Buckets:     []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		sampleIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lslinlet", Subsystem: "acquisition", Name: "sample_index",
			Help: "Frames emitted in the current session", ConstLabels: labels,
		}),
	}

	for name, c := range map[string]prometheus.Counter{
		"frames":            m.frames,
		"chunks":            m.chunks,
		"markers_assigned":  m.markersAssigned,
		"transport_faults":  m.transportFaults,
		"framing_anomalies": m.framingAnomalies,
		"discarded_scalars": m.discardedScalars,
		"sink_short_writes": m.sinkShortWrites,
	} {
		if err := registry.RegisterCounter(componentName, name, c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterCounterVec(componentName, "markers_dropped", m.markersDropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(componentName, "cycle_duration", m.cycleDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(componentName, "sample_index", m.sampleIndex); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) recordEmit(frames int, total int64, took time.Duration) {
	if m == nil {
		return
	}
	m.frames.Add(float64(frames))
	m.chunks.Inc()
	m.sampleIndex.Set(float64(total))
	m.cycleDuration.Observe(took.Seconds())
}

func (m *Metrics) recordAssigned() {
	if m == nil {
		return
	}
	m.markersAssigned.Inc()
}

func (m *Metrics) recordDropped(reason string) {
	if m == nil {
		return
	}
	m.markersDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordTransportFault() {
	if m == nil {
		return
	}
	m.transportFaults.Inc()
}

func (m *Metrics) recordFraming(discarded int) {
	if m == nil {
		return
	}
	m.framingAnomalies.Inc()
	m.discardedScalars.Add(float64(discarded))
}

func (m *Metrics) recordShortWrite() {
	if m == nil {
		return
	}
	m.sinkShortWrites.Inc()
}

func (m *Metrics) resetSession() {
	if m == nil {
		return
	}
	m.sampleIndex.Set(0)
}
