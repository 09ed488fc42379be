// Package metric provides the Prometheus registry and the /metrics HTTP
// server.
//
// MetricsRegistry registers a small set of process-wide metrics (component
// state, health, error classes, publish counts, NATS connection state) plus
// the Go runtime collectors. Components register their own metrics through
// the MetricsRegistrar methods, keyed by component and metric name so that a
// second registration of the same pair fails instead of panicking.
//
// A nil *MetricsRegistry everywhere in the inlet means metrics are disabled;
// components check for nil before creating collectors.
//
//	registry := metric.NewMetricsRegistry()
//	srv := metric.NewServer(9090, "/metrics", registry)
//	g.Go(srv.Start)
//	defer srv.Stop()
package metric
