// Package health tracks component health for the inlet process.
//
// A Monitor holds one Status per component. Statuses are healthy, degraded or
// unhealthy; Aggregate folds them into a single system status where any
// unhealthy component makes the whole unhealthy.
//
// Components report through component.HealthStatus. FromComponentHealth
// converts that report and strips URLs, paths, addresses and credentials from
// error text before it is exposed:
//
//	monitor := health.NewMonitor(health.WithMetrics(registry.CoreMetrics()))
//	go monitor.Poll(ctx, 5*time.Second, manager)
//	metricsServer.Handle("/health", monitor.Handler("lslinlet"))
//
// The handler answers 200 for healthy or degraded and 503 for unhealthy, with
// the aggregated status as JSON.
package health
