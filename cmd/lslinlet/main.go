// Package main is the lslinlet entry point. It loads the layered
// configuration, connects to NATS when a NATS source or sink is configured,
// runs the inlet and the optional websocket monitor under a component
// manager, and serves Prometheus metrics and aggregated health.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tne-lab/LSL-inlet/component"
	"github.com/tne-lab/LSL-inlet/config"
	"github.com/tne-lab/LSL-inlet/health"
	"github.com/tne-lab/LSL-inlet/input/inlet"
	"github.com/tne-lab/LSL-inlet/metric"
	"github.com/tne-lab/LSL-inlet/natsclient"
	"github.com/tne-lab/LSL-inlet/output/wsmonitor"
	"github.com/tne-lab/LSL-inlet/pkg/retry"
)

// Build information
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "lslinlet"
)

const healthPollInterval = 5 * time.Second

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:], os.Getenv); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string) error {
	cli, err := parseFlags(args, getenv)
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cli.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cli.ShowHelp {
		printHelp(os.Stdout)
		return nil
	}

	logger := setupLogger(cli.LogLevel, cli.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cli.ConfigPath)
	if err != nil {
		return err
	}
	if cli.Validate {
		logger.Info("Configuration is valid", "config_path", cli.ConfigPath)
		return nil
	}
	if cli.MetricsPort > 0 {
		cfg.Metrics.Port = cli.MetricsPort
	}

	logger.Info("Starting lslinlet",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cli.ConfigPath,
		"source", cfg.Inlet.Source,
		"org", cfg.Platform.Org,
		"platform", cfg.Platform.ID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger, cli.ShutdownTimeout)
}

// loadConfig merges path, if any, over the defaults and applies
// environment overrides
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(true)
	if path != "" {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// serve runs the components until ctx is cancelled, then shuts them down
// within shutdownTimeout
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor(health.WithMetrics(registry.CoreMetrics()))

	natsClient, err := connectNATS(ctx, cfg, registry, monitor, logger)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := natsClient.Close(closeCtx); err != nil {
				logger.Warn("NATS close failed", "error", err)
			}
		}()
	}

	deps := component.Dependencies{
		NATSClient:      natsClient,
		MetricsRegistry: registry,
		Logger:          logger,
		Platform:        component.PlatformMeta{Org: cfg.Platform.Org, Platform: cfg.Platform.ID},
	}

	manager, err := buildComponents(cfg, deps, logger)
	if err != nil {
		return err
	}

	metricsServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	metricsServer.Handle("/health", monitor.Handler(appName))

	if err := manager.Start(ctx, shutdownTimeout); err != nil {
		return fmt.Errorf("start components: %w", err)
	}
	logger.Info("lslinlet started", "components", len(manager.Components()))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		g.Go(metricsServer.Start)
		logger.Info("Serving metrics", "address", metricsServer.Address())
	}
	g.Go(func() error {
		monitor.Poll(gctx, healthPollInterval, manager)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", "timeout", shutdownTimeout)
		stopErr := manager.Stop(shutdownTimeout)
		if err := metricsServer.Stop(); err != nil {
			logger.Warn("Metrics server stop failed", "error", err)
		}
		if stopErr != nil {
			return fmt.Errorf("graceful shutdown failed: %w", stopErr)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("lslinlet shutdown complete")
	return nil
}

// buildComponents creates the inlet and, when enabled, the websocket
// monitor attached to it as a sink tap. The monitor is added first so it is
// listening before acquisition starts and stops after it.
func buildComponents(cfg *config.Config, deps component.Dependencies, logger *slog.Logger) (*component.Manager, error) {
	registry := component.NewRegistry()
	if err := inlet.Register(registry); err != nil {
		return nil, fmt.Errorf("register inlet: %w", err)
	}
	if err := wsmonitor.Register(registry); err != nil {
		return nil, fmt.Errorf("register monitor: %w", err)
	}

	manager := component.NewManager(logger)

	var tap *wsmonitor.Monitor
	if cfg.Output.Monitor.Enabled {
		raw, err := json.Marshal(wsmonitor.Config{
			Port:       cfg.Output.Monitor.Port,
			Path:       cfg.Output.Monitor.Path,
			MaxClients: cfg.Output.Monitor.MaxClients,
		})
		if err != nil {
			return nil, fmt.Errorf("encode monitor config: %w", err)
		}
		comp, err := registry.CreateComponent("ws-monitor", "ws-monitor", raw, deps)
		if err != nil {
			return nil, fmt.Errorf("create monitor: %w", err)
		}
		tap = comp.(*wsmonitor.Monitor)
		if err := manager.Add("ws-monitor", tap); err != nil {
			return nil, err
		}
	}

	raw, err := json.Marshal(inlet.Config{Inlet: cfg.Inlet, Output: cfg.Output})
	if err != nil {
		return nil, fmt.Errorf("encode inlet config: %w", err)
	}
	comp, err := registry.CreateComponent("lsl-inlet", "lsl-inlet", raw, deps)
	if err != nil {
		return nil, fmt.Errorf("create inlet: %w", err)
	}
	in := comp.(*inlet.Inlet)
	if tap != nil {
		if err := in.AttachSink(tap); err != nil {
			return nil, err
		}
	}
	if err := manager.Add("lsl-inlet", in); err != nil {
		return nil, err
	}

	logger.Debug("Components created", "factories", registry.ListComponentTypes())
	return manager, nil
}

// connectNATS returns nil when NATS is disabled. Connection health is
// reported to monitor under "nats".
func connectNATS(
	ctx context.Context, cfg *config.Config, registry *metric.MetricsRegistry,
	monitor *health.Monitor, logger *slog.Logger,
) (*natsclient.Client, error) {
	if !cfg.NATS.Enabled {
		return nil, nil
	}

	opts := []natsclient.ClientOption{
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait.Std()),
		natsclient.WithLogger(logger.With("component", "natsclient")),
		natsclient.WithMetrics(registry),
		natsclient.WithHealthChangeCallback(natsHealthReporter(monitor)),
	}
	opts = append(opts, natsTuning(cfg.NATS)...)
	switch {
	case cfg.NATS.Token != "":
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	case cfg.NATS.Username != "":
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.TLS.Enabled {
		opts = append(opts, natsclient.WithTLS(cfg.NATS.TLS.CertFile, cfg.NATS.TLS.KeyFile, cfg.NATS.TLS.CAFile))
	}

	client, err := natsclient.NewClient(strings.Join(cfg.NATS.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	logger.Info("Connecting to NATS", "urls", cfg.NATS.URLs)
	monitor.UpdateDegraded("nats", "connecting")
	if err := retry.Do(ctx, retry.Persistent(), func() error {
		return client.Connect(ctx)
	}); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}
	return client, nil
}

// natsTuning maps the optional timing settings onto client options. Zero
// values keep the client defaults.
func natsTuning(nc config.NATSConfig) []natsclient.ClientOption {
	var opts []natsclient.ClientOption
	if d := nc.PingInterval.Std(); d > 0 {
		opts = append(opts, natsclient.WithPingInterval(d))
	}
	if d := nc.ConnectTimeout.Std(); d > 0 {
		opts = append(opts, natsclient.WithTimeout(d))
	}
	if d := nc.DrainTimeout.Std(); d > 0 {
		opts = append(opts, natsclient.WithDrainTimeout(d))
	}
	if d := nc.HealthInterval.Std(); d > 0 {
		opts = append(opts, natsclient.WithHealthInterval(d))
	}
	if d := nc.MaxBackoff.Std(); d > 0 {
		opts = append(opts, natsclient.WithMaxBackoff(d))
	}
	if nc.CircuitThreshold > 0 {
		opts = append(opts, natsclient.WithCircuitBreakerThreshold(int32(nc.CircuitThreshold)))
	}
	return opts
}

func natsHealthReporter(monitor *health.Monitor) func(bool) {
	return func(healthy bool) {
		if healthy {
			monitor.UpdateHealthy("nats", "connected")
			return
		}
		monitor.UpdateUnhealthy("nats", "connection lost")
	}
}
