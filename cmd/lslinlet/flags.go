package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	MetricsPort     int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

// parseFlags reads args with environment fallbacks looked up through getenv
func parseFlags(args []string, getenv func(string) string) (*CLIConfig, error) {
	env := envReader{getenv: getenv}
	cfg := &CLIConfig{}

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ConfigPath, "config", env.str("LSLINLET_CONFIG", ""),
		"Path to a JSON configuration file, empty for built-in defaults (env: LSLINLET_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c", env.str("LSLINLET_CONFIG", ""),
		"Path to a JSON configuration file (env: LSLINLET_CONFIG)")
	fs.StringVar(&cfg.LogLevel, "log-level", env.str("LSLINLET_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: LSLINLET_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", env.str("LSLINLET_LOG_FORMAT", "json"),
		"Log format: json, text (env: LSLINLET_LOG_FORMAT)")
	fs.BoolVar(&cfg.Debug, "debug", env.boolean("LSLINLET_DEBUG", false),
		"Enable debug logging (env: LSLINLET_DEBUG)")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", env.integer("LSLINLET_METRICS_PORT", 0),
		"Override the metrics and health port, 0 keeps the configured one (env: LSLINLET_METRICS_PORT)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", env.duration("LSLINLET_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: LSLINLET_SHUTDOWN_TIMEOUT)")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %v", cfg.ShutdownTimeout)
	}
	return nil
}

func printHelp(w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - stream inlet with marker alignment

Usage: %s [options]

Options:
  -c, --config PATH          JSON configuration file (env: LSLINLET_CONFIG)
      --log-level LEVEL      debug, info, warn, error (env: LSLINLET_LOG_LEVEL)
      --log-format FORMAT    json, text (env: LSLINLET_LOG_FORMAT)
      --debug                debug logging (env: LSLINLET_DEBUG)
      --metrics-port PORT    metrics and health port override (env: LSLINLET_METRICS_PORT)
      --shutdown-timeout D   graceful shutdown timeout (env: LSLINLET_SHUTDOWN_TIMEOUT)
      --validate             validate configuration and exit
  -v, --version              show version
  -h, --help                 show this help

Every configuration key can also be set as LSLINLET_<SECTION>_<KEY>,
for example LSLINLET_INLET_GAIN=0.195.

Examples:
  # Generated test signal with text logs
  %s --log-format=text

  # Validate a configuration only
  %s --config=/etc/lslinlet/config.json --validate

Version: %s
Build: %s
`, appName, appName, appName, appName, Version, BuildTime)
}

type envReader struct {
	getenv func(string) string
}

func (e envReader) str(key, def string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return def
}

func (e envReader) boolean(key string, def bool) bool {
	if v, err := strconv.ParseBool(e.getenv(key)); err == nil {
		return v
	}
	return def
}

func (e envReader) integer(key string, def int) int {
	if v, err := strconv.Atoi(e.getenv(key)); err == nil {
		return v
	}
	return def
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(e.getenv(key)); err == nil {
		return v
	}
	return def
}
