package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	errs "github.com/tne-lab/LSL-inlet/errors"
)

// Source kinds an inlet can pull from
const (
	SourceNATS      = "nats"
	SourceSynthetic = "synthetic"
)

// Defaults carried over from the acquisition plugin
const (
	DefaultFramesPerPull = 256
	DefaultGain          = 1.0
	DefaultMaxChannels   = 64
	DefaultSampleRate    = 10000.0
	DefaultTTLOutputs    = 8
	DefaultPullTimeout   = 100 * time.Millisecond
	DefaultStopWait      = 500 * time.Millisecond
	DefaultRingCapacity  = 1024
)

// Config represents the complete application configuration
type Config struct {
	Version  string         `json:"version"`
	Platform PlatformConfig `json:"platform"`
	NATS     NATSConfig     `json:"nats"`
	Metrics  MetricsConfig  `json:"metrics"`
	Inlet    InletConfig    `json:"inlet"`
	Output   OutputConfig   `json:"output"`
}

// PlatformConfig identifies the deployment
type PlatformConfig struct {
	Org         string `json:"org"`
	ID          string `json:"id"`
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// NATSConfig defines NATS connection settings. NATS is only required when a
// NATS-backed source or sink is configured.
type NATSConfig struct {
	Enabled       bool          `json:"enabled"`
	URLs          []string      `json:"urls,omitempty"`
	Name          string        `json:"name,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait Duration      `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	TLS           NATSTLSConfig `json:"tls,omitempty"`

	// Connection tuning; zero keeps the client default
	PingInterval     Duration `json:"ping_interval,omitempty"`
	ConnectTimeout   Duration `json:"connect_timeout,omitempty"`
	DrainTimeout     Duration `json:"drain_timeout,omitempty"`
	HealthInterval   Duration `json:"health_interval,omitempty"`
	MaxBackoff       Duration `json:"max_backoff,omitempty"`
	CircuitThreshold int      `json:"circuit_threshold,omitempty"`
}

// NATSTLSConfig for secure NATS connections
type NATSTLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	CAFile   string `json:"ca_file,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// StreamSelector picks the published stream an inlet binds to. Channel count
// and nominal rate are what the stream advertises.
type StreamSelector struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	SourceID     string  `json:"source_id,omitempty"`
	ChannelCount int     `json:"channel_count,omitempty"`
	NominalRate  float64 `json:"nominal_rate,omitempty"`
}

// MarkerSelector picks the optional marker stream
type MarkerSelector struct {
	Enabled      bool   `json:"enabled"`
	Name         string `json:"name,omitempty"`
	Type         string `json:"type,omitempty"`
	ChannelCount int    `json:"channel_count,omitempty"`
}

// InletNATSConfig names the subjects a NATS-backed source subscribes to
type InletNATSConfig struct {
	ChunkSubject  string `json:"chunk_subject"`
	MarkerSubject string `json:"marker_subject,omitempty"`
	InboxSize     int    `json:"inbox_size,omitempty"`
}

// SyntheticConfig drives the deterministic generator source
type SyntheticConfig struct {
	Amplitude    float64  `json:"amplitude"`
	FrequencyHz  float64  `json:"frequency_hz"`
	MarkerEvery  Duration `json:"marker_every,omitempty"`
	MarkerLabels []string `json:"marker_labels,omitempty"`
}

// InletConfig configures the acquisition component
type InletConfig struct {
	Source        string          `json:"source"`
	Stream        StreamSelector  `json:"stream"`
	Markers       MarkerSelector  `json:"markers"`
	FramesPerPull int             `json:"frames_per_pull"`
	Gain          float64         `json:"gain"`
	MaxChannels   int             `json:"max_channels"`
	TTLOutputs    int             `json:"ttl_outputs"`
	PullTimeout   Duration        `json:"pull_timeout"`
	StopWait      Duration        `json:"stop_wait"`
	MappingFile   string          `json:"mapping_file,omitempty"`
	NATS          InletNATSConfig `json:"nats"`
	Synthetic     SyntheticConfig `json:"synthetic"`
}

// RingConfig sizes the in-process output ring
type RingConfig struct {
	Capacity int `json:"capacity"`
}

// PublishConfig controls republishing emitted chunks to NATS
type PublishConfig struct {
	Enabled bool   `json:"enabled"`
	Subject string `json:"subject,omitempty"`
}

// MonitorConfig controls the websocket monitor
type MonitorConfig struct {
	Enabled    bool   `json:"enabled"`
	Port       int    `json:"port,omitempty"`
	Path       string `json:"path,omitempty"`
	MaxClients int    `json:"max_clients,omitempty"`
}

// OutputConfig configures the sinks emitted chunks are appended to
type OutputConfig struct {
	Ring    RingConfig    `json:"ring"`
	NATS    PublishConfig `json:"nats"`
	Monitor MonitorConfig `json:"monitor"`
}

// Default returns the built-in configuration every layer merges over
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Platform: PlatformConfig{
			Org: "tne",
			ID:  "local",
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			Name:          "lslinlet",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Inlet: InletConfig{
			Source: SourceSynthetic,
			Stream: StreamSelector{
				Name:         "synthetic",
				Type:         "EEG",
				ChannelCount: 1,
				NominalRate:  DefaultSampleRate,
			},
			Markers: MarkerSelector{
				Type:         "Markers",
				ChannelCount: 1,
			},
			FramesPerPull: DefaultFramesPerPull,
			Gain:          DefaultGain,
			MaxChannels:   DefaultMaxChannels,
			TTLOutputs:    DefaultTTLOutputs,
			PullTimeout:   Duration(DefaultPullTimeout),
			StopWait:      Duration(DefaultStopWait),
			NATS: InletNATSConfig{
				ChunkSubject:  "lsl.stream.chunks",
				MarkerSubject: "lsl.stream.markers",
				InboxSize:     64,
			},
			Synthetic: SyntheticConfig{
				Amplitude:   100,
				FrequencyHz: 10,
			},
		},
		Output: OutputConfig{
			Ring: RingConfig{Capacity: DefaultRingCapacity},
			NATS: PublishConfig{Subject: "lslinlet.chunks"},
			Monitor: MonitorConfig{
				Port:       8081,
				Path:       "/ws",
				MaxClients: 16,
			},
		},
	}
}

var subjectRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]+(\.[a-zA-Z0-9_\-*>]+)*$`)

// Validate checks the semantic constraints the schema cannot express
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if c.Version != "" {
		if _, _, _, err := parseSemVer(c.Version); err != nil {
			add("version: %v", err)
		}
	}

	if c.Platform.Org == "" {
		add("platform.org is required")
	}
	c.Platform.Org = strings.ToLower(c.Platform.Org)

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		add("metrics.port %d outside 1-65535", c.Metrics.Port)
	}

	problems = append(problems, c.Inlet.validate()...)
	problems = append(problems, c.Output.validate()...)

	needsNATS := c.Inlet.Source == SourceNATS || c.Output.NATS.Enabled
	if needsNATS && !c.NATS.Enabled {
		add("nats.enabled must be true when a NATS source or sink is configured")
	}
	if c.NATS.Enabled && len(c.NATS.URLs) == 0 {
		add("nats.urls is required when nats is enabled")
	}
	if c.NATS.CircuitThreshold < 0 {
		add("nats.circuit_threshold must not be negative, got %d", c.NATS.CircuitThreshold)
	}
	if c.NATS.PingInterval < 0 || c.NATS.ConnectTimeout < 0 || c.NATS.DrainTimeout < 0 ||
		c.NATS.HealthInterval < 0 || c.NATS.MaxBackoff < 0 {
		add("nats timing settings must not be negative")
	}

	return joinProblems("Config", problems)
}

// Validate checks the inlet section on its own
func (ic *InletConfig) Validate() error {
	return joinProblems("InletConfig", ic.validate())
}

// Validate checks the output section on its own
func (oc *OutputConfig) Validate() error {
	return joinProblems("OutputConfig", oc.validate())
}

func joinProblems(component string, problems []error) error {
	if len(problems) == 0 {
		return nil
	}
	return errs.WrapInvalid(
		fmt.Errorf("%w: %w", errs.ErrInvalidConfig, errors.Join(problems...)),
		component, "Validate", "semantic validation")
}

func (ic *InletConfig) validate() []error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	switch ic.Source {
	case SourceNATS:
		if !subjectRegex.MatchString(ic.NATS.ChunkSubject) {
			add("inlet.nats.chunk_subject %q is not a valid subject", ic.NATS.ChunkSubject)
		}
		if ic.Markers.Enabled && !subjectRegex.MatchString(ic.NATS.MarkerSubject) {
			add("inlet.nats.marker_subject %q is not a valid subject", ic.NATS.MarkerSubject)
		}
		if ic.NATS.InboxSize <= 0 {
			add("inlet.nats.inbox_size must be positive")
		}
	case SourceSynthetic:
		if ic.Synthetic.MarkerEvery < 0 {
			add("inlet.synthetic.marker_every must not be negative")
		}
	default:
		add("inlet.source %q must be %q or %q", ic.Source, SourceNATS, SourceSynthetic)
	}

	if ic.Stream.ChannelCount <= 0 {
		add("inlet.stream.channel_count must be positive")
	}
	if ic.Stream.NominalRate <= 0 {
		add("inlet.stream.nominal_rate must be positive")
	}
	if ic.FramesPerPull <= 0 {
		add("inlet.frames_per_pull must be positive")
	}
	if ic.Gain <= 0 {
		add("inlet.gain must be positive")
	}
	if ic.MaxChannels <= 0 {
		add("inlet.max_channels must be positive")
	}
	if ic.TTLOutputs <= 0 {
		add("inlet.ttl_outputs must be positive")
	}
	if ic.PullTimeout <= 0 {
		add("inlet.pull_timeout must be positive")
	}
	if ic.StopWait <= 0 {
		add("inlet.stop_wait must be positive")
	}

	return problems
}

func (oc *OutputConfig) validate() []error {
	var problems []error

	if oc.Ring.Capacity <= 0 {
		problems = append(problems, errors.New("output.ring.capacity must be positive"))
	}
	if oc.NATS.Enabled && !subjectRegex.MatchString(oc.NATS.Subject) {
		problems = append(problems, fmt.Errorf("output.nats.subject %q is not a valid subject", oc.NATS.Subject))
	}
	if oc.Monitor.Enabled {
		if oc.Monitor.Port < 1 || oc.Monitor.Port > 65535 {
			problems = append(problems, fmt.Errorf("output.monitor.port %d outside 1-65535", oc.Monitor.Port))
		}
		if !strings.HasPrefix(oc.Monitor.Path, "/") {
			problems = append(problems, errors.New("output.monitor.path must start with /"))
		}
	}

	return problems
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// String returns a JSON representation with secrets masked
func (c *Config) String() string {
	masked := c.Clone()
	if masked.NATS.Password != "" {
		masked.NATS.Password = "***"
	}
	if masked.NATS.Token != "" {
		masked.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errs.WrapInvalid(errs.ErrMissingConfig, "SafeConfig", "Update", "nil check")
	}
	if err := cfg.Validate(); err != nil {
		return errs.Wrap(err, "SafeConfig", "Update", "validation")
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
