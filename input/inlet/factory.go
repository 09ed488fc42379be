package inlet

import (
	"encoding/json"

	"github.com/tne-lab/LSL-inlet/component"
	"github.com/tne-lab/LSL-inlet/config"
	"github.com/tne-lab/LSL-inlet/errors"
)

// Config is the factory configuration: the inlet and output sections of
// the application config
type Config struct {
	Inlet  config.InletConfig  `json:"inlet"`
	Output config.OutputConfig `json:"output"`
}

// Validate implements component.Validatable
func (c *Config) Validate() error {
	if err := c.Inlet.Validate(); err != nil {
		return err
	}
	return c.Output.Validate()
}

// DefaultConfig returns the built-in inlet and output sections
func DefaultConfig() Config {
	d := config.Default()
	return Config{Inlet: d.Inlet, Output: d.Output}
}

// CreateInlet is the registry factory. Keys missing from rawConfig keep
// their defaults.
func CreateInlet(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.Wrap(err, "inlet-factory", "create", "config parsing")
		}
	}

	in, err := NewInlet(Deps{
		Name:            "lsl-inlet",
		Config:          cfg.Inlet,
		Output:          cfg.Output,
		NATSClient:      deps.NATSClient,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          deps.GetLoggerWithComponent("lsl-inlet"),
	})
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Register registers the inlet with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "lsl-inlet",
		Factory:     CreateInlet,
		Type:        "input",
		Protocol:    "lsl",
		Description: "Pulls a sample stream, aligns markers to frames and emits indexed chunks",
		Version:     "1.0.0",
	})
}
