package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	errs "github.com/tne-lab/LSL-inlet/errors"
)

// DefaultEnvPrefix prefixes every environment override
const DefaultEnvPrefix = "LSLINLET"

// Loader handles configuration loading with layers and overrides:
// defaults, then each file layer deep-merged in order, then environment
// overrides, then optional semantic validation.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:    []string{},
		envPrefix: DefaultEnvPrefix,
		lookupEnv: os.LookupEnv,
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables semantic validation after loading
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the environment override prefix
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// LoadFile loads configuration from a single file over the defaults
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRawJSON(path)
		if err != nil {
			return nil, errs.Wrap(err, "Loader", "Load", fmt.Sprintf("load layer %s", path))
		}
		cfg, err = mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errs.Wrap(err, "Loader", "Load", fmt.Sprintf("merge layer %s", path))
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, errs.Wrap(err, "Loader", "Load", "environment overrides")
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadRawJSON reads one layer, checks its depth and schema, and decodes it
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	data, err := ReadFileSafely(path, JSONExtensions...)
	if err != nil {
		return nil, errs.WrapInvalid(err, "Loader", "loadRawJSON", "file read")
	}

	if err := validateJSONDepth(data); err != nil {
		return nil, errs.WrapInvalid(fmt.Errorf("%w: %w", errs.ErrInvalidData, err),
			"Loader", "loadRawJSON", "structure check")
	}

	if err := ValidateDocument(data); err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.WrapInvalid(err, "Loader", "loadRawJSON", "JSON decode")
	}
	return raw, nil
}

// mergeFromMap overrides only the fields present in override
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, errs.WrapInvalid(err, "Loader", "mergeFromMap", "decode merged config")
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence.
// Explicit nulls in override are ignored.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}

	return result
}

func (l *Loader) env(name string) (string, bool, error) {
	key := l.envPrefix + "_" + name
	val, ok := l.lookupEnv(key)
	if !ok || val == "" {
		return "", false, nil
	}
	if err := validateEnvVar(key, val); err != nil {
		return "", false, errs.WrapInvalid(err, "Loader", "env", key)
	}
	return val, true, nil
}

// applyEnvOverrides applies PREFIX_* environment variables over the merged
// layers. Malformed numeric values are an error, never silently ignored.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strOverrides := map[string]*string{
		"PLATFORM_ORG":       &cfg.Platform.Org,
		"PLATFORM_ID":        &cfg.Platform.ID,
		"NATS_USERNAME":      &cfg.NATS.Username,
		"NATS_PASSWORD":      &cfg.NATS.Password,
		"NATS_TOKEN":         &cfg.NATS.Token,
		"INLET_SOURCE":       &cfg.Inlet.Source,
		"INLET_STREAM_NAME":  &cfg.Inlet.Stream.Name,
		"INLET_MAPPING_FILE": &cfg.Inlet.MappingFile,
	}
	for name, target := range strOverrides {
		val, ok, err := l.env(name)
		if err != nil {
			return err
		}
		if ok {
			*target = val
		}
	}

	if val, ok, err := l.env("NATS_URLS"); err != nil {
		return err
	} else if ok {
		cfg.NATS.URLs = strings.Split(val, ",")
		cfg.NATS.Enabled = true
	}

	intOverrides := map[string]*int{
		"METRICS_PORT":          &cfg.Metrics.Port,
		"INLET_FRAMES_PER_PULL": &cfg.Inlet.FramesPerPull,
	}
	for name, target := range intOverrides {
		val, ok, err := l.env(name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return errs.WrapInvalid(err, "Loader", "applyEnvOverrides", l.envPrefix+"_"+name)
		}
		*target = n
	}

	if val, ok, err := l.env("INLET_GAIN"); err != nil {
		return err
	} else if ok {
		gain, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return errs.WrapInvalid(err, "Loader", "applyEnvOverrides", l.envPrefix+"_INLET_GAIN")
		}
		cfg.Inlet.Gain = gain
	}

	return nil
}
