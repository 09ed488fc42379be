package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/tne-lab/LSL-inlet/errors"
)

func writeLayer(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestLoader(env map[string]string) *Loader {
	l := NewLoader()
	l.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return l
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 256, cfg.Inlet.FramesPerPull)
	assert.Equal(t, 1.0, cfg.Inlet.Gain)
	assert.Equal(t, 64, cfg.Inlet.MaxChannels)
	assert.Equal(t, 8, cfg.Inlet.TTLOutputs)
	assert.Equal(t, 500*time.Millisecond, cfg.Inlet.StopWait.Std())
	assert.Equal(t, SourceSynthetic, cfg.Inlet.Source)
}

func TestLoader_LoadFileMergesOverDefaults(t *testing.T) {
	path := writeLayer(t, "inlet.json", `{
		"nats": {"enabled": true, "urls": ["nats://nats:4222"], "ping_interval": "5s", "circuit_threshold": 3},
		"inlet": {
			"source": "nats",
			"stream": {"name": "EEG-1", "channel_count": 32, "nominal_rate": 1000},
			"gain": 0.195,
			"pull_timeout": "50ms"
		}
	}`)

	l := newTestLoader(nil)
	l.EnableValidation(true)
	cfg, err := l.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, SourceNATS, cfg.Inlet.Source)
	assert.Equal(t, "EEG-1", cfg.Inlet.Stream.Name)
	assert.Equal(t, "EEG", cfg.Inlet.Stream.Type, "untouched nested keys keep defaults")
	assert.Equal(t, 32, cfg.Inlet.Stream.ChannelCount)
	assert.Equal(t, 0.195, cfg.Inlet.Gain)
	assert.Equal(t, 50*time.Millisecond, cfg.Inlet.PullTimeout.Std())
	assert.Equal(t, 256, cfg.Inlet.FramesPerPull)
	assert.Equal(t, []string{"nats://nats:4222"}, cfg.NATS.URLs)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait.Std())
	assert.Equal(t, 5*time.Second, cfg.NATS.PingInterval.Std())
	assert.Equal(t, 3, cfg.NATS.CircuitThreshold)
	assert.Zero(t, cfg.NATS.DrainTimeout, "unset tuning keeps the client default")
}

func TestLoader_LayersApplyInOrder(t *testing.T) {
	base := writeLayer(t, "base.json", `{"inlet": {"frames_per_pull": 128, "gain": 2.0}}`)
	override := writeLayer(t, "override.json", `{"inlet": {"gain": 4.0}}`)

	l := newTestLoader(nil)
	l.AddLayer(base)
	l.AddLayer(override)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.Inlet.FramesPerPull)
	assert.Equal(t, 4.0, cfg.Inlet.Gain)
}

func TestLoader_EnvOverrides(t *testing.T) {
	l := newTestLoader(map[string]string{
		"LSLINLET_NATS_URLS":             "nats://a:4222,nats://b:4222",
		"LSLINLET_INLET_GAIN":            "0.5",
		"LSLINLET_INLET_FRAMES_PER_PULL": "64",
		"LSLINLET_PLATFORM_ID":           "rig-2",
		"LSLINLET_INLET_MAPPING_FILE":    "markers.yaml",
	})
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, 0.5, cfg.Inlet.Gain)
	assert.Equal(t, 64, cfg.Inlet.FramesPerPull)
	assert.Equal(t, "rig-2", cfg.Platform.ID)
	assert.Equal(t, "markers.yaml", cfg.Inlet.MappingFile)
}

func TestLoader_EnvOverrideMalformedNumber(t *testing.T) {
	_, err := newTestLoader(map[string]string{"LSLINLET_INLET_GAIN": "loud"}).Load()
	require.Error(t, err)
	assert.True(t, errs.IsInvalid(err))
}

func TestLoader_SchemaRejectsUnknownAndMistyped(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown top-level key", `{"graph": {}}`},
		{"unknown inlet key", `{"inlet": {"frames": 10}}`},
		{"negative frames", `{"inlet": {"frames_per_pull": -1}}`},
		{"zero gain", `{"inlet": {"gain": 0}}`},
		{"bad duration", `{"inlet": {"pull_timeout": "soon"}}`},
		{"bad source", `{"inlet": {"source": "serial"}}`},
		{"bad nats url", `{"nats": {"urls": ["http://x"]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestLoader(nil).LoadFile(writeLayer(t, "c.json", tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrInvalidConfig)
		})
	}
}

func TestLoader_RejectsBadPaths(t *testing.T) {
	_, err := newTestLoader(nil).LoadFile(writeLayer(t, "c.yaml", `{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")

	_, err = newTestLoader(nil).LoadFile("../outside.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")

	_, err = newTestLoader(nil).LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestConfig_ValidateSemantics(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"nats source without nats", func(c *Config) { c.Inlet.Source = SourceNATS }, "nats.enabled"},
		{"nats sink without nats", func(c *Config) { c.Output.NATS.Enabled = true }, "nats.enabled"},
		{"zero frames", func(c *Config) { c.Inlet.FramesPerPull = 0 }, "frames_per_pull"},
		{"negative gain", func(c *Config) { c.Inlet.Gain = -1 }, "gain"},
		{"zero channels", func(c *Config) { c.Inlet.Stream.ChannelCount = 0 }, "channel_count"},
		{"zero rate", func(c *Config) { c.Inlet.Stream.NominalRate = 0 }, "nominal_rate"},
		{"bad version", func(c *Config) { c.Version = "one" }, "version"},
		{"negative circuit threshold", func(c *Config) { c.NATS.CircuitThreshold = -1 }, "circuit_threshold"},
		{"negative drain timeout", func(c *Config) { c.NATS.DrainTimeout = Duration(-time.Second) }, "timing"},
		{"missing org", func(c *Config) { c.Platform.Org = "" }, "platform.org"},
		{"bad subject", func(c *Config) {
			c.NATS.Enabled = true
			c.Inlet.Source = SourceNATS
			c.Inlet.NATS.ChunkSubject = "bad subject"
		}, "chunk_subject"},
		{"monitor port", func(c *Config) {
			c.Output.Monitor.Enabled = true
			c.Output.Monitor.Port = 0
		}, "output.monitor.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_ValidateLowercasesOrg(t *testing.T) {
	cfg := Default()
	cfg.Platform.Org = "TNE"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "tne", cfg.Platform.Org)
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.NATS.Password = "hunter2"
	cfg.NATS.Token = "s3cret"

	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "s3cret")
	assert.Equal(t, "hunter2", cfg.NATS.Password, "original untouched")
}

func TestSafeConfig(t *testing.T) {
	sc := NewSafeConfig(nil)

	got := sc.Get()
	got.Inlet.Gain = 99
	assert.Equal(t, 1.0, sc.Get().Inlet.Gain, "Get returns a copy")

	bad := Default()
	bad.Inlet.FramesPerPull = 0
	assert.Error(t, sc.Update(bad))
	assert.Error(t, sc.Update(nil))

	good := Default()
	good.Inlet.Gain = 3
	require.NoError(t, sc.Update(good))
	assert.Equal(t, 3.0, sc.Get().Inlet.Gain)
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, json.Unmarshal([]byte(`"2d"`), &d))
	assert.Equal(t, 48*time.Hour, d.Std())

	require.NoError(t, json.Unmarshal([]byte(`1000`), &d))
	assert.Equal(t, time.Microsecond, d.Std())

	assert.Error(t, json.Unmarshal([]byte(`"later"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))

	out, err := json.Marshal(Duration(250 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, `"250ms"`, string(out))
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		v1, v2 string
		want   int
	}{
		{"1.0.0", "1.0.0", 0},
		{"v1.2.0", "1.1.9", 1},
		{"1.0.0", "2.0.0", -1},
		{"1.0.10", "1.0.9", 1},
	}
	for _, tt := range tests {
		got, err := CompareVersions(tt.v1, tt.v2)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.v1, tt.v2)
	}

	_, err := CompareVersions("1.0", "1.0.0")
	assert.Error(t, err)
}

func TestValidateJSONDepth(t *testing.T) {
	assert.NoError(t, validateJSONDepth([]byte(`{"a": "{[not brackets]}"}`)))
	assert.Error(t, validateJSONDepth([]byte(`{"a": 1}}`)))
	assert.Error(t, validateJSONDepth([]byte(`{"a": {`)))
}

func TestSchema_IsEmbedded(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(Schema(), &doc))
	assert.Equal(t, "object", doc["type"])
	assert.NoError(t, ValidateDocument([]byte(`{"inlet": {"pull_timeout": 100000000}}`)))
}

func TestSectionValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Inlet.Validate())
	require.NoError(t, cfg.Output.Validate())

	cfg.Inlet.FramesPerPull = 0
	err := cfg.Inlet.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "frames_per_pull")

	cfg.Output.Ring.Capacity = -1
	assert.ErrorIs(t, cfg.Output.Validate(), errs.ErrInvalidConfig)
}
