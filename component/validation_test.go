package component

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validatedConfig struct {
	Frames int `json:"frames"`
}

func (c *validatedConfig) Validate() error {
	if c.Frames <= 0 {
		return errors.New("frames must be positive")
	}
	return nil
}

func TestValidateFactoryConfig(t *testing.T) {
	deep := strings.Repeat(`{"a":`, 12) + "1" + strings.Repeat("}", 12)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"empty", ``, false},
		{"object", `{"gain": 2.0, "subjects": ["a", "b"], "enabled": true, "x": null}`, false},
		{"malformed", `{"gain":`, true},
		{"too deep", deep, true},
		{"control char", `{"label":"a\u0007"}`, true},
		{"oversized string", `{"s":"` + strings.Repeat("x", MaxStringLength+1) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFactoryConfig(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSafeUnmarshal(t *testing.T) {
	var cfg validatedConfig
	require.NoError(t, SafeUnmarshal(json.RawMessage(`{"frames":256}`), &cfg))
	assert.Equal(t, 256, cfg.Frames)

	err := SafeUnmarshal(json.RawMessage(`{"frames":0}`), &validatedConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frames must be positive")

	assert.Error(t, SafeUnmarshal(json.RawMessage(`{}`), validatedConfig{}))
}

func TestValidateComponentName(t *testing.T) {
	assert.NoError(t, ValidateComponentName("lsl-inlet_1.a"))
	assert.Error(t, ValidateComponentName(""))
	assert.Error(t, ValidateComponentName("has space"))
	assert.Error(t, ValidateComponentName(strings.Repeat("a", MaxStringLength+1)))
}

func TestValidatePortNumber(t *testing.T) {
	assert.NoError(t, ValidatePortNumber(1))
	assert.NoError(t, ValidatePortNumber(65535))
	assert.Error(t, ValidatePortNumber(0))
	assert.Error(t, ValidatePortNumber(65536))
}
