package component

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/tne-lab/LSL-inlet/errors"
)

func mockFactory(rawConfig json.RawMessage, _ Dependencies) (Discoverable, error) {
	var cfg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(rawConfig, &cfg); err != nil {
		return nil, err
	}
	return newMockComponent(cfg.Name, "input"), nil
}

func TestRegistry_RegisterFactory(t *testing.T) {
	tests := []struct {
		name    string
		factory string
		reg     *Registration
		wantErr bool
	}{
		{"valid", "mock", &Registration{Type: "input", Factory: mockFactory}, false},
		{"empty name", "", &Registration{Type: "input", Factory: mockFactory}, true},
		{"nil registration", "mock", nil, true},
		{"nil factory", "mock", &Registration{Type: "input"}, true},
		{"missing type", "mock", &Registration{Factory: mockFactory}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().RegisterFactory(tt.factory, tt.reg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsInvalid(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRegistry_DuplicateFactory(t *testing.T) {
	r := NewRegistry()
	cfg := RegistrationConfig{Name: "mock", Type: "input", Protocol: "lsl", Factory: mockFactory, Version: "1.0.0"}
	require.NoError(t, r.RegisterWithConfig(cfg))

	err := r.RegisterWithConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Equal(t, []string{"mock"}, r.ListComponentTypes())
	info := r.ListAvailable()["mock"]
	assert.Equal(t, "lsl", info.Protocol)
	assert.Equal(t, "1.0.0", info.Version)

	factory, ok := r.GetFactory("mock")
	assert.True(t, ok)
	assert.NotNil(t, factory)
	_, ok = r.GetFactory("missing")
	assert.False(t, ok)
}

func TestRegistry_CreateComponent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterWithConfig(RegistrationConfig{Name: "mock", Type: "input", Factory: mockFactory}))

	comp, err := r.CreateComponent("inlet-1", "mock", json.RawMessage(`{"name":"inlet-1"}`), Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, "inlet-1", comp.Meta().Name)
	assert.Same(t, comp, r.Component("inlet-1"))
	assert.Len(t, r.ListComponents(), 1)

	_, err = r.CreateComponent("inlet-1", "mock", json.RawMessage(`{"name":"again"}`), Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	_, err = r.CreateComponent("inlet-2", "unknown", json.RawMessage(`{}`), Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown component factory")

	_, err = r.CreateComponent("bad name!", "mock", json.RawMessage(`{}`), Dependencies{})
	require.Error(t, err)

	_, err = r.CreateComponent("inlet-3", "mock", json.RawMessage(`{"name":"a\u0001b"}`), Dependencies{})
	require.Error(t, err)
	assert.True(t, errs.IsInvalid(err))

	r.UnregisterInstance("inlet-1")
	assert.Nil(t, r.Component("inlet-1"))
}

func TestRegistry_ExclusiveResourceConflict(t *testing.T) {
	r := NewRegistry()

	withListener := func(name string, port int) *mockComponent {
		m := newMockComponent(name, "output")
		m.outputPorts = append(m.outputPorts, Port{
			Name:      "monitor",
			Direction: DirectionOutput,
			Config:    NetworkPort{Protocol: "tcp", Host: "0.0.0.0", Port: port},
		})
		return m
	}

	require.NoError(t, r.RegisterInstance("ws-1", withListener("ws-1", 8081)))

	err := r.RegisterInstance("ws-2", withListener("ws-2", 8081))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource conflict")

	err = r.RegisterInstance("ws-3", withListener("ws-3", 70000))
	require.Error(t, err)

	r.UnregisterInstance("ws-1")
	assert.NoError(t, r.RegisterInstance("ws-2", withListener("ws-2", 8081)))
}

func TestRegistry_SharedPortsDoNotConflict(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("inlet-%d", i)
		require.NoError(t, r.RegisterInstance(name, newMockComponent(name, "input")))
	}
	assert.Len(t, r.ListComponents(), 3)
}
