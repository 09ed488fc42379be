package component

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPort_JSONRoundTripKeepsConfigType(t *testing.T) {
	ports := []Port{
		{Name: "chunks", Direction: DirectionInput, Config: NATSPort{Subject: "lsl.eeg.chunks"}},
		{Name: "monitor", Direction: DirectionOutput, Config: NetworkPort{Protocol: "tcp", Host: "localhost", Port: 8081}},
		{Name: "eeg", Direction: DirectionInput, Required: true, Config: StreamPort{Name: "EEG-1", Kind: "EEG"}},
		{Name: "ring", Direction: DirectionOutput, Config: MemoryPort{Name: "ring", Capacity: 64}},
		{Name: "none", Direction: DirectionOutput},
	}

	for _, p := range ports {
		t.Run(p.Name, func(t *testing.T) {
			data, err := json.Marshal(p)
			require.NoError(t, err)

			var got Port
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, p, got)
		})
	}
}

func TestPort_UnknownConfigType(t *testing.T) {
	var p Port
	err := json.Unmarshal([]byte(`{"name":"x","config":{"type":"carrier-pigeon","data":{}}}`), &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config type")
}

func TestPortable_Exclusivity(t *testing.T) {
	assert.False(t, NATSPort{Subject: "a"}.IsExclusive())
	assert.True(t, NetworkPort{Protocol: "tcp", Port: 1}.IsExclusive())
	assert.False(t, StreamPort{Name: "EEG"}.IsExclusive())
	assert.True(t, MemoryPort{Name: "ring"}.IsExclusive())

	assert.Equal(t, "stream:abc123", StreamPort{Name: "EEG", SourceID: "abc123"}.ResourceID())
	assert.Equal(t, "stream:EEG/Markers", StreamPort{Name: "EEG", Kind: "Markers"}.ResourceID())
	assert.Equal(t, "tcp:localhost:8081", NetworkPort{Protocol: "tcp", Host: "localhost", Port: 8081}.ResourceID())
}
