package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/tne-lab/LSL-inlet/errors"
)

func TestParse(t *testing.T) {
	table, err := Parse([]byte("Stim_A: 3\nReward: 12\n\"trial start\": 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	code, err := table.Resolve("Stim_A")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), code)

	code, err = table.Resolve("trial start")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), code)
}

func TestParse_JSONObject(t *testing.T) {
	table, err := Parse([]byte(`{"Stim_A": 3, "Stim_B": 4}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Stim_A", "Stim_B"}, table.Labels())
}

func TestParse_QuotedIntegerCode(t *testing.T) {
	table, err := Parse([]byte(`{"Stim_A": "3", "Stim_B": " 7 "}`))
	require.NoError(t, err)

	code, err := table.Resolve("Stim_A")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), code)

	code, err = table.Resolve("Stim_B")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), code)
}

func TestParse_Empty(t *testing.T) {
	for _, doc := range []string{"", "  \n", "~", "# nothing mapped\n"} {
		table, err := Parse([]byte(doc))
		require.NoError(t, err, "document %q", doc)
		assert.True(t, table.Empty(), "document %q", doc)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"not yaml", "a: [1, 2", errs.ErrParsingFailed},
		{"sequence root", "- 1\n- 2\n", errs.ErrInvalidConfig},
		{"string code", "Stim_A: three\n", errs.ErrInvalidConfig},
		{"zero code", "Stim_A: 0\n", errs.ErrInvalidConfig},
		{"quoted zero code", "Stim_A: \"0\"\n", errs.ErrInvalidConfig},
		{"quoted negative code", "Stim_A: \"-3\"\n", errs.ErrInvalidConfig},
		{"quoted hex code", "Stim_A: \"0x3\"\n", errs.ErrInvalidConfig},
		{"negative code", "Stim_A: -3\n", errs.ErrInvalidConfig},
		{"float code", "Stim_A: 1.5\n", errs.ErrInvalidConfig},
		{"nested value", "Stim_A:\n  code: 3\n", errs.ErrInvalidConfig},
		{"empty label", "\"\": 3\n", errs.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errs.IsInvalid(err) || errs.IsFatal(err))
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "markers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Stim_A: 3\n"), 0o600))

	table, err := LoadFile(path)
	require.NoError(t, err)
	code, err := table.Resolve("Stim_A")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), code)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, errs.ErrConfigNotFound)

	txt := filepath.Join(dir, "markers.txt")
	require.NoError(t, os.WriteFile(txt, []byte("Stim_A: 3\n"), 0o600))
	_, err = LoadFile(txt)
	assert.Error(t, err)
}

func TestParse_DuplicateLabel(t *testing.T) {
	_, err := Parse([]byte("Stim_A: 3\nStim_A: 4\n"))
	assert.Error(t, err)
}
