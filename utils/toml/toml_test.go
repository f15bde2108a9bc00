package toml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type section struct {
	Name  string
	Limit int
}

type testConfig struct {
	DataDir string
	Section section
}

func TestLoadKeepsDefaults(t *testing.T) {
	require := require.New(t)

	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(os.WriteFile(file, []byte("DataDir = \"/tmp/x\"\n\n[Section]\nLimit = 7\n"), 0600))

	cfg := testConfig{Section: section{Name: "default", Limit: 1}}
	require.NoError(LoadFile(file, &cfg))
	require.Equal("/tmp/x", cfg.DataDir)
	require.Equal("default", cfg.Section.Name)
	require.Equal(7, cfg.Section.Limit)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	require := require.New(t)

	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(os.WriteFile(file, []byte("[Section]\nLimits = 7\n"), 0600))

	err := LoadFile(file, &testConfig{})
	require.Error(err)
	require.Contains(err.Error(), "Limits")
}

func TestMarshalRoundTrip(t *testing.T) {
	require := require.New(t)

	in := testConfig{DataDir: "data", Section: section{Name: "n", Limit: 3}}
	out, err := Marshal(&in)
	require.NoError(err)

	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(os.WriteFile(file, out, 0600))
	var got testConfig
	require.NoError(LoadFile(file, &got))
	require.Equal(in, got)
}
