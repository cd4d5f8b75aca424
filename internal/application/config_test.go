package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Session.SubsetSize)
	assert.Equal(t, "anonymous", cfg.Session.Rater)
	assert.False(t, cfg.Oracle.Enabled)
}

func TestLoadConfig_FileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
session:
  subset_size: 6
  rater: "dr-lee"
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 6, cfg.Session.SubsetSize)
	assert.Equal(t, "dr-lee", cfg.Session.Rater)
	// Untouched sections keep their defaults.
	assert.Equal(t, "data/eegrank.db", cfg.Data.DatabasePath)
}

func TestLoadConfig_RejectsInvalidSubsetSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session:
  subset_size: 1
`), 0o600))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "validation failed")
}

func TestLoadConfig_EnvOverridesKey(t *testing.T) {
	t.Setenv("EEGRANK_OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Oracle.APIKey)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
