package roomguard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	require.NoError(t, config.Validate())
	assert.Equal(t, 50, config.Reconnect.BufferSize)
	assert.NotEmpty(t, config.RateLimit.Limits)
	assert.Positive(t, config.Files.MaxFileSize)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roomguard.yaml")

	content := []byte(`
redis:
  addr: "localhost:6379"
  db: 2
reconnect:
  buffer_size: 25
metrics_enabled: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", config.Redis.Addr)
	assert.Equal(t, 2, config.Redis.DB)
	assert.Equal(t, 25, config.Reconnect.BufferSize)
	assert.True(t, config.MetricsEnabled)

	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultConfig().Files.MaxFileSize, config.Files.MaxFileSize)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")

	require.NoError(t, os.WriteFile(path, []byte("reconnect:\n  buffer_size: -5\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
