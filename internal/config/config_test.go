package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 0.01, cfg.FalsePositiveRate)
	assert.Equal(t, 4096, cfg.ChunkSize)
	assert.Equal(t, 1024, cfg.BloomThreshold)
	assert.Equal(t, 1, cfg.DelimiterTableVersion)
	assert.Empty(t, cfg.ExcludedColumns)
	assert.False(t, cfg.Verify)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 4*time.Second, cfg.Retry.MaxDelay)
}

func TestConfig_Validate_RejectsBadFalsePositiveRate(t *testing.T) {
	cfg := NewConfig()
	cfg.FalsePositiveRate = 0
	assert.Error(t, cfg.Validate())

	cfg.FalsePositiveRate = 1
	assert.Error(t, cfg.Validate())

	cfg.FalsePositiveRate = 1.5
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_RejectsNonPositiveChunkSize(t *testing.T) {
	cfg := NewConfig()
	cfg.ChunkSize = 0
	assert.Error(t, cfg.Validate())

	cfg.ChunkSize = -10
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_RejectsNonPositiveBloomThreshold(t *testing.T) {
	cfg := NewConfig()
	cfg.BloomThreshold = 0
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_RejectsNegativeRetries(t *testing.T) {
	cfg := NewConfig()
	cfg.Retry.MaxRetries = -1
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_AcceptsDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoProjectConfig_ReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.ChunkSize)
	assert.Equal(t, 1024, cfg.BloomThreshold)
}

func TestLoad_ProjectConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	yamlContent := `
chunk_size: 8192
bloom_threshold: 2048
excluded_columns:
  - internal_notes
  - _metadata
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kwindex.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.ChunkSize)
	assert.Equal(t, 2048, cfg.BloomThreshold)
	assert.Equal(t, []string{"internal_notes", "_metadata"}, cfg.ExcludedColumns)
}

func TestLoad_YmlFallback(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kwindex.yml"), []byte("chunk_size: 2048\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.ChunkSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kwindex.yaml"), []byte("chunk_size: 8192\n"), 0o644))
	t.Setenv("KWINDEX_CHUNK_SIZE", "16384")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 16384, cfg.ChunkSize)
}

func TestLoad_EnvOverridesExcludedColumns(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("KWINDEX_EXCLUDED_COLUMNS", "a,b,c")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.ExcludedColumns)
}

func TestLoad_EnvOverridesVerify(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("KWINDEX_VERIFY", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Verify)
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kwindex.yaml"), []byte("chunk_size: -1\n"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestGetUserConfigPath_UsesXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	path := GetUserConfigPath()
	assert.Equal(t, filepath.Join(xdg, "kwindex", "config.yaml"), path)
}

func TestUserConfigExists_FalseWhenAbsent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	assert.False(t, UserConfigExists())
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewConfig()
	cfg.ChunkSize = 2048
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, 2048, loaded.ChunkSize)
}
