package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fasttransfer/fasttransfer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.WorkerCount)
	assert.Nil(t, cfg.Defaults.CopyOnly)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "fasttransfer")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	content := `
[defaults]
worker_count = 8
chunk_size_limit_mb = 128
chunk_file_limit = 500
subprocess_timeout_s = 30
copy_only = false
create_symlink = true
resume_session = true
archiver_bin_path = "/usr/bin/7z"
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.WorkerCount)
	assert.Equal(t, 8, *cfg.Defaults.WorkerCount)

	require.NotNil(t, cfg.Defaults.ChunkSizeLimitMB)
	assert.EqualValues(t, 128, *cfg.Defaults.ChunkSizeLimitMB)

	require.NotNil(t, cfg.Defaults.ChunkFileLimit)
	assert.Equal(t, 500, *cfg.Defaults.ChunkFileLimit)

	require.NotNil(t, cfg.Defaults.SubprocessTimeoutS)
	assert.Equal(t, 30, *cfg.Defaults.SubprocessTimeoutS)

	require.NotNil(t, cfg.Defaults.CopyOnly)
	assert.False(t, *cfg.Defaults.CopyOnly)

	require.NotNil(t, cfg.Defaults.CreateSymlink)
	assert.True(t, *cfg.Defaults.CreateSymlink)

	require.NotNil(t, cfg.Defaults.ResumeSession)
	assert.True(t, *cfg.Defaults.ResumeSession)

	require.NotNil(t, cfg.Defaults.ArchiverBinPath)
	assert.Equal(t, "/usr/bin/7z", *cfg.Defaults.ArchiverBinPath)
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "fasttransfer")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	content := `
[defaults]
worker_count = 4
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.WorkerCount)
	assert.Equal(t, 4, *cfg.Defaults.WorkerCount)
	assert.Nil(t, cfg.Defaults.ChunkSizeLimitMB)
	assert.Nil(t, cfg.Defaults.CopyOnly)
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "fasttransfer")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte("invalid [[["), 0o644))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/fasttransfer/config.toml", config.Path())
}
