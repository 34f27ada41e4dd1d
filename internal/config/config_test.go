package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clipcatd.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Log.Level, cfg.Log.Level)
	assert.FileExists(t, path)
}

func TestLoadParsesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clipcatd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history:\n  capacity: 42\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.History.Capacity)
}

func TestLoadFillsEmptySocketPathFromSystemPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clipcatd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("local:\n  enabled: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Local.SocketPath)
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("CLIPCAT_ACCESS_TOKEN", "secret")
	t.Setenv("CLIPCAT_HISTORY_CAPACITY", "7")

	cfg := Default()
	overrideFromEnv(cfg)

	assert.Equal(t, "secret", cfg.RPC.AccessToken)
	assert.Equal(t, 7, cfg.History.Capacity)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clipcatd.yaml")

	cfg := Default()
	cfg.Log.Level = "debug"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.Log.Level)
}
