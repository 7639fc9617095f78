package setup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddx-ranking-engine/internal/config"
)

func fakeBinary(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "ddx-mcp-server")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))
	return path
}

func TestLoadClientConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is empty", func(t *testing.T) {
		cfg, err := LoadClientConfig(filepath.Join(dir, "absent.json"))
		require.NoError(t, err)
		assert.Empty(t, cfg.Servers)
	})

	t.Run("malformed file errors", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
		_, err := LoadClientConfig(path)
		assert.Error(t, err)
	})
}

func TestRegisterPreservesOtherEntries(t *testing.T) {
	dir := t.TempDir()
	clientPath := filepath.Join(dir, "client", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(clientPath), 0755))
	require.NoError(t, os.WriteFile(clientPath, []byte(`{
		"theme": "dark",
		"mcpServers": {"other": {"command": "/usr/bin/other"}}
	}`), 0644))

	appConfig := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(appConfig, []byte("engine:\n  top_k: 5\n"), 0644))

	entry, err := Register(Options{
		ClientConfigPath: clientPath,
		BinaryPath:       fakeBinary(t, dir),
		AppConfigPath:    appConfig,
		DataDir:          filepath.Join(dir, "data"),
	})
	require.NoError(t, err)
	assert.Equal(t, appConfig, entry.Env[config.ConfigFileEnv])

	data, err := os.ReadFile(clientPath)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "dark", raw["theme"])

	cfg, err := LoadClientConfig(clientPath)
	require.NoError(t, err)
	assert.Contains(t, cfg.Servers, "other")
	require.Contains(t, cfg.Servers, DefaultServerName)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Servers[DefaultServerName].Env["DDX_DATA_DIR"])
}

func TestStatusAndUnregister(t *testing.T) {
	dir := t.TempDir()
	opts := Options{ClientConfigPath: filepath.Join(dir, "config.json")}

	status, err := GetStatus(opts)
	require.NoError(t, err)
	assert.False(t, status.Registered)
	assert.Len(t, status.Issues, 1)

	opts.BinaryPath = fakeBinary(t, dir)
	_, err = Register(opts)
	require.NoError(t, err)

	status, err = GetStatus(opts)
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Equal(t, opts.BinaryPath, status.Command)
	assert.Empty(t, status.Issues)

	require.NoError(t, os.Remove(opts.BinaryPath))
	status, err = GetStatus(opts)
	require.NoError(t, err)
	assert.Len(t, status.Issues, 1)

	removed, err := Unregister(opts)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = Unregister(opts)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRegisterWithoutBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, err := Register(Options{ClientConfigPath: filepath.Join(t.TempDir(), "config.json")})
	assert.ErrorIs(t, err, ErrBinaryNotFound)
}
