package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1", cfg.Server.IP)
	require.Equal(t, 7777, cfg.Server.Port)
	require.Equal(t, 5, cfg.Server.ReconnectionAttempt)
	require.Equal(t, "en-us", cfg.General.Language)
	require.Equal(t, "info", cfg.Advanced.LogLevel)
	require.Equal(t, 2, cfg.Advanced.WorkerPool)
	require.Equal(t, "cache.db", cfg.Advanced.CachePath)
	require.Equal(t, "record.db", cfg.Advanced.RecordPath)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	body := `{
		"server": {"ip": "10.0.0.2", "port": 9000, "reconnection_attempt": 2},
		"general": {"language": "zh-cn"},
		"advanced": {"worker_pool": 4}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.2", cfg.Server.IP)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, 2, cfg.Server.ReconnectionAttempt)
	require.Equal(t, "zh-cn", cfg.General.Language)
	require.Equal(t, 4, cfg.Advanced.WorkerPool)
	// untouched sections keep their defaults
	require.Equal(t, "info", cfg.Advanced.LogLevel)
}

func TestOutOfRangeValuesFallBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	body := `{
		"server": {"ip": "not-an-ip", "port": 99999, "reconnection_attempt": 0},
		"advanced": {"worker_pool": 64, "cache_path": ""}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.Server.IP)
	require.Equal(t, 7777, cfg.Server.Port)
	require.Equal(t, 5, cfg.Server.ReconnectionAttempt)
	require.Equal(t, 2, cfg.Advanced.WorkerPool)
	require.Equal(t, "cache.db", cfg.Advanced.CachePath)
}

func TestMalformedFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{nope"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}
