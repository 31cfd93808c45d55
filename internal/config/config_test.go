package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.ListenAddress)
	assert.Equal(t, "VES", cfg.LocalCurrency)
	assert.True(t, cfg.Fallback().Equal(decimal.RequireFromString("36.5")))
	assert.False(t, cfg.RemoteConfigured(), "no credentials means local-only mode")
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"fallback-rate": 40,
		"remote-kind": "action",
		"remote-url": "https://example.invalid/exec",
		"insert-failure": "rollback"
	}`), 0644))
	t.Setenv("POS_FALLBACK_RATE", "41.5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 41.5, cfg.FallbackRate, "environment wins over the file")
	assert.Equal(t, RemoteAction, cfg.RemoteKind)
	assert.Equal(t, "rollback", cfg.InsertFailure)
	assert.True(t, cfg.RemoteConfigured())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("POS_REMOTE_KIND=postgres\nPOS_DATABASE_URL=postgres://pos@localhost/pos\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("POS_REMOTE_KIND")
		os.Unsetenv("POS_DATABASE_URL")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, RemotePostgres, cfg.RemoteKind)
	assert.True(t, cfg.RemoteConfigured())
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("POS_FALLBACK_RATE", "0")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("POS_FALLBACK_RATE", "40")
	t.Setenv("POS_REMOTE_KIND", "ftp")
	_, err = Load("")
	assert.Error(t, err)
}
