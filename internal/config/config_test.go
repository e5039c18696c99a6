package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json5"))
	require.NoError(t, err)
	assert.Equal(t, 18790, cfg.Gateway.Port)
	assert.Equal(t, "webhook", cfg.Telegram.Mode)
	assert.Equal(t, 1_000_000, cfg.Budget.DailyTokenLimit)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// trailing comments and unquoted keys are valid JSON5
		gateway: { port: 9000 },
		telegram: { mode: "polling" },
		budget: { daily_token_limit: 50000 },
	}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Gateway.Port)
	assert.Equal(t, "polling", cfg.Telegram.Mode)
	assert.Equal(t, 50000, cfg.Budget.DailyTokenLimit)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("GOCLAW_TELEGRAM_TOKEN", "env-token")
	t.Setenv("GOCLAW_PORT", "7777")

	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{ gateway: { port: 9000 } }`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, 7777, cfg.Gateway.Port)
}

func TestReplaceFrom_SwapsUnderLock(t *testing.T) {
	cfg := Default()
	fresh := Default()
	fresh.Budget.DailyTokenLimit = 42

	cfg.ReplaceFrom(fresh)
	assert.Equal(t, 42, cfg.Snapshot().Budget.DailyTokenLimit)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Gateway.Port = 9123

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9123, loaded.Gateway.Port)
}

func TestHash_ChangesWithContent(t *testing.T) {
	a := Default()
	b := Default()
	b.Budget.DailyTokenLimit = 1

	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), ExpandHome("~/x"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
}
