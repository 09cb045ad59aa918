package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LISTEN_ADDR", "REDIS_URL", "DATABASE_URL", "IDENTITY_BASE_URL", "IDENTITY_API_KEY",
		"MATCH_BUDGET", "STALENESS_WINDOW", "SWEEP_INTERVAL", "TERMINAL_RETENTION", "MATCH_TTL",
		"LOBBY_TOLERANCE_STEP", "LOBBY_WIDEN_INTERVAL", "ALLOWED_ORIGINS", "MESSAGES_DIR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 5*time.Minute, cfg.MatchBudget)
	assert.Equal(t, 10*time.Minute, cfg.StalenessWindow)
	assert.Equal(t, 10, cfg.LobbyToleranceStep)
	assert.Zero(t, cfg.LobbyWidenInterval)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv only fills unset variables
	for _, k := range []string{"LISTEN_ADDR", "MATCH_BUDGET", "ALLOWED_ORIGINS"} {
		require.NoError(t, os.Unsetenv(k))
	}
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LISTEN_ADDR=:9000\nMATCH_BUDGET=3m\nALLOWED_ORIGINS=https://a.example, https://b.example\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("LISTEN_ADDR")
		_ = os.Unsetenv("MATCH_BUDGET")
		_ = os.Unsetenv("ALLOWED_ORIGINS")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 3*time.Minute, cfg.MatchBudget)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Setenv("SWEEP_INTERVAL", "soon")
	_, err := Load(missing)
	assert.Error(t, err)

	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("LOBBY_TOLERANCE_STEP", "0")
	_, err = Load(missing)
	assert.Error(t, err)

	t.Setenv("LOBBY_TOLERANCE_STEP", "")
	t.Setenv("MATCH_BUDGET", "20m")
	_, err = Load(missing)
	assert.Error(t, err)
}
