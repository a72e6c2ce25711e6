package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 50, cfg.MaxPlayersPerTown)
	assert.Equal(t, "local", cfg.VideoTokenMode)
	assert.Equal(t, 3600, cfg.VideoTokenTTLSeconds)
	assert.Equal(t, "1000-M", cfg.RateLimitAPI)
	assert.False(t, cfg.Development())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TOWNS_PORT", "9000")
	t.Setenv("TOWNS_ENVIRONMENT", "development")
	t.Setenv("TOWNS_MAX_PLAYERS_PER_TOWN", "10")
	t.Setenv("TOWNS_RATE_LIMIT_API", "5-M")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.Development())
	assert.Equal(t, 10, cfg.MaxPlayersPerTown)
	assert.Equal(t, "5-M", cfg.RateLimitAPI)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("TOWNS_PORT", "70000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOWNS_PORT")
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	t.Setenv("TOWNS_ENVIRONMENT", "staging")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RemoteModeRequiresURL(t *testing.T) {
	t.Setenv("TOWNS_VIDEO_TOKEN_MODE", "remote")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOWNS_VIDEO_SERVICE_URL")
}

func TestLoad_RemoteModeWithURL(t *testing.T) {
	t.Setenv("TOWNS_VIDEO_TOKEN_MODE", "remote")
	t.Setenv("TOWNS_VIDEO_SERVICE_URL", "https://tokens.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "remote", cfg.VideoTokenMode)
	assert.Equal(t, "https://tokens.example.com", cfg.VideoServiceURL)
}

func TestLoad_LocalModeSecretTooShort(t *testing.T) {
	t.Setenv("TOWNS_VIDEO_API_KEY", "key")
	t.Setenv("TOWNS_VIDEO_API_SECRET", "too-short")

	_, err := Load()
	assert.Error(t, err)
}
