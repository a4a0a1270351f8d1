package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/engine?sslmode=disable")
	t.Setenv("JWT_SECRET_KEY", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 5*time.Minute, cfg.MatchMinLiveDuration)
	assert.Equal(t, 10*time.Minute, cfg.MatchCancelWindow)
	assert.Equal(t, 15*time.Minute, cfg.MatchScoreEditGrace)
	assert.Equal(t, 30*time.Minute, cfg.LeaderboardRebuildInterval)
	assert.Equal(t, time.Minute, cfg.StatusUpdateInterval)
	assert.False(t, cfg.R2Configured())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("MATCH_MIN_LIVE_MINUTES", "2")
	t.Setenv("MATCH_CANCEL_WINDOW_MINUTES", "20")
	t.Setenv("LEADERBOARD_REBUILD_MINUTES", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, 2*time.Minute, cfg.MatchMinLiveDuration)
	assert.Equal(t, 20*time.Minute, cfg.MatchCancelWindow)
	assert.Equal(t, time.Hour, cfg.LeaderboardRebuildInterval)
}

func TestLoadRequiredVariables(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET_KEY", "secret")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/engine")
	t.Setenv("JWT_SECRET_KEY", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadInvalidPort(t *testing.T) {
	setRequired(t)

	t.Setenv("SERVER_PORT", "not-a-number")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SERVER_PORT", "70000")
	_, err = Load()
	assert.Error(t, err)
}

func TestR2Configured(t *testing.T) {
	setRequired(t)
	t.Setenv("R2_ACCOUNT_ID", "acc")
	t.Setenv("R2_ACCESS_KEY_ID", "key")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
	t.Setenv("R2_BUCKET_NAME", "bucket")
	t.Setenv("R2_PUBLIC_BASE_URL", "https://cdn.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.R2Configured())
}
