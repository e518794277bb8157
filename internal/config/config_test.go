package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigRequiresBotToken(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTOROLER_BOT_TOKEN", "")
	t.Setenv("AUTOROLER_LOG_DIR", t.TempDir())

	_, err := NewConfig()
	require.Error(t, err)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTOROLER_BOT_TOKEN", "test_token")
	t.Setenv("AUTOROLER_IGDB_CLIENT_ID", "test_id")
	t.Setenv("AUTOROLER_IGDB_CLIENT_TOKEN", "test_igdb_token")
	t.Setenv("AUTOROLER_LOG_DIR", t.TempDir())

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "test_token", cfg.GetBotToken())
	assert.Equal(t, "test_id", cfg.GetIGDBClientID())
	assert.Equal(t, "test_igdb_token", cfg.GetIGDBClientToken())
}

func TestDefaults(t *testing.T) {
	cfg := NewMockConfig(map[string]interface{}{
		"bot_token": "test_token",
	})

	assert.Equal(t, 20, cfg.GetMaxRoleCount())
	assert.Equal(t, 6*time.Minute, cfg.GetBackupFrequency())
	assert.Equal(t, 5, cfg.GetAliasMaxAttempts())
	assert.Equal(t, []string{"Spotify"}, cfg.GetActivityBlacklist())
	assert.True(t, cfg.GetCatalogExcludeAdult())
	assert.Empty(t, cfg.GetMemberWhitelist())
	assert.Equal(t, "./autoroler.db", cfg.GetDatabasePath())
}

func TestMockConfigOverrides(t *testing.T) {
	cfg := NewMockConfig(map[string]interface{}{
		"max_role_count":     3,
		"backup_frequency":   "30s",
		"alias_max_attempts": 2,
		"member_whitelist":   []string{"alice", "bob"},
	})

	assert.Equal(t, 3, cfg.GetMaxRoleCount())
	assert.Equal(t, 30*time.Second, cfg.GetBackupFrequency())
	assert.Equal(t, 2, cfg.GetAliasMaxAttempts())
	assert.Equal(t, []string{"alice", "bob"}, cfg.GetMemberWhitelist())
}

func TestAccessorFallbacks(t *testing.T) {
	cfg := NewMockConfig(map[string]interface{}{
		"backup_frequency":   "not-a-duration",
		"alias_max_attempts": -1,
	})

	// Unparseable or nonsensical values fall back to safe defaults.
	assert.Equal(t, 6*time.Minute, cfg.GetBackupFrequency())
	assert.Equal(t, 5, cfg.GetAliasMaxAttempts())
}
