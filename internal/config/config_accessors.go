package config

import "time"

func (c *Config) GetBotToken() string {
	return c.v.GetString("bot_token")
}

func (c *Config) GetIGDBClientID() string {
	return c.v.GetString("igdb_client_id")
}

func (c *Config) GetIGDBClientSecret() string {
	return c.v.GetString("igdb_client_secret")
}

func (c *Config) GetIGDBClientToken() string {
	return c.v.GetString("igdb_client_token")
}

func (c *Config) GetServerID() string {
	return c.v.GetString("server_id")
}

// GetBotChannelID is the public channel for new-game announcements.
func (c *Config) GetBotChannelID() string {
	return c.v.GetString("bot_channel_id")
}

// GetAdminChannelID is where alias prompts and error reports land.
func (c *Config) GetAdminChannelID() string {
	return c.v.GetString("admin_channel_id")
}

// GetGeneralChannelLink is embedded in DM messages so members can jump back to the server.
func (c *Config) GetGeneralChannelLink() string {
	return c.v.GetString("general_channel_link")
}

func (c *Config) GetDataDir() string {
	return c.v.GetString("data_dir")
}

func (c *Config) GetDatabasePath() string {
	return c.v.GetString("database_path")
}

// GetMaxRoleCount caps how many games may hold a live Discord role at once.
func (c *Config) GetMaxRoleCount() int {
	return c.v.GetInt("max_role_count")
}

// GetBackupFrequency is the interval between durable-state flushes.
func (c *Config) GetBackupFrequency() time.Duration {
	d := c.v.GetDuration("backup_frequency")
	if d <= 0 {
		d = 6 * time.Minute
	}
	return d
}

// GetAliasMaxAttempts bounds the alias-collection retry flow.
func (c *Config) GetAliasMaxAttempts() int {
	n := c.v.GetInt("alias_max_attempts")
	if n <= 0 {
		n = 5
	}
	return n
}

// GetActivityBlacklist lists activity names that never count as games (e.g. Spotify).
func (c *Config) GetActivityBlacklist() []string {
	return c.v.GetStringSlice("activity_blacklist")
}

// GetMemberWhitelist optionally restricts presence tracking to the listed usernames.
// Empty means every non-bot member is tracked.
func (c *Config) GetMemberWhitelist() []string {
	return c.v.GetStringSlice("member_whitelist")
}

// GetCatalogExcludeAdult filters adult-themed titles out of catalog searches.
func (c *Config) GetCatalogExcludeAdult() bool {
	return c.v.GetBool("catalog_exclude_adult")
}

// GetSuperAdminIDs are user IDs allowed to run maintenance commands.
func (c *Config) GetSuperAdminIDs() []string {
	return c.v.GetStringSlice("super_admin_ids")
}
