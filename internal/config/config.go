package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/spf13/viper"
)

type Config struct {
	v      *viper.Viper
	Logger *log.Logger
}

// NewConfig loads the configuration from various sources using viper
func NewConfig() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Try to read config file (don't error if it doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		// Config file can't be read, continue with env vars and defaults
		l := log.New(os.Stderr)
		l.Warnf("error reading config file: %v\nContinuing with envs...", err)
	}

	// Bind environment variables
	err := bindEnvs(v)
	if err != nil {
		// If env binding also fails, we'll basically have no config
		// and need to exit at this point.
		return nil, fmt.Errorf("error binding environment variables: %w", err)
	}

	newLogFile, err := newLogFile(v.GetString("log_dir"))
	if err != nil {
		// I've decided to make this fatal because I want
		// to know if that's an issue.
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if err := pruneOldLogFiles(v.GetString("log_dir")); err != nil {
		// This too. I've decided to make it fatal.
		return nil, fmt.Errorf("failed to prune old log files: %w", err)
	}

	// Log both to a file and to stderr
	w := io.MultiWriter(os.Stderr, newLogFile)

	newCfg := &Config{
		v:      v,
		Logger: log.New(w),
	}

	// Validate required fields
	if err := validateConfig(newCfg); err != nil {
		return nil, err
	}

	return newCfg, nil
}

// newLogFile generates a new log file
func newLogFile(dir string) (*os.File, error) {
	if dir == "" {
		return nil, fmt.Errorf("log directory is not set")
	}

	// Create dir if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Create a new log file with timestamp
	file, err := os.Create(fmt.Sprintf("%s/autoroler_%s.log", dir, time.Now().Format("20060102_150405")))
	if err != nil {
		return nil, err
	}
	return file, nil
}

// RotateAndPruneLogs rotates to a fresh log file and removes stale ones.
func (c *Config) RotateAndPruneLogs() error {
	newLogFile, err := newLogFile(c.v.GetString("log_dir"))
	if err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	c.Logger.SetOutput(io.MultiWriter(os.Stderr, newLogFile))

	return pruneOldLogFiles(c.v.GetString("log_dir"))
}

// pruneOldLogFiles removes log files older than 7 days
func pruneOldLogFiles(dir string) error {
	logFiles, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	for _, file := range logFiles {
		if file.IsDir() {
			continue
		}

		// Check if the file is older than 7 days
		info, err := file.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > 7*24*time.Hour {
			if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
				return fmt.Errorf("failed to remove old log file %s: %w", file.Name(), err)
			}
		}
	}

	return nil
}

// NewMockConfig creates a mock configuration for testing
func NewMockConfig(kv map[string]interface{}) *Config {
	v := viper.New()
	setDefaults(v)
	for k, val := range kv {
		v.Set(k, val)
	}
	return &Config{
		v:      v,
		Logger: log.New(os.Stderr),
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_dir", "./logs")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("database_path", "./autoroler.db")
	v.SetDefault("max_role_count", 20)
	v.SetDefault("backup_frequency", "6m")
	v.SetDefault("alias_max_attempts", 5)
	v.SetDefault("activity_blacklist", []string{"Spotify"})
	v.SetDefault("catalog_exclude_adult", true)
}

// bindEnvs binds environment variables to viper keys
func bindEnvs(v *viper.Viper) error {
	bindings := []struct {
		key string
		env string
	}{
		{"bot_token", "AUTOROLER_BOT_TOKEN"},
		{"igdb_client_id", "AUTOROLER_IGDB_CLIENT_ID"},
		{"igdb_client_secret", "AUTOROLER_IGDB_CLIENT_SECRET"},
		{"igdb_client_token", "AUTOROLER_IGDB_CLIENT_TOKEN"},
		{"server_id", "AUTOROLER_SERVER_ID"},
		{"bot_channel_id", "AUTOROLER_BOT_CHANNEL_ID"},
		{"admin_channel_id", "AUTOROLER_ADMIN_CHANNEL_ID"},
		{"data_dir", "AUTOROLER_DATA_DIR"},
		{"database_path", "AUTOROLER_DATABASE_PATH"},
		{"log_dir", "AUTOROLER_LOG_DIR"},
	}

	for _, b := range bindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return fmt.Errorf("error binding %s: %w", b.env, err)
		}
	}

	return nil
}

// validateConfig ensures required configuration values are present
func validateConfig(c *Config) error {
	if c.GetBotToken() == "" {
		return fmt.Errorf("bot_token is required (set AUTOROLER_BOT_TOKEN or add it to config.yaml)")
	}

	return nil
}

// Set persists a configuration value back to the config file when possible.
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
	if err := c.v.WriteConfig(); err != nil {
		c.Logger.Warnf("failed to write config: %v", err)
	}
}
