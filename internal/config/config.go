package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultConversationTTLHours is how long conversation messages stay
	// live when no TTL is given.
	DefaultConversationTTLHours = 48

	// DefaultSearchLimit is the default result cap for search_nodes.
	DefaultSearchLimit = 10

	// DefaultHistoryLimit is the default window for get_history.
	DefaultHistoryLimit = 20
)

// Config holds all configuration for iris-memory.
type Config struct {
	Database     DatabaseConfig     `mapstructure:"database"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Search       SearchConfig       `mapstructure:"search"`
	History      HistoryConfig      `mapstructure:"history"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	API          APIConfig          `mapstructure:"api"`
	Mirror       MirrorConfig       `mapstructure:"mirror"`
}

// DatabaseConfig holds the SQLite store settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ConversationConfig holds conversation-log settings.
type ConversationConfig struct {
	DefaultTTLHours int `mapstructure:"default_ttl_hours"`
}

// SearchConfig holds query-engine settings.
type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
}

// HistoryConfig holds history-read settings.
type HistoryConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// MirrorConfig holds the optional Neo4j read-model settings. The mirror is
// one-way and off by default; SQLite remains the authoritative store.
type MirrorConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("database.path", filepath.Join(homeDir(), ".config", "iris", "memory.db"))

	v.SetDefault("conversation.default_ttl_hours", DefaultConversationTTLHours)
	v.SetDefault("search.default_limit", DefaultSearchLimit)
	v.SetDefault("history.default_limit", DefaultHistoryLimit)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8090")
	v.SetDefault("api.auth_token", "")

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.uri", "neo4j://localhost:7687")
	v.SetDefault("mirror.username", "neo4j")
	v.SetDefault("mirror.password", "")
	v.SetDefault("mirror.database", "")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".iris-memory"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("IRIS_MEMORY")
	v.AutomaticEnv()

	// Map specific env vars. IRIS_DATABASE_PATH is the name earlier
	// deployments used for the store file; keep honoring it.
	_ = v.BindEnv("database.path", "IRIS_DATABASE_PATH")
	_ = v.BindEnv("api.listen_addr", "IRIS_MEMORY_API_LISTEN_ADDR")
	_ = v.BindEnv("api.auth_token", "IRIS_MEMORY_API_AUTH_TOKEN")
	_ = v.BindEnv("mirror.enabled", "IRIS_MEMORY_MIRROR_ENABLED")
	_ = v.BindEnv("mirror.uri", "IRIS_MEMORY_MIRROR_URI")
	_ = v.BindEnv("mirror.password", "IRIS_MEMORY_MIRROR_PASSWORD")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK — use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Conversation.DefaultTTLHours < 0 {
		return fmt.Errorf("conversation.default_ttl_hours must be >= 0")
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be greater than 0")
	}
	if c.History.DefaultLimit <= 0 {
		return fmt.Errorf("history.default_limit must be greater than 0")
	}
	if c.Mirror.Enabled && c.Mirror.URI == "" {
		return fmt.Errorf("mirror.uri must not be empty when the mirror is enabled")
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
