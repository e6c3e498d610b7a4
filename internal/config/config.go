package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config holds all configuration for the application.
// Following 12-factor app principles, all config is loaded from environment
// variables; a local .env file is honoured when present.
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Draft    DraftConfig
	LogLevel string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
}

type AuthConfig struct {
	APIKeys []string // Valid API keys for authentication
}

// DraftConfig controls the draft snapshot store.
type DraftConfig struct {
	DBPath        string // bbolt database file
	DebounceMs    int    // quiet period before a scheduled save fires
	JanitorSpec   string // cron spec for the stale-draft sweep
	RetentionDays int    // drafts untouched longer than this are purged
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// .env is optional; missing file is not an error
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsInt("READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("WRITE_TIMEOUT", 15),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 30),
		},
		Auth: AuthConfig{
			APIKeys: getEnvAsSlice("API_KEYS", []string{"apitest"}),
		},
		Draft: DraftConfig{
			DBPath:        getEnv("DRAFT_DB_PATH", "data/drafts.db"),
			DebounceMs:    getEnvAsInt("DRAFT_DEBOUNCE_MS", 500),
			JanitorSpec:   getEnv("DRAFT_JANITOR_SPEC", "0 3 * * *"),
			RetentionDays: getEnvAsInt("DRAFT_RETENTION_DAYS", 30),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("at least one API key must be configured")
	}

	if c.Draft.DBPath == "" {
		return fmt.Errorf("DRAFT_DB_PATH is required")
	}

	if c.Draft.DebounceMs < 0 {
		return fmt.Errorf("DRAFT_DEBOUNCE_MS must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := cast.ToIntE(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
