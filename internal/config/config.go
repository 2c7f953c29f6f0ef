package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"accountbook/internal/log"
)

type Config struct {
	// Database
	SQLiteDBPath string
	BusyTimeout  time.Duration

	// Aggregation
	Timezone string

	// Monthly totals cache
	TotalsCacheTTL     time.Duration
	TotalsCacheSize    int
	CacheCleanInterval time.Duration

	// Logging
	LogLevel string
}

func Load() *Config {
	return &Config{
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/account_history.db"),
		BusyTimeout:  getEnvDuration("BUSY_TIMEOUT", 5*time.Second),

		Timezone: getEnv("TIMEZONE", "Local"),

		TotalsCacheTTL:     getEnvDuration("TOTALS_CACHE_TTL", 30*time.Second),
		TotalsCacheSize:    getEnvInt("TOTALS_CACHE_SIZE", 16),
		CacheCleanInterval: getEnvDuration("CACHE_CLEAN_INTERVAL", time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.SQLiteDBPath) == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if strings.HasPrefix(c.SQLiteDBPath, ":memory:") {
		errors = append(errors, "in-memory SQLite databases are not supported: the schema bootstrap uses its own connection")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			errors = append(errors, fmt.Sprintf("SQLite database directory '%s' is not a directory", dir))
		}
	}

	if c.BusyTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid busy timeout %v: must not be negative", c.BusyTimeout))
	} else if c.BusyTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid busy timeout %v: must be at most 1 minute", c.BusyTimeout))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.TotalsCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid totals cache TTL %v: must not be negative", c.TotalsCacheTTL))
	} else if c.TotalsCacheTTL > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid totals cache TTL %v: must be at most 1 hour", c.TotalsCacheTTL))
	}

	if c.TotalsCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid totals cache size %d: must be at least 1", c.TotalsCacheSize))
	} else if c.TotalsCacheSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid totals cache size %d: must be at most 1000", c.TotalsCacheSize))
	}

	if c.CacheCleanInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache clean interval %v: must be at least 1 second", c.CacheCleanInterval))
	}

	if _, err := c.SlogLevel(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location resolves Timezone. "Local" and "" mean the process time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// SlogLevel resolves LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	return log.ParseLevel(c.LogLevel)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
