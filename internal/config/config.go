package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel string

	// Timezone used for zone-less dates and month boundaries
	Timezone string

	// Cache
	CacheBackend       string
	CacheDBPath        string
	CacheNamespace     string
	CacheMaxEntries    int
	CacheDefaultTTL    time.Duration
	CacheMaxEntryBytes int
	CacheQuotaBytes    int64
	CacheSweepInterval time.Duration
	CacheTTLFile       string

	// Data source selection
	DataBackend string
	DataDir     string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Idle user sessions are dropped after this long; 0 keeps them forever
	SessionIdleTimeout time.Duration

	// AMQP cache invalidation; disabled when AMQPURL is empty. Every
	// instance binds its own queue to the fanout exchange.
	AMQPURL      string
	AMQPExchange string
}

var (
	validCacheBackends = []string{"sqlite", "memory", "none"}
	validDataBackends  = []string{"memory", "sheets"}
)

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("TIMEZONE", "UTC"),

		CacheBackend:       getEnv("CACHE_BACKEND", "sqlite"),
		CacheDBPath:        getEnv("CACHE_DB_PATH", "./data/cache.db"),
		CacheNamespace:     getEnv("CACHE_NAMESPACE", "finboard_cache_"),
		CacheMaxEntries:    getEnvInt("CACHE_MAX_ENTRIES", 100),
		CacheDefaultTTL:    getEnvDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
		CacheMaxEntryBytes: getEnvInt("CACHE_MAX_ENTRY_BYTES", 100000),
		CacheQuotaBytes:    getEnvInt64("CACHE_QUOTA_BYTES", 0),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		CacheTTLFile:       getEnv("CACHE_TTL_FILE", ""),

		DataBackend: getEnv("DATA_BACKEND", "memory"),
		DataDir:     getEnv("DATA_DIR", "./data"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finboard.invalidations"),
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if !oneOf(c.CacheBackend, validCacheBackends) {
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of %v", c.CacheBackend, validCacheBackends))
	}
	if c.CacheBackend == "sqlite" && strings.TrimSpace(c.CacheDBPath) == "" {
		errors = append(errors, "cache database path cannot be empty when using sqlite cache backend")
	}
	if c.CacheMaxEntries < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache max entries %d: must be at least 1", c.CacheMaxEntries))
	}
	if c.CacheDefaultTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache default TTL %v: must be at least 1 second", c.CacheDefaultTTL))
	}
	if c.CacheMaxEntryBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache max entry bytes %d: must be positive", c.CacheMaxEntryBytes))
	}
	if c.CacheQuotaBytes < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache quota %d: must not be negative", c.CacheQuotaBytes))
	}
	if c.CacheSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache sweep interval %v: must be at least 1 second", c.CacheSweepInterval))
	}
	if c.SessionIdleTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid session idle timeout %v: must not be negative", c.SessionIdleTimeout))
	}
	if c.CacheTTLFile != "" {
		if _, err := LoadTTLFile(c.CacheTTLFile); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if !oneOf(c.DataBackend, validDataBackends) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validDataBackends))
	}
	if c.DataBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		hasCredentials := c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != "" ||
			os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
		if !hasCredentials {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if v == s {
			return true
		}
	}
	return false
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
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
