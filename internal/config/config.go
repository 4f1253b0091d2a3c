package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Cache backend selectors for the keyword-group scratch store.
const (
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
	CacheAzure  = "azure"
	CacheMemory = "memory"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// External collection backend
	BackendURL    string
	BackendToken  string  // default bearer token; per-request cookies override it
	BackendRPS    float64 // request rate limit toward the backend
	BackendBurst  int
	FetchLimit    int // per-brand post fetch limit
	UserPostLimit int // consolidated user-posts fetch limit

	// Keyword-group scratch cache
	CacheBackend string // sqlite, redis, azure or memory
	CachePath    string // sqlite database path
	RedisAddr    string
	RedisDB      int

	// Azure Storage configuration (cache backend "azure")
	StorageAccount   string
	StorageContainer string

	// Digest notifications
	DigestSchedule    string // "daily", "weekly" or "" to disable
	WebhookURL        string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// Collection polling after a search trigger
	PollAttempts int
	PollDelaySec int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		BackendURL:    getEnv("BACKEND_API_URL", "http://localhost:5000"),
		BackendToken:  getEnv("BACKEND_API_TOKEN", ""),
		BackendRPS:    getFloatEnv("BACKEND_RPS", 10),
		BackendBurst:  getIntEnv("BACKEND_BURST", 20),
		FetchLimit:    getIntEnv("FETCH_LIMIT", 100),
		UserPostLimit: getIntEnv("USER_POST_LIMIT", 200),

		CacheBackend: getEnv("CACHE_BACKEND", CacheSQLite),
		CachePath:    getEnv("CACHE_PATH", "data/groups.db"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:      getIntEnv("REDIS_DB", 0),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "keyword-groups"),

		DigestSchedule:    getEnv("DIGEST_SCHEDULE", ""),
		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		PollAttempts: getIntEnv("POLL_ATTEMPTS", 3),
		PollDelaySec: getIntEnv("POLL_DELAY_SECONDS", 2),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_API_URL is required")
	}
	if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		return fmt.Errorf("BACKEND_API_URL must be an http(s) URL")
	}

	switch c.CacheBackend {
	case CacheSQLite, CacheRedis, CacheMemory:
	case CacheAzure:
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required when CACHE_BACKEND is 'azure'")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of 'sqlite', 'redis', 'azure' or 'memory'")
	}

	if c.DigestSchedule != "" && c.DigestSchedule != "daily" && c.DigestSchedule != "weekly" {
		return fmt.Errorf("DIGEST_SCHEDULE must be 'daily', 'weekly' or empty")
	}

	if c.DigestSchedule != "" && c.WebhookURL == "" && c.NotificationEmail == "" {
		return fmt.Errorf("at least one notification method must be configured (WEBHOOK_URL or NOTIFICATION_EMAIL) when DIGEST_SCHEDULE is set")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	if c.PollAttempts < 1 {
		return fmt.Errorf("POLL_ATTEMPTS must be at least 1")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
