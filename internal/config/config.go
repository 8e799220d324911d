// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	MetricsPort string
	DBPath      string

	// Gemini settings
	GeminiAPIKey string
	GeminiModel  string

	// Google OAuth client used to refresh stored tokens
	GoogleClientID     string
	GoogleClientSecret string

	// PubSubTopic is the Pub/Sub topic mailbox watches publish to, e.g.
	// "projects/my-project/topics/gmail-push".
	PubSubTopic string

	// SystemInstruction steers the assistant. Empty uses the built-in one.
	SystemInstruction string

	// HistoryCapacity bounds the per-user conversation history.
	HistoryCapacity int

	// WatchRenewalInterval is how often the subscription renewal sweep runs.
	WatchRenewalInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		MetricsPort:          getEnv("METRICS_PORT", "9090"),
		DBPath:               getEnv("DB_PATH", "./data/schedassist.db"),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", ""),
		GoogleClientID:       getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   getEnv("GOOGLE_CLIENT_SECRET", ""),
		PubSubTopic:          getEnv("PUBSUB_TOPIC", ""),
		SystemInstruction:    getEnv("SYSTEM_INSTRUCTION", ""),
		HistoryCapacity:      getEnvInt("HISTORY_CAPACITY", 8),
		WatchRenewalInterval: getEnvDuration("WATCH_RENEWAL_INTERVAL", time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY must be set")
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("HISTORY_CAPACITY must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
