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
	Port            string
	FrontendURL     string
	AllowedOrigins  []string
	DBPath          string
	CSRFSecret      string
	SeedFile        string
	ConfigCacheSize int
	Assistant       AssistantConfig
	Sessions        SessionConfig
}

// AssistantConfig controls the upstream assistant connection.
type AssistantConfig struct {
	Addr    string // gRPC address; empty selects the canned replier
	Timeout time.Duration
}

// SessionConfig controls chat session housekeeping.
type SessionConfig struct {
	IdleTTL           time.Duration
	SweepInterval     time.Duration
	MessagesPerMinute int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS"),
		DBPath:          getEnv("DB_PATH", "./data/chatbotyard.db"),
		CSRFSecret:      getEnv("CSRF_SECRET", ""),
		SeedFile:        getEnv("SEED_FILE", ""),
		ConfigCacheSize: getEnvInt("CONFIG_CACHE_SIZE", 256),
		Assistant: AssistantConfig{
			Addr:    getEnv("ASSISTANT_ADDR", ""),
			Timeout: getEnvDuration("ASSISTANT_TIMEOUT", 30*time.Second),
		},
		Sessions: SessionConfig{
			IdleTTL:           getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
			SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
			MessagesPerMinute: getEnvInt("RATE_LIMIT_MESSAGES", 20),
		},
	}

	if cfg.FrontendURL != "" && len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{cfg.FrontendURL}
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
	if c.ConfigCacheSize <= 0 {
		return fmt.Errorf("CONFIG_CACHE_SIZE must be > 0")
	}
	if c.Assistant.Timeout <= 0 {
		return fmt.Errorf("ASSISTANT_TIMEOUT must be > 0")
	}
	if c.Sessions.IdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0")
	}
	if c.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if c.Sessions.MessagesPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_MESSAGES must be > 0")
	}
	if !c.IsDevelopment() && c.CSRFSecret == "" {
		return fmt.Errorf("CSRF_SECRET is required outside development")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
	if err != nil {
		return fallback
	}
	return d
}
