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
	FrontendURL string
	DBPath      string

	// CoachBaseURL points at the AI coaching service. Empty disables AI
	// features.
	CoachBaseURL string
	CoachTimeout time.Duration

	// AutosaveDelay is the quiet period after an edit before content is
	// persisted.
	AutosaveDelay time.Duration
	// IdleCheckDelay is the quiet period after an edit before the coach
	// reviews the draft. Must be longer than AutosaveDelay.
	IdleCheckDelay time.Duration
	// MinAnalyzeLength is the minimum visible character count a draft needs
	// before idle checks run.
	MinAnalyzeLength int
	// MinSavingIndicator is how long the transient "saving" state stays
	// visible so rapid saves are perceivable.
	MinSavingIndicator time.Duration

	// DefaultGradeLevel is used for learners without a recorded grade.
	DefaultGradeLevel string

	// SessionTTL is how long an open workspace may sit idle before it is
	// evicted.
	SessionTTL time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		DBPath:             getEnv("DB_PATH", "./data/studio.db"),
		CoachBaseURL:       getEnv("COACH_BASE_URL", ""),
		CoachTimeout:       getEnvDuration("COACH_TIMEOUT", 60*time.Second),
		AutosaveDelay:      getEnvDuration("AUTOSAVE_DELAY", 5*time.Second),
		IdleCheckDelay:     getEnvDuration("IDLE_CHECK_DELAY", 30*time.Second),
		MinAnalyzeLength:   getEnvInt("MIN_ANALYZE_LENGTH", 20),
		MinSavingIndicator: getEnvDuration("MIN_SAVING_INDICATOR", 800*time.Millisecond),
		DefaultGradeLevel:  getEnv("DEFAULT_GRADE_LEVEL", "3"),
		SessionTTL:         getEnvDuration("SESSION_TTL", 60*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set and
// mutually consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.AutosaveDelay <= 0 {
		return fmt.Errorf("AUTOSAVE_DELAY must be > 0")
	}
	if c.IdleCheckDelay <= c.AutosaveDelay {
		return fmt.Errorf("IDLE_CHECK_DELAY must be longer than AUTOSAVE_DELAY")
	}
	if c.MinAnalyzeLength < 0 {
		return fmt.Errorf("MIN_ANALYZE_LENGTH must be >= 0")
	}
	if c.CoachTimeout <= 0 {
		return fmt.Errorf("COACH_TIMEOUT must be > 0")
	}
	return nil
}

// CoachEnabled reports whether a coaching service endpoint is configured.
func (c *Config) CoachEnabled() bool {
	return c.CoachBaseURL != ""
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
