// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the service needs to run.
type Config struct {
	DatabaseURL string
	Port        int

	// Ingestion
	MaxUploadBytes    int64
	MaxConcurrentJobs int

	// Exports
	ExportDir       string
	ExportRetention time.Duration
	SweepSchedule   string // cron expression for the expiry sweeper

	// Logging
	LogFile  string
	LogLevel string

	JWT *JWTConfig
}

// Load reads configuration from environment variables. DATABASE_URL and
// JWT_SECRET are required; everything else has a default.
func Load() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	maxUpload, err := getEnvInt64("MAX_UPLOAD_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}
	maxJobs, err := getEnvInt("MAX_CONCURRENT_JOBS", 4)
	if err != nil {
		return nil, err
	}
	retention, err := getEnvDuration("EXPORT_RETENTION", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	jwtCfg, err := NewJWTConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:       databaseURL,
		Port:              port,
		MaxUploadBytes:    maxUpload,
		MaxConcurrentJobs: maxJobs,
		ExportDir:         getEnv("EXPORT_DIR", "exports"),
		ExportRetention:   retention,
		SweepSchedule:     getEnv("SWEEP_SCHEDULE", "@every 10m"),
		LogFile:           os.Getenv("LOG_FILE"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		JWT:               jwtCfg,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}
	if c.MaxUploadBytes < 1 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got: %d", c.MaxUploadBytes)
	}
	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1, got: %d", c.MaxConcurrentJobs)
	}
	if c.ExportRetention <= 0 {
		return fmt.Errorf("EXPORT_RETENTION must be positive, got: %s", c.ExportRetention)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return d, nil
}
