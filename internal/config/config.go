package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything main needs to assemble the service.
type Config struct {
	Port         string
	DatabasePath string
	Environment  string

	// RequireElapsedDate makes completion wait for the appointment day.
	RequireElapsedDate bool

	// PendingTTL is how long a pending request may outlive its date
	// before the expiry sweep cancels it. Zero disables expiry.
	PendingTTL time.Duration

	// ExpirySweepInterval is how often the expiry job runs when enabled.
	ExpirySweepInterval time.Duration
}

// Load reads configuration from a .env file when present, then from the
// environment, applying defaults.
func Load() (*Config, error) {
	// Missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load(".env")

	cfg := &Config{
		Port:                envOrDefault("PORT", "8080"),
		DatabasePath:        envOrDefault("DATABASE_PATH", "consultiq.db"),
		Environment:         envOrDefault("ENV", "development"),
		RequireElapsedDate:  os.Getenv("REQUIRE_ELAPSED_DATE") == "true",
		ExpirySweepInterval: time.Hour,
	}

	if v := os.Getenv("EXPIRE_PENDING_AFTER"); v != "" && v != "0" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parsing EXPIRE_PENDING_AFTER: %w", err)
		}
		cfg.PendingTTL = ttl
	}

	if v := os.Getenv("EXPIRY_SWEEP_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parsing EXPIRY_SWEEP_INTERVAL: %w", err)
		}
		cfg.ExpirySweepInterval = interval
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
