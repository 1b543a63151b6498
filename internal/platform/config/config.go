// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the dashboard client needs to start.
type Config struct {
	// ScoringURL is the base URL of the scoring service.
	ScoringURL string

	// IdentityURL and IdentityAPIKey locate the identity provider.
	IdentityURL    string
	IdentityAPIKey string

	// PostgresDSN selects the postgres record store when set.
	PostgresDSN string

	// Redis selects the redis record store when PostgresDSN is empty and
	// Redis.URL is set. With neither, records stay in memory.
	Redis RedisConfig

	// MetricsAddr exposes /metrics when non-empty.
	MetricsAddr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// RedisConfig holds connection tuning for the redis-backed record store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		ScoringURL:     envOr("RISKDASH_SCORING_URL", "http://localhost:8000"),
		IdentityURL:    envOr("RISKDASH_IDENTITY_URL", ""),
		IdentityAPIKey: envOr("RISKDASH_IDENTITY_API_KEY", ""),
		PostgresDSN:    envOr("RISKDASH_POSTGRES_DSN", ""),
		Redis: RedisConfig{
			URL:          envOr("RISKDASH_REDIS_URL", ""),
			PoolSize:     envInt("RISKDASH_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("RISKDASH_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("RISKDASH_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("RISKDASH_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("RISKDASH_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		MetricsAddr: envOr("RISKDASH_METRICS_ADDR", ""),
		LogLevel:    envOr("RISKDASH_LOG_LEVEL", "info"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
