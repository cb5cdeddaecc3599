// Package config handles loading and validation of application configuration
// from environment variables. Supports .env files via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret-change-in-production"

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        int
	Environment string // "development" | "staging" | "production"

	// Storage
	StoreDriver string // "postgres" | "memory"
	DatabaseURL string

	// Security
	JWTSecret      string
	AllowedOrigins []string
	RateLimitRPM   int

	// Redis (chat fan-out across instances & rate limiting); empty disables it
	RedisURL string

	// Lifecycle
	ComplaintTTL     time.Duration
	ExpirySweepEvery time.Duration
	RequireLocation  bool

	// Rating log integrity
	IntegrityRebuildEvery time.Duration

	// Chat
	ChatSendBuffer int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: getEnv("ENVIRONMENT", "development"),

		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:      getEnv("JWT_SECRET", defaultJWTSecret),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"), ","),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 120),

		RedisURL: getEnv("REDIS_URL", ""),

		ComplaintTTL:     time.Duration(getEnvInt("COMPLAINT_TTL_HOURS", 5)) * time.Hour,
		ExpirySweepEvery: time.Duration(getEnvInt("EXPIRY_SWEEP_INTERVAL", 5)) * time.Minute,
		RequireLocation:  getEnvBool("REQUIRE_LOCATION", false),

		IntegrityRebuildEvery: time.Duration(getEnvInt("INTEGRITY_REBUILD_INTERVAL", 5)) * time.Minute,

		ChatSendBuffer: getEnvInt("CHAT_SEND_BUFFER", 256),
	}

	if cfg.StoreDriver != "postgres" && cfg.StoreDriver != "memory" {
		return nil, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
	}
	if cfg.ComplaintTTL <= 0 || cfg.ExpirySweepEvery <= 0 || cfg.IntegrityRebuildEvery <= 0 {
		return nil, fmt.Errorf("COMPLAINT_TTL_HOURS, EXPIRY_SWEEP_INTERVAL and INTEGRITY_REBUILD_INTERVAL must be positive")
	}

	// Validate required fields in production
	if cfg.Environment == "production" {
		if cfg.StoreDriver != "postgres" {
			return nil, fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
		if cfg.JWTSecret == defaultJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}
