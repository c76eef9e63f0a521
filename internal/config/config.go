package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the gateway.
type Config struct {
	Port string
	Env  string

	NATSURL       string // direct server URL for development
	CredIssuerURL string // credential issuance endpoint; overrides NATSURL
	RedisURL      string // state cache; optional

	StreamName       string
	MembershipBucket string
	PresenceBucket   string
	TelemetryBucket  string

	AgentName string // identity announced by the live session heartbeat
	Channel   string // channel the live session follows
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		NATSURL:          getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		CredIssuerURL:    os.Getenv("CRED_ISSUER_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		StreamName:       getEnv("STREAM_NAME", "mesh"),
		MembershipBucket: getEnv("MEMBERSHIP_BUCKET", "mesh-members"),
		PresenceBucket:   getEnv("PRESENCE_BUCKET", "mesh-presence"),
		TelemetryBucket:  getEnv("TELEMETRY_BUCKET", "mesh-telemetry"),
		AgentName:        getEnv("AGENT_NAME", "gateway"),
		Channel:          getEnv("CHANNEL", "general"),
	}

	// In production, require the credential issuer; a direct unauthenticated
	// URL is a development convenience only.
	if cfg.Env == "production" && cfg.CredIssuerURL == "" {
		panic("CRED_ISSUER_URL is required in production")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
