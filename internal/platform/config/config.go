package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything main needs to wire the service.
type Config struct {
	Addr string

	// PostgresURL selects the durable audit store. Empty means in-memory.
	PostgresURL string

	// RedisURL selects the shared insight cache. Empty means in-memory.
	RedisURL string

	// GeminiAPIKey enables the generative reasoning client. Empty means the
	// service runs with reasoning unavailable and deterministic fallbacks.
	GeminiAPIKey string
	GeminiModel  string

	// ReasoningTimeout bounds a single model call.
	ReasoningTimeout time.Duration

	// InsightTTL bounds how long cached insight and privacy score payloads
	// are considered fresh.
	InsightTTL time.Duration

	// PerceptionTTL bounds how long a stored perception snapshot is reused.
	PerceptionTTL time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:             getEnv("GLASSBANK_ADDR", ":8080"),
		PostgresURL:      os.Getenv("GLASSBANK_POSTGRES_URL"),
		RedisURL:         os.Getenv("GLASSBANK_REDIS_URL"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		ReasoningTimeout: getDuration("GLASSBANK_REASONING_TIMEOUT", 40*time.Second),
		InsightTTL:       getDuration("GLASSBANK_INSIGHT_TTL", 30*time.Minute),
		PerceptionTTL:    getDuration("GLASSBANK_PERCEPTION_TTL", 24*time.Hour),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
