// Package config provides configuration for the investigation engine.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the engine configuration. Thresholds and TTL tiers are
// demo tuning, not derived policy, so they stay configurable.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Completion capability (OpenAI-compatible endpoint)
	LLMBaseURL string
	LLMAPIKey  string
	LLMTimeout time.Duration

	// Models: the investigation model does the tool-use loop; the cheap
	// model handles paraphrase generation and critic review.
	Model      string
	CheapModel string

	// Tool dispatch
	ToolTimeout time.Duration
	CatalogPath string

	// Cache TTL tiers by tool class
	TTLLookup    time.Duration
	TTLSearch    time.Duration
	TTLReference time.Duration

	// Policy evaluation
	AutoResolveConfidenceFloor float64

	// Replay
	ReplayParallelism int

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:    getEnvInt("HTTP_PORT", 8080),
		DatabaseURL: getEnv("DATABASE_URL", "file:casepilot.db?cache=shared&mode=rwc"),

		LLMBaseURL: getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMTimeout: time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,

		Model:      getEnv("LLM_MODEL", "claude-sonnet-4-5"),
		CheapModel: getEnv("LLM_CHEAP_MODEL", "claude-haiku-4-5"),

		ToolTimeout: time.Duration(getEnvInt("TOOL_TIMEOUT_MS", 30000)) * time.Millisecond,
		CatalogPath: getEnv("TOOL_CATALOG_PATH", ""),

		TTLLookup:    time.Duration(getEnvInt("CACHE_TTL_LOOKUP_S", 60)) * time.Second,
		TTLSearch:    time.Duration(getEnvInt("CACHE_TTL_SEARCH_S", 120)) * time.Second,
		TTLReference: time.Duration(getEnvInt("CACHE_TTL_REFERENCE_S", 300)) * time.Second,

		AutoResolveConfidenceFloor: getEnvFloat("AUTO_RESOLVE_CONFIDENCE_FLOOR", 0.6),

		ReplayParallelism: getEnvInt("REPLAY_PARALLELISM", 3),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

// TTLFor returns the cache TTL for a tool class. Unknown classes get the
// shortest tier.
func (c *Config) TTLFor(class string) time.Duration {
	switch class {
	case "search":
		return c.TTLSearch
	case "reference":
		return c.TTLReference
	default:
		return c.TTLLookup
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
