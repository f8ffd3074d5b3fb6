// Package config loads the service configuration from environment
// variables, with per-model defaults embedded at build time.
package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

// Config is the full service configuration.
type Config struct {
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Fetch     FetchConfig
	Index     IndexConfig
	Match     MatchConfig
	Web       WebConfig
	LogLevel  string
	Models    ModelsConfig
}

// DatabaseConfig configures the PostgreSQL record store. An empty URL
// selects the in-memory store (development and tests only).
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// EmbeddingConfig configures the external face-embedding provider.
type EmbeddingConfig struct {
	URL     string        // provider base URL
	Model   string        // model name, keys into models.yaml defaults
	Dim     int           // embedding dimension, fixed per deployment
	Timeout time.Duration // per-call timeout
}

// FetchConfig bounds image downloads.
type FetchConfig struct {
	MaxBytes  int64
	MaxPixels int // longest side sent to the provider
	Timeout   time.Duration
}

// IndexConfig selects the per-event index implementation and its
// eviction policy.
type IndexConfig struct {
	Kind    string // "exact" or "hnsw"
	IdleTTL time.Duration
}

// MatchConfig carries the match endpoint defaults.
type MatchConfig struct {
	TopK      int
	Threshold float64
}

// WebConfig configures the HTTP API.
type WebConfig struct {
	APIToken string // optional bearer token guarding mutating endpoints
}

// ModelsConfig holds the embedded per-model defaults.
type ModelsConfig struct {
	Models map[string]ModelDefaults `yaml:"models"`
}

// ModelDefaults are the built-in dimension and threshold for one
// embedding model.
type ModelDefaults struct {
	Dim       int     `yaml:"dim"`
	Threshold float64 `yaml:"threshold"`
}

// envInt reads an environment variable as a positive integer, falling
// back to the default when unset or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envInt64 is envInt for int64 values.
func envInt64(key string, defaultVal int64) int64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float64.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration string.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// envString reads an environment variable with a default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load reads the configuration from the environment. The embedding
// dimension and match threshold default from the configured model's
// entry in models.yaml; explicit env values win.
func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(modelsYAML, &models); err != nil {
		// Embedded file, cannot fail in practice.
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	model := envString("EMBEDDING_MODEL", "buffalo_l")
	defaults := models.Models[model]
	if defaults.Dim == 0 {
		defaults.Dim = 512
	}
	if defaults.Threshold == 0 {
		defaults.Threshold = 0.35
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Embedding: EmbeddingConfig{
			URL:     envString("EMBEDDING_URL", "http://localhost:8000"),
			Model:   model,
			Dim:     envInt("EMBEDDING_DIM", defaults.Dim),
			Timeout: envDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Fetch: FetchConfig{
			MaxBytes:  envInt64("FETCH_MAX_BYTES", 20<<20),
			MaxPixels: envInt("FETCH_MAX_PIXELS", 1920),
			Timeout:   envDuration("FETCH_TIMEOUT", 30*time.Second),
		},
		Index: IndexConfig{
			Kind:    envString("INDEX_KIND", "exact"),
			IdleTTL: envDuration("INDEX_IDLE_TTL", 30*time.Minute),
		},
		Match: MatchConfig{
			TopK:      envInt("MATCH_DEFAULT_TOP_K", 20),
			Threshold: envFloat("MATCH_DEFAULT_THRESHOLD", defaults.Threshold),
		},
		Web: WebConfig{
			APIToken: os.Getenv("API_TOKEN"),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
		Models:   models,
	}
}
