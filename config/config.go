// Package config loads skillmatch configuration from TOML.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Providers lists the embedding providers the factory understands.
var Providers = []string{"openai", "google", "ollama", "mock"}

// Config is the root configuration document.
type Config struct {
	Embedding EmbeddingConfig `toml:"embedding"`
	Matching  MatchingConfig  `toml:"matching"`
	Storage   StorageConfig   `toml:"storage"`
	Index     IndexConfig     `toml:"index"`
	Backfill  BackfillConfig  `toml:"backfill"`
	Log       LogConfig       `toml:"log"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider  string        `toml:"provider"`
	Model     string        `toml:"model"`
	Dimension int           `toml:"dimension"`
	BaseURL   string        `toml:"base_url"`
	Timeout   time.Duration `toml:"timeout"`
}

// MatchingConfig holds the matcher cutoffs.
type MatchingConfig struct {
	MinMatchPercentage  int     `toml:"min_match_percentage"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
}

// StorageConfig locates the embedding stores.
type StorageConfig struct {
	Path        string `toml:"path"`         // SQLite database file
	PostgresDSN string `toml:"postgres_dsn"` // optional pgvector store
}

// IndexConfig locates the keyword index. An empty path keeps it in memory.
type IndexConfig struct {
	Path string `toml:"path"`
}

// BackfillConfig tunes batch embedding generation.
type BackfillConfig struct {
	Concurrency       int  `toml:"concurrency"`
	RequestsPerMinute int  `toml:"requests_per_minute"` // 0 disables throttling
	IncludeStale      bool `toml:"include_stale"`
}

// LogConfig sets the log threshold.
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			Timeout:   30 * time.Second,
		},
		Matching: MatchingConfig{
			MinMatchPercentage:  75,
			SimilarityThreshold: 0.75,
		},
		Storage: StorageConfig{
			Path: "skillmatch.db",
		},
		Backfill: BackfillConfig{
			Concurrency: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults and validates the result.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a TOML document over the defaults and validates it.
func Parse(data string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	known := false
	for _, p := range Providers {
		if c.Embedding.Provider == p {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("embedding.provider %q is not one of %s", c.Embedding.Provider, strings.Join(Providers, ", "))
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.Timeout < 0 {
		return fmt.Errorf("embedding.timeout must not be negative")
	}
	if c.Matching.MinMatchPercentage < 0 || c.Matching.MinMatchPercentage > 100 {
		return fmt.Errorf("matching.min_match_percentage must be in [0,100], got %d", c.Matching.MinMatchPercentage)
	}
	if c.Matching.SimilarityThreshold < 0 || c.Matching.SimilarityThreshold > 1 {
		return fmt.Errorf("matching.similarity_threshold must be in [0,1], got %g", c.Matching.SimilarityThreshold)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Backfill.Concurrency < 1 {
		return fmt.Errorf("backfill.concurrency must be at least 1, got %d", c.Backfill.Concurrency)
	}
	if c.Backfill.RequestsPerMinute < 0 {
		return fmt.Errorf("backfill.requests_per_minute must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}
