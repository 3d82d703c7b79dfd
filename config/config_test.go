package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Matching.MinMatchPercentage != 75 {
		t.Errorf("expected default cutoff 75, got %d", cfg.Matching.MinMatchPercentage)
	}
	if cfg.Matching.SimilarityThreshold != 0.75 {
		t.Errorf("expected default threshold 0.75, got %g", cfg.Matching.SimilarityThreshold)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skillmatch.toml")
	content := `
[embedding]
provider = "ollama"
model = "nomic-embed-text"
dimension = 768
base_url = "http://localhost:11434"
timeout = "45s"

[matching]
min_match_percentage = 60

[backfill]
concurrency = 8
requests_per_minute = 500
include_stale = true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Embedding.Provider != "ollama" || cfg.Embedding.Dimension != 768 {
		t.Errorf("embedding not decoded: %+v", cfg.Embedding)
	}
	if cfg.Embedding.Timeout != 45*time.Second {
		t.Errorf("expected 45s timeout, got %v", cfg.Embedding.Timeout)
	}
	if cfg.Matching.MinMatchPercentage != 60 {
		t.Errorf("expected cutoff 60, got %d", cfg.Matching.MinMatchPercentage)
	}
	// Untouched keys keep their defaults.
	if cfg.Matching.SimilarityThreshold != 0.75 {
		t.Errorf("expected default threshold kept, got %g", cfg.Matching.SimilarityThreshold)
	}
	if !cfg.Backfill.IncludeStale || cfg.Backfill.Concurrency != 8 || cfg.Backfill.RequestsPerMinute != 500 {
		t.Errorf("backfill not decoded: %+v", cfg.Backfill)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skillmatch.toml")
	os.WriteFile(path, []byte("[matching]\nmin_percentage = 50\n"), 0644)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "matching.min_percentage") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "embedding.provider"},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }, "embedding.dimension"},
		{"percentage above 100", func(c *Config) { c.Matching.MinMatchPercentage = 101 }, "min_match_percentage"},
		{"negative percentage", func(c *Config) { c.Matching.MinMatchPercentage = -1 }, "min_match_percentage"},
		{"threshold above 1", func(c *Config) { c.Matching.SimilarityThreshold = 1.5 }, "similarity_threshold"},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"zero concurrency", func(c *Config) { c.Backfill.Concurrency = 0 }, "backfill.concurrency"},
		{"negative rpm", func(c *Config) { c.Backfill.RequestsPerMinute = -5 }, "requests_per_minute"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse("[embedding]\nprovider = \"mock\"\ndimension = 64\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Embedding.Provider != "mock" || cfg.Embedding.Dimension != 64 {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}

	if _, err := Parse("[embedding]\ndimension = -1\n"); err == nil {
		t.Error("expected validation error")
	}
}
