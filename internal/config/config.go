// Package config loads runtime settings for the chunking and retrieval core
// from RAGCORE_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
)

// Config holds process-wide settings
type Config struct {
	// ResourceDir holds huqie.txt, term.freq, ner.json and synonym.json
	ResourceDir string

	// DBPath is the SQLite store location; empty keeps the store in memory
	DBPath string

	LogLevel       string
	LogDevelopment bool

	// Execution contract
	ComponentTimeout time.Duration
	ImageConcurrency int

	// Synonym refresh gating
	SynonymRefreshInterval time.Duration
	SynonymRefreshCalls    int64

	// Query builder
	MinShouldMatch float64
	QueryCacheSize int

	// Splitter defaults
	ChunkTokenBudget int
	Delimiters       string
	OverlapPercent   float64
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		ResourceDir:            "res",
		LogLevel:               "info",
		ComponentTimeout:       10 * time.Minute,
		ImageConcurrency:       10,
		SynonymRefreshInterval: time.Hour,
		SynonymRefreshCalls:    100,
		MinShouldMatch:         0.6,
		QueryCacheSize:         1000,
		ChunkTokenBudget:       128,
		Delimiters:             "\n。；！？",
		OverlapPercent:         0,
	}
}

// Load reads the environment on top of Default
func Load() (Config, error) {
	cfg := Default()

	cfg.ResourceDir = envOr("RAGCORE_RESOURCE_DIR", cfg.ResourceDir)
	cfg.DBPath = envOr("RAGCORE_DB_PATH", cfg.DBPath)
	cfg.LogLevel = envOr("RAGCORE_LOG_LEVEL", cfg.LogLevel)
	cfg.Delimiters = envOr("RAGCORE_DELIMITERS", cfg.Delimiters)

	var err error
	if cfg.LogDevelopment, err = envBool("RAGCORE_LOG_DEVELOPMENT", cfg.LogDevelopment); err != nil {
		return cfg, err
	}
	if cfg.ComponentTimeout, err = envDuration("RAGCORE_COMPONENT_TIMEOUT", cfg.ComponentTimeout); err != nil {
		return cfg, err
	}
	if cfg.ImageConcurrency, err = envInt("RAGCORE_IMAGE_CONCURRENCY", cfg.ImageConcurrency); err != nil {
		return cfg, err
	}
	if cfg.SynonymRefreshInterval, err = envDuration("RAGCORE_SYNONYM_REFRESH_INTERVAL", cfg.SynonymRefreshInterval); err != nil {
		return cfg, err
	}
	calls, err := envInt("RAGCORE_SYNONYM_REFRESH_CALLS", int(cfg.SynonymRefreshCalls))
	if err != nil {
		return cfg, err
	}
	cfg.SynonymRefreshCalls = int64(calls)
	if cfg.MinShouldMatch, err = envFloat("RAGCORE_MIN_SHOULD_MATCH", cfg.MinShouldMatch); err != nil {
		return cfg, err
	}
	if cfg.QueryCacheSize, err = envInt("RAGCORE_QUERY_CACHE_SIZE", cfg.QueryCacheSize); err != nil {
		return cfg, err
	}
	if cfg.ChunkTokenBudget, err = envInt("RAGCORE_CHUNK_TOKEN_BUDGET", cfg.ChunkTokenBudget); err != nil {
		return cfg, err
	}
	if cfg.OverlapPercent, err = envFloat("RAGCORE_OVERLAP_PERCENT", cfg.OverlapPercent); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects out-of-range settings
func (c Config) Validate() error {
	if c.ComponentTimeout <= 0 {
		return fmt.Errorf("component timeout must be positive, got %s", c.ComponentTimeout)
	}
	if c.ImageConcurrency < 1 {
		return fmt.Errorf("image concurrency must be >= 1, got %d", c.ImageConcurrency)
	}
	if c.MinShouldMatch <= 0 || c.MinShouldMatch > 1 {
		return fmt.Errorf("minimum should match must be in (0, 1], got %v", c.MinShouldMatch)
	}
	if c.ChunkTokenBudget <= 0 {
		return fmt.Errorf("chunk token budget must be positive, got %d", c.ChunkTokenBudget)
	}
	if c.OverlapPercent < 0 || c.OverlapPercent >= 1 {
		return fmt.Errorf("overlap percent must be in [0, 1), got %v", c.OverlapPercent)
	}
	if c.SynonymRefreshCalls < 0 {
		return fmt.Errorf("synonym refresh calls cannot be negative, got %d", c.SynonymRefreshCalls)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
