package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.ComponentTimeout)
	assert.Equal(t, 10, cfg.ImageConcurrency)
	assert.Equal(t, 0.6, cfg.MinShouldMatch)
	assert.Equal(t, int64(100), cfg.SynonymRefreshCalls)
	assert.Equal(t, 128, cfg.ChunkTokenBudget)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("RAGCORE_RESOURCE_DIR", "/opt/res")
	t.Setenv("RAGCORE_COMPONENT_TIMEOUT", "30s")
	t.Setenv("RAGCORE_IMAGE_CONCURRENCY", "4")
	t.Setenv("RAGCORE_MIN_SHOULD_MATCH", "0.3")
	t.Setenv("RAGCORE_LOG_DEVELOPMENT", "true")
	t.Setenv("RAGCORE_SYNONYM_REFRESH_CALLS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/res", cfg.ResourceDir)
	assert.Equal(t, 30*time.Second, cfg.ComponentTimeout)
	assert.Equal(t, 4, cfg.ImageConcurrency)
	assert.Equal(t, 0.3, cfg.MinShouldMatch)
	assert.True(t, cfg.LogDevelopment)
	assert.Equal(t, int64(5), cfg.SynonymRefreshCalls)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric concurrency", "RAGCORE_IMAGE_CONCURRENCY", "many"},
		{"zero concurrency", "RAGCORE_IMAGE_CONCURRENCY", "0"},
		{"min match above one", "RAGCORE_MIN_SHOULD_MATCH", "1.5"},
		{"overlap of one", "RAGCORE_OVERLAP_PERCENT", "1"},
		{"bad duration", "RAGCORE_COMPONENT_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
