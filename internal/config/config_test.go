package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.Service.BaseURL)
	assert.Equal(t, "RAGCHAT_TOKEN", cfg.Service.TokenEnv)
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, 30*time.Minute, cfg.MaxWait())
	assert.Equal(t, domain.DefaultConfig(), cfg.Bundle())
	assert.NoError(t, cfg.Validate())
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
service:
  base_url: https://rag.example.com
processing:
  chunking_method: semantic
  hybrid_search: true
  query_enhancement_mode: expansion
polling:
  interval_ms: 500
  max_wait_secs: -1
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rag.example.com", cfg.Service.BaseURL)
	assert.Equal(t, 600*time.Second, cfg.Timeout())
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, time.Duration(0), cfg.MaxWait())
	assert.Equal(t, domain.Config{
		ChunkingMethod:       domain.ChunkingSemantic,
		HybridSearch:         true,
		QueryEnhancementMode: domain.EnhancementExpansion,
	}, cfg.Bundle())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad chunking", "processing:\n  chunking_method: paragraphs\n"},
		{"bad mode", "processing:\n  query_enhancement_mode: rewrite\n"},
		{"bad url", "service:\n  base_url: not a url\n"},
		{"bad level", "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Processing.UseReranker = true

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg, loaded)
}

func TestToken(t *testing.T) {
	cfg := defaultConfig()
	cfg.Service.TokenEnv = "RAGCHAT_TEST_TOKEN"

	t.Setenv("RAGCHAT_TEST_TOKEN", "")
	_, err := cfg.Token()
	assert.Error(t, err)

	t.Setenv("RAGCHAT_TEST_TOKEN", "secret")
	tok, err := cfg.Token()
	require.NoError(t, err)
	assert.Equal(t, "secret", tok)
}
