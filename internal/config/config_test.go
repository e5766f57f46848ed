package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "auto", cfg.Discovery.Method)
	assert.Equal(t, "file", cfg.Discovery.CacheBackend)
	assert.Equal(t, "section_aware", cfg.Chunker.Strategy)
	assert.Equal(t, 2000, cfg.Chunker.MaxTokens)
	assert.True(t, cfg.Browser.Headless)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	ws := t.TempDir()
	cfg, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, ws, cfg.Workspace)
	assert.Equal(t, "deepseek", cfg.AI.Provider)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	ws := t.TempDir()
	dir := filepath.Join(ws, ".crawler")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	yaml := `
discovery:
  method: google
  max_results: 3
  blocked_domains: [pinterest.com, quora.com]
chunker:
  strategy: fixed
  max_tokens: 512
ai:
  notebooklm_enabled: true
  deepseek_enabled: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(ws)
	require.NoError(t, err)

	assert.Equal(t, "google", cfg.Discovery.Method)
	assert.Equal(t, 3, cfg.Discovery.MaxResults)
	assert.Equal(t, []string{"pinterest.com", "quora.com"}, cfg.Discovery.BlockedDomains)
	assert.Equal(t, "fixed", cfg.Chunker.Strategy)
	assert.Equal(t, 512, cfg.Chunker.MaxTokens)
	assert.True(t, cfg.AI.NotebookLMEnabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("DEEPSEEK_API_KEY sets key and provider", func(t *testing.T) {
		t.Setenv("DEEPSEEK_API_KEY", "sk-test")

		cfg := DefaultConfig()
		cfg.AI.Provider = ""
		cfg.applyEnvOverrides()

		assert.Equal(t, "sk-test", cfg.AI.APIKey)
		assert.Equal(t, "deepseek", cfg.AI.Provider)
	})

	t.Run("GEMINI_API_KEY only applies to gemini provider", func(t *testing.T) {
		t.Setenv("DEEPSEEK_API_KEY", "")
		t.Setenv("GEMINI_API_KEY", "g-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Empty(t, cfg.AI.APIKey)

		cfg.AI.Provider = "gemini"
		cfg.applyEnvOverrides()
		assert.Equal(t, "g-key", cfg.AI.APIKey)
	})

	t.Run("CRAWLER_DISCOVERY_METHOD overrides method", func(t *testing.T) {
		t.Setenv("CRAWLER_DISCOVERY_METHOD", "duckduckgo")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "duckduckgo", cfg.Discovery.Method)
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects non-positive max_tokens", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Chunker.MaxTokens = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Chunker.Strategy = "semantic"
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty strategy means the default", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Chunker.Strategy = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AI.Provider = "gpt9"
		assert.Error(t, cfg.Validate())
	})
}

func TestNormalizeAvailability(t *testing.T) {
	t.Run("guided wins over automated", func(t *testing.T) {
		a := NormalizeAvailability(true, true, false)
		assert.Equal(t, AIModeGuided, a.NotebookLM)
		assert.True(t, a.NotebookLMGuided())
		assert.False(t, a.NotebookLMAvailable())
	})

	t.Run("automated when only enabled", func(t *testing.T) {
		a := NormalizeAvailability(true, false, true)
		assert.True(t, a.NotebookLMAvailable())
		assert.False(t, a.NotebookLMGuided())
		assert.True(t, a.DeepSeek)
	})

	t.Run("disabled when neither", func(t *testing.T) {
		a := NormalizeAvailability(false, false, false)
		assert.Equal(t, AIModeDisabled, a.NotebookLM)
		assert.False(t, a.NotebookLMAvailable())
		assert.False(t, a.NotebookLMGuided())
	})
}
