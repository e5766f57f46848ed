// Package config holds the immutable pipeline configuration.
// The config is constructed once at startup (file + env overrides) and passed
// by value through every component; no component reads process state directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all crawler configuration.
type Config struct {
	// Core settings
	Name      string `yaml:"name"`
	Workspace string `yaml:"workspace"`

	// Source discovery
	Discovery DiscoveryConfig `yaml:"discovery"`

	// AI backend routing
	AI AIConfig `yaml:"ai"`

	// Content collection
	Collector CollectorConfig `yaml:"collector"`

	// Chunking
	Chunker ChunkerConfig `yaml:"chunker"`

	// Browser automation
	Browser BrowserConfig `yaml:"browser"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DiscoveryConfig configures the URL discovery router and its cache.
type DiscoveryConfig struct {
	Method         string   `yaml:"method"`        // notebooklm, auto, direct, google, duckduckgo
	CacheBackend   string   `yaml:"cache_backend"` // file, sqlite
	CachePath      string   `yaml:"cache_path"`
	WatchCache     bool     `yaml:"watch_cache"`
	MaxResults     int      `yaml:"max_results"`
	BlockedDomains []string `yaml:"blocked_domains"`
}

// AIConfig configures the AI routing flags and the hosted LLM provider.
type AIConfig struct {
	NotebookLMEnabled bool   `yaml:"notebooklm_enabled"`
	NotebookLMGuided  bool   `yaml:"notebooklm_guided"`
	DeepSeekEnabled   bool   `yaml:"deepseek_enabled"` // hosted LLM on/off, regardless of provider choice
	Provider          string `yaml:"provider"`         // deepseek, gemini
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	Timeout           string `yaml:"timeout"`
}

// CollectorConfig configures content fetching and cleaning.
type CollectorConfig struct {
	MaxConcurrent int    `yaml:"max_concurrent"`
	FetchTimeout  string `yaml:"fetch_timeout"`
	MaxRetries    int    `yaml:"max_retries"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes"`
	UserAgent     string `yaml:"user_agent"`
	UseBrowser    bool   `yaml:"use_browser"` // render pages in Chrome instead of static GET
}

// ChunkerConfig configures content chunking.
type ChunkerConfig struct {
	Strategy  string `yaml:"strategy"` // section_aware, fixed
	MaxTokens int    `yaml:"max_tokens"`
}

// BrowserConfig configures the owned Chrome instance.
type BrowserConfig struct {
	Bin                 string `yaml:"bin"`
	DebuggerURL         string `yaml:"debugger_url"`
	Headless            bool   `yaml:"headless"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	StepTimeoutMs       int    `yaml:"step_timeout_ms"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	Level      string          `yaml:"level" json:"level"`
	JSONFormat bool            `yaml:"json_format" json:"json_format"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		Name: "notebooklm-crawler",
		Discovery: DiscoveryConfig{
			Method:       "auto",
			CacheBackend: "file",
			CachePath:    filepath.Join(".crawler", "discovery_cache.json"),
			MaxResults:   8,
		},
		AI: AIConfig{
			Provider: "deepseek",
			Model:    "deepseek-chat",
			BaseURL:  "https://api.deepseek.com/v1",
			Timeout:  "5m",
		},
		Collector: CollectorConfig{
			MaxConcurrent: 4,
			FetchTimeout:  "45s",
			MaxRetries:    2,
			MaxBodyBytes:  1 << 20, // 1MB per page
			UserAgent:     "NotebooklmCrawler/1.0 (+educational content pipeline)",
		},
		Chunker: ChunkerConfig{
			Strategy:  "section_aware",
			MaxTokens: 2000,
		},
		Browser: BrowserConfig{
			Headless:            true,
			ViewportWidth:       1920,
			ViewportHeight:      1080,
			NavigationTimeoutMs: 30000,
			StepTimeoutMs:       120000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads config from <workspace>/.crawler/config.yaml, applies defaults
// for missing values, then applies environment overrides.
func Load(workspace string) (Config, error) {
	cfg := DefaultConfig()
	cfg.Workspace = workspace

	path := filepath.Join(workspace, ".crawler", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Workspace = workspace
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variables on top of file config.
// Env always wins over the file for credentials.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		c.AI.APIKey = v
		if c.AI.Provider == "" {
			c.AI.Provider = "deepseek"
		}
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.AI.Provider == "gemini" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("CRAWLER_DISCOVERY_METHOD"); v != "" {
		c.Discovery.Method = v
	}
	if v := os.Getenv("CRAWLER_CACHE_PATH"); v != "" {
		c.Discovery.CachePath = v
	}
	if v := os.Getenv("CRAWLER_BROWSER_BIN"); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv("CRAWLER_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
}

// Validate checks config invariants that cannot be defaulted away.
func (c *Config) Validate() error {
	if c.Chunker.MaxTokens <= 0 {
		return fmt.Errorf("chunker.max_tokens must be positive, got %d", c.Chunker.MaxTokens)
	}
	switch c.Chunker.Strategy {
	case "", "section_aware", "fixed", "fixed_size":
	default:
		return fmt.Errorf("unknown chunker.strategy %q", c.Chunker.Strategy)
	}
	switch c.AI.Provider {
	case "", "deepseek", "gemini":
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	if c.Collector.MaxConcurrent < 1 {
		return fmt.Errorf("collector.max_concurrent must be at least 1")
	}
	return nil
}

// AITimeout parses the AI timeout string, falling back to 5 minutes.
func (a AIConfig) AITimeout() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// FetchTimeout parses the collector fetch timeout, falling back to 45s.
func (c *Config) FetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Collector.FetchTimeout)
	if err != nil || d <= 0 {
		return 45 * time.Second
	}
	return d
}

// NavigationTimeout returns the browser navigation timeout.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	if b.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.NavigationTimeoutMs) * time.Millisecond
}

// StepTimeout returns the per-automation-step deadline.
func (b BrowserConfig) StepTimeout() time.Duration {
	if b.StepTimeoutMs <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(b.StepTimeoutMs) * time.Millisecond
}

// CachePathAbs resolves the discovery cache path against the workspace.
func (c *Config) CachePathAbs() string {
	if filepath.IsAbs(c.Discovery.CachePath) {
		return c.Discovery.CachePath
	}
	return filepath.Join(c.Workspace, c.Discovery.CachePath)
}
