// Package config provides configuration loading and structs for the eiga server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Recommend RecommendConfig `yaml:"recommend"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the catalog database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// CatalogConfig controls hot reload of the catalog database.
type CatalogConfig struct {
	Watch      *bool `yaml:"watch"`
	DebounceMS int   `yaml:"debounce_ms"`
}

// WatchOrDefault returns whether to reload the catalog on database changes; defaults to true when unset.
func (c *CatalogConfig) WatchOrDefault() bool {
	if c.Watch != nil {
		return *c.Watch
	}
	return true
}

// Debounce returns the reload debounce interval.
func (c *CatalogConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Embedding providers.
const (
	ProviderONNX   = "onnx"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// EmbeddingConfig selects and configures the query embedder.
type EmbeddingConfig struct {
	Provider        string `yaml:"provider"`
	ModelPath       string `yaml:"model_path"`
	ONNXLibraryPath string `yaml:"onnx_library_path"`
	Dimensions      int    `yaml:"dimensions"`
	MaxTokens       int    `yaml:"max_tokens"`
	CacheSize       int    `yaml:"cache_size"`
	GeminiModel     string `yaml:"gemini_model"`
	GeminiAPIKeyEnv string `yaml:"gemini_api_key_env"`
}

// RecommendConfig holds recommendation and presentation settings.
type RecommendConfig struct {
	DefaultLimit  int    `yaml:"default_limit"`
	MaxLimit      int    `yaml:"max_limit"`
	PosterBaseURL string `yaml:"poster_base_url"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Embedding.ONNXLibraryPath != "" {
		cfg.Embedding.ONNXLibraryPath = expandPath(cfg.Embedding.ONNXLibraryPath, configDir)
	}

	return &cfg, nil
}

// Validate rejects settings that defaults cannot repair.
func Validate(cfg *Config) error {
	switch cfg.Embedding.Provider {
	case ProviderONNX, ProviderGemini, ProviderMock:
	default:
		return fmt.Errorf("unknown embedding provider: %s (supported: onnx, gemini, mock)", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Recommend.DefaultLimit > cfg.Recommend.MaxLimit {
		return fmt.Errorf("recommend default_limit %d exceeds max_limit %d", cfg.Recommend.DefaultLimit, cfg.Recommend.MaxLimit)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
