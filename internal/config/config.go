// Package config loads prism configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (PRISM_*, provider API keys)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .prism.yaml in current directory
//  2. ~/.config/prism/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all prism configuration.
type Config struct {
	// Provider credentials and endpoints
	AnthropicAPIKey   string `yaml:"anthropic_api_key"`
	OpenAIAPIKey      string `yaml:"openai_api_key"`
	OpenRouterAPIKey  string `yaml:"openrouter_api_key"`
	AnthropicBaseURL  string `yaml:"anthropic_base_url"`
	OpenAIBaseURL     string `yaml:"openai_base_url"`
	OpenRouterBaseURL string `yaml:"openrouter_base_url"`
	MaxTokens         int64  `yaml:"max_tokens"`

	// Evaluation settings
	EmbeddingModel string `yaml:"embedding_model"`
	GradingModel   string `yaml:"grading_model"`

	// Run settings
	Concurrency int    `yaml:"concurrency"`
	OutputDir   string `yaml:"output_dir"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		OpenRouterBaseURL: "https://openrouter.ai/api/v1",
		MaxTokens:         4096,
		EmbeddingModel:    "text-embedding-3-small",
		GradingModel:      "anthropic:claude-sonnet-4-5",
		Concurrency:       10,
		OutputDir:         "comparisons",
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	mergeEnv(cfg)

	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("invalid concurrency %d", cfg.Concurrency)
	}
	return cfg, nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	// 1. Current directory
	if data, err := os.ReadFile(".prism.yaml"); err == nil {
		return ".prism.yaml", data, nil
	}

	// 2. XDG config dir / ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "prism", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.AnthropicAPIKey != "" {
		cfg.AnthropicAPIKey = file.AnthropicAPIKey
	}
	if file.OpenAIAPIKey != "" {
		cfg.OpenAIAPIKey = file.OpenAIAPIKey
	}
	if file.OpenRouterAPIKey != "" {
		cfg.OpenRouterAPIKey = file.OpenRouterAPIKey
	}
	if file.AnthropicBaseURL != "" {
		cfg.AnthropicBaseURL = file.AnthropicBaseURL
	}
	if file.OpenAIBaseURL != "" {
		cfg.OpenAIBaseURL = file.OpenAIBaseURL
	}
	if file.OpenRouterBaseURL != "" {
		cfg.OpenRouterBaseURL = file.OpenRouterBaseURL
	}
	if file.MaxTokens > 0 {
		cfg.MaxTokens = file.MaxTokens
	}
	if file.EmbeddingModel != "" {
		cfg.EmbeddingModel = file.EmbeddingModel
	}
	if file.GradingModel != "" {
		cfg.GradingModel = file.GradingModel
	}
	if file.Concurrency > 0 {
		cfg.Concurrency = file.Concurrency
	}
	if file.OutputDir != "" {
		cfg.OutputDir = file.OutputDir
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) {
	if v := os.Getenv("PRISM_ANTHROPIC_BASE_URL"); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := os.Getenv("PRISM_OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv("PRISM_OPENROUTER_BASE_URL"); v != "" {
		cfg.OpenRouterBaseURL = v
	}
	if v := os.Getenv("PRISM_EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("PRISM_GRADING_MODEL"); v != "" {
		cfg.GradingModel = v
	}
	if v := os.Getenv("PRISM_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("PRISM_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency = n
		}
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}

	// Standard provider key variables win over file-supplied keys.
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.OpenRouterAPIKey = v
	}
}
