package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/prismbench/prism/internal/config"
	"github.com/prismbench/prism/internal/evaluator"
	ppotel "github.com/prismbench/prism/internal/otel"
	"github.com/prismbench/prism/internal/provider"
	"github.com/prismbench/prism/internal/storage"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

var (
	// Global flags.
	flagOutputDir   string
	flagMaxTokens   int64
	flagConcurrency int
)

var rootCmd = &cobra.Command{
	Use:   "prism",
	Short: "Compare LLM responses across models, temperatures, and system prompts",
	Long: `prism runs a comparison blueprint against a set of models: every prompt is
sent to every (model, temperature, system-prompt) combination, the responses
are scored by the selected evaluators, and the result is persisted as a
single comparison document.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	_ = godotenv.Load()

	rootCmd.Version = Version
	ppotel.Version = Version

	rootCmd.PersistentFlags().StringVar(&flagOutputDir, "output-dir", "", "directory for persisted comparison documents (default: comparisons)")
	rootCmd.PersistentFlags().Int64Var(&flagMaxTokens, "max-tokens", 0, "max completion tokens per provider call (default: 4096)")
	rootCmd.PersistentFlags().IntVar(&flagConcurrency, "concurrency", 0, "max in-flight provider calls (default: 10)")
}

// loadConfig resolves the ambient configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	}
	if flagMaxTokens > 0 {
		cfg.MaxTokens = flagMaxTokens
	}
	if flagConcurrency > 0 {
		cfg.Concurrency = flagConcurrency
	}
	return cfg, nil
}

// buildRouter wires one client per configured provider. A provider without
// an API key is simply not registered; using it in a blueprint fails at
// call time with a clear error.
func buildRouter(cfg *config.Config, cache *provider.ResponseCache) (*provider.Router, *provider.OpenAIClient, error) {
	clients := make(map[string]provider.Client)
	var openaiClient *provider.OpenAIClient

	if cfg.AnthropicAPIKey != "" {
		clients["anthropic"] = provider.NewAnthropicClient(provider.AnthropicConfig{
			BaseURL:   cfg.AnthropicBaseURL,
			APIKey:    cfg.AnthropicAPIKey,
			MaxTokens: cfg.MaxTokens,
		})
	}
	if cfg.OpenAIAPIKey != "" {
		openaiClient = provider.NewOpenAIClient(provider.OpenAIConfig{
			BaseURL:   cfg.OpenAIBaseURL,
			APIKey:    cfg.OpenAIAPIKey,
			MaxTokens: cfg.MaxTokens,
		})
		clients["openai"] = openaiClient
	}
	if cfg.OpenRouterAPIKey != "" {
		clients["openrouter"] = provider.NewOpenAIClient(provider.OpenAIConfig{
			BaseURL:      cfg.OpenRouterBaseURL,
			APIKey:       cfg.OpenRouterAPIKey,
			MaxTokens:    cfg.MaxTokens,
			ProviderName: "openrouter",
		})
	}

	if len(clients) == 0 {
		return nil, nil, fmt.Errorf("no provider configured. Set ANTHROPIC_API_KEY, OPENAI_API_KEY, or OPENROUTER_API_KEY")
	}
	return provider.NewRouter(clients, cache), openaiClient, nil
}

// buildRegistry assembles the closed evaluator set. The embedding evaluator
// needs the OpenAI client; without one, only coverage grading is available.
func buildRegistry(cfg *config.Config, router *provider.Router, openaiClient *provider.OpenAIClient, useCache bool) *evaluator.Registry {
	var evaluators []evaluator.Evaluator
	if openaiClient != nil {
		evaluators = append(evaluators, &evaluator.EmbeddingEvaluator{
			Embedder: openaiClient,
			Model:    cfg.EmbeddingModel,
		})
	}
	evaluators = append(evaluators, &evaluator.CoverageEvaluator{
		Provider: router,
		Model:    cfg.GradingModel,
		UseCache: useCache,
	})
	return evaluator.NewRegistry(evaluators...)
}

func buildGateway(cfg *config.Config) storage.Gateway {
	return storage.NewLocal(cfg.OutputDir)
}
