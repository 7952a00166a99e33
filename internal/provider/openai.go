package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prismbench/prism/internal/model"
)

// OpenAIClient produces completions through an OpenAI-compatible Chat
// Completions API. Works with OpenAI, Azure OpenAI, OpenRouter, and any
// compatible endpoint.
type OpenAIClient struct {
	client       openai.Client
	maxTokens    int64
	providerName string
}

// OpenAIConfig holds configuration for an OpenAI-compatible client.
type OpenAIConfig struct {
	// BaseURL is the API endpoint.
	BaseURL string
	// APIKey is the API key.
	APIKey string
	// MaxTokens is the maximum number of completion tokens. Zero means 4096.
	// For reasoning models this must be large enough for both reasoning
	// tokens and output content.
	MaxTokens int64
	// ExtraHeaders are additional HTTP headers.
	ExtraHeaders map[string]string
	// ProviderName is the name recorded on spans ("openai", "openrouter").
	// Empty means "openai".
	ProviderName string
}

// NewOpenAIClient creates a new OpenAI-compatible client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	var opts []option.RequestOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	for k, v := range cfg.ExtraHeaders {
		opts = append(opts, option.WithHeader(k, v))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	name := cfg.ProviderName
	if name == "" {
		name = "openai"
	}

	return &OpenAIClient{
		client:       openai.NewClient(opts...),
		maxTokens:    maxTokens,
		providerName: name,
	}
}

// ChatCompletion sends the conversation to the API and returns the response
// text.
func (c *OpenAIClient) ChatCompletion(ctx context.Context, modelName string, messages []model.Message, temperature float64) (string, error) {
	ctx, span := providerTracer.Start(ctx, "chat "+modelName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", c.providerName),
			attribute.String("gen_ai.request.model", modelName),
			attribute.Float64("gen_ai.request.temperature", temperature),
			attribute.Int64("gen_ai.request.max_tokens", c.maxTokens),
		),
	)
	defer span.End()

	turns := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			turns = append(turns, openai.SystemMessage(m.Content))
		case model.RoleAssistant:
			turns = append(turns, openai.AssistantMessage(m.Content))
		default:
			turns = append(turns, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               modelName,
		Messages:            turns,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(c.maxTokens),
	})
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "api_error"))
		return "", fmt.Errorf("%s API call failed: %w", c.providerName, err)
	}
	if len(resp.Choices) == 0 {
		span.SetAttributes(attribute.String("error.type", "empty_response"))
		return "", fmt.Errorf("%s API returned empty response", c.providerName)
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.String("gen_ai.response.id", resp.ID),
		attribute.Int64("gen_ai.usage.input_tokens", resp.Usage.PromptTokens),
		attribute.Int64("gen_ai.usage.output_tokens", resp.Usage.CompletionTokens),
	)
	if resp.Choices[0].FinishReason != "" {
		span.SetAttributes(attribute.StringSlice("gen_ai.response.finish_reasons", []string{string(resp.Choices[0].FinishReason)}))
	}

	return resp.Choices[0].Message.Content, nil
}

// Embed returns one embedding vector per input text, in input order. Used
// by the embedding-similarity evaluator.
func (c *OpenAIClient) Embed(ctx context.Context, embedModel string, texts []string) ([][]float64, error) {
	ctx, span := providerTracer.Start(ctx, "embeddings "+embedModel,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "embeddings"),
			attribute.String("gen_ai.provider.name", c.providerName),
			attribute.String("gen_ai.request.model", embedModel),
			attribute.Int("gen_ai.request.input_count", len(texts)),
		),
	)
	defer span.End()

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "api_error"))
		return nil, fmt.Errorf("%s embeddings call failed: %w", c.providerName, err)
	}
	if len(resp.Data) != len(texts) {
		span.SetAttributes(attribute.String("error.type", "short_response"))
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for _, d := range resp.Data {
		vectors[int(d.Index)] = d.Embedding
	}
	span.SetAttributes(attribute.Int64("gen_ai.usage.input_tokens", resp.Usage.PromptTokens))
	return vectors, nil
}
