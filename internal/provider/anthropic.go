package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prismbench/prism/internal/model"
)

// AnthropicClient produces completions through the Anthropic Messages API.
// Works with both the direct Anthropic API and Azure AI Foundry.
type AnthropicClient struct {
	client    anthropic.Client
	maxTokens int64
}

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	// BaseURL overrides the API endpoint.
	BaseURL string
	// APIKey is the API key.
	APIKey string
	// MaxTokens is the maximum number of output tokens. Zero means 4096.
	MaxTokens int64
	// ExtraHeaders are additional HTTP headers (e.g. "api-key" for Azure).
	ExtraHeaders map[string]string
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
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

	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		maxTokens: maxTokens,
	}
}

var providerTracer = otel.Tracer("prism/provider")

// ChatCompletion sends the conversation to the Anthropic API and returns the
// response text. System-role messages are lifted into the API's dedicated
// system field.
func (c *AnthropicClient) ChatCompletion(ctx context.Context, modelName string, messages []model.Message, temperature float64) (string, error) {
	// Span name and attributes follow the OTel GenAI semantic conventions.
	ctx, span := providerTracer.Start(ctx, "chat "+modelName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", "anthropic"),
			attribute.String("gen_ai.request.model", modelName),
			attribute.Float64("gen_ai.request.temperature", temperature),
			attribute.Int64("gen_ai.request.max_tokens", c.maxTokens),
		),
	)
	defer span.End()

	var system []anthropic.TextBlockParam
	var turns []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case model.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(modelName),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(temperature),
		System:      system,
		Messages:    turns,
	})
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "api_error"))
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}
	if len(resp.Content) == 0 {
		span.SetAttributes(attribute.String("error.type", "empty_response"))
		return "", fmt.Errorf("anthropic API returned empty response")
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", modelName),
		attribute.Int64("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)
	if string(resp.StopReason) != "" {
		span.SetAttributes(attribute.StringSlice("gen_ai.response.finish_reasons", []string{string(resp.StopReason)}))
	}

	return resp.Content[0].Text, nil
}
