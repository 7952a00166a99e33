// Package provider routes model-response requests to LLM backends.
//
// Model ids are prefixed with the provider name ("openai:gpt-4o",
// "anthropic:claude-sonnet-4-5", "openrouter:google/gemini-pro"). The router
// strips the prefix, picks the matching client, and optionally serves the
// call from a content-addressed response cache.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/prismbench/prism/internal/model"
)

// Provider produces one model response for a conversation. Implementations
// may fail with transport or backend errors; retries, if any, live behind
// this interface, never in the pipeline.
type Provider interface {
	GetResponse(ctx context.Context, modelID string, messages []model.Message, temperature float64, useCache bool) (string, error)
}

// Client is one concrete LLM backend. The model name passed here has the
// provider prefix already stripped.
type Client interface {
	ChatCompletion(ctx context.Context, modelName string, messages []model.Message, temperature float64) (string, error)
}

// Router dispatches requests to clients by model id prefix.
type Router struct {
	clients map[string]Client
	cache   *ResponseCache
}

// NewRouter creates a router over the given prefix → client table. A nil
// cache disables response caching regardless of the per-call flag.
func NewRouter(clients map[string]Client, cache *ResponseCache) *Router {
	return &Router{clients: clients, cache: cache}
}

// GetResponse resolves the client for modelID and returns the completion.
// When useCache is set and the cache holds a response for this exact
// (model, messages, temperature) request, the cached text is returned
// without a backend call.
func (r *Router) GetResponse(ctx context.Context, modelID string, messages []model.Message, temperature float64, useCache bool) (string, error) {
	prefix, name, err := splitModelID(modelID)
	if err != nil {
		return "", err
	}
	client, ok := r.clients[prefix]
	if !ok {
		return "", fmt.Errorf("no client registered for provider %q (model %q)", prefix, modelID)
	}

	if useCache && r.cache != nil {
		if text, ok := r.cache.Lookup(modelID, messages, temperature); ok {
			return text, nil
		}
	}

	text, err := client.ChatCompletion(ctx, name, messages, temperature)
	if err != nil {
		return "", err
	}

	if useCache && r.cache != nil {
		r.cache.Store(modelID, messages, temperature, text)
	}
	return text, nil
}

// splitModelID separates the provider prefix from the backend model name.
func splitModelID(modelID string) (prefix, name string, err error) {
	i := strings.Index(modelID, ":")
	if i <= 0 || i == len(modelID)-1 {
		return "", "", fmt.Errorf("model id %q is not provider-prefixed (want \"provider:model\")", modelID)
	}
	return modelID[:i], modelID[i+1:], nil
}
