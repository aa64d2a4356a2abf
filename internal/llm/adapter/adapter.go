package adapter

import (
	"context"

	"github.com/batchlens/batchlens-ai/internal/llm/types"
)

// Package adapter provides a unified text-completion interface over multiple
// LLM providers.
//
// Responsibilities:
//   - Select a provider (OpenAI, Anthropic, Ollama) from configuration
//   - Expose a single Generate call used by the analysis engine
//   - Record request counts, latency and token usage metrics per provider
//   - Surface provider failures as typed ServiceError values
//
// Provider Selection:
//   - openai: requires API key, hosted models (gpt-4o etc.)
//   - anthropic: requires API key, hosted models (claude-3-5-sonnet etc.)
//   - ollama: local instance, no key, any pulled model
//
// The adapter is deliberately thin: the analysis engine sends one structured
// prompt per reasoning round and parses the raw text itself, so there is no
// tool-calling or streaming surface here.

// ProviderType identifies which LLM provider is configured
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
)

// LLMAdapter is the unified completion interface consumed by the analysis
// engine and the HTTP surface.
type LLMAdapter interface {
	// Generate sends a single prompt and returns the raw completion text.
	Generate(ctx context.Context, prompt string) (string, error)

	// Complete sends a full conversation and returns the structured response.
	Complete(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error)

	// CountTokens estimates the token count of the given messages.
	CountTokens(ctx context.Context, messages []types.Message) (int, error)

	// Provider returns the configured provider type.
	Provider() ProviderType
}
