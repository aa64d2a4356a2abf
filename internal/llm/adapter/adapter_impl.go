package adapter

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/batchlens/batchlens-ai/internal/llm/provider/anthropic"
	"github.com/batchlens/batchlens-ai/internal/llm/provider/ollama"
	"github.com/batchlens/batchlens-ai/internal/llm/provider/openai"
	"github.com/batchlens/batchlens-ai/internal/llm/types"
	"github.com/batchlens/batchlens-ai/internal/metrics"
)

// Config holds LLM provider configuration
type Config struct {
	Provider ProviderType `json:"provider"`
	APIKey   string       `json:"api_key"`  // for openai/anthropic
	BaseURL  string       `json:"base_url"` // for ollama
	Model    string       `json:"model"`    // model name
}

// completionClient is the surface every provider client implements.
type completionClient interface {
	Complete(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error)
	CountTokens(ctx context.Context, messages []types.Message) (int, error)
	Model() string
}

// llmAdapterImpl is the unified adapter implementation
type llmAdapterImpl struct {
	provider ProviderType
	model    string // model name for metrics
	client   completionClient
}

// NewLLMAdapter creates an adapter based on configuration.
func NewLLMAdapter(cfg *Config) (LLMAdapter, error) {
	if cfg == nil {
		// Environment variables as fallback
		cfg = &Config{
			Provider: ProviderType(os.Getenv("BATCHLENS_LLM_PROVIDER")),
			APIKey:   os.Getenv("BATCHLENS_LLM_API_KEY"),
			BaseURL:  os.Getenv("BATCHLENS_LLM_BASE_URL"),
			Model:    os.Getenv("BATCHLENS_LLM_MODEL"),
		}
	}

	var client completionClient
	var err error

	switch cfg.Provider {
	case ProviderOpenAI:
		client, err = openai.NewClient(cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}

	case ProviderAnthropic:
		client, err = anthropic.NewClient(cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic client: %w", err)
		}

	case ProviderOllama:
		client, err = ollama.NewClient(cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	return &llmAdapterImpl{
		provider: cfg.Provider,
		model:    client.Model(),
		client:   client,
	}, nil
}

// NewLLMAdapterWithClient wraps an existing provider client.  Used in tests.
func NewLLMAdapterWithClient(provider ProviderType, client interface {
	Complete(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error)
	CountTokens(ctx context.Context, messages []types.Message) (int, error)
	Model() string
}) LLMAdapter {
	return &llmAdapterImpl{provider: provider, model: client.Model(), client: client}
}

// Generate sends a single user prompt and returns the raw completion text.
func (a *llmAdapterImpl) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.Complete(ctx, &types.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Complete delegates to the provider-specific client.
func (a *llmAdapterImpl) Complete(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error) {
	start := time.Now()
	resp, err := a.client.Complete(ctx, req)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LLMRequestsTotal.WithLabelValues(string(a.provider), a.model, status).Inc()
	metrics.LLMRequestDuration.WithLabelValues(string(a.provider), a.model).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}

	metrics.LLMTokensUsed.WithLabelValues(string(a.provider), a.model, "input").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(string(a.provider), a.model, "output").Add(float64(resp.Usage.CompletionTokens))

	return resp, nil
}

// CountTokens delegates to the provider-specific client.
func (a *llmAdapterImpl) CountTokens(ctx context.Context, messages []types.Message) (int, error) {
	return a.client.CountTokens(ctx, messages)
}

// Provider returns the configured provider type
func (a *llmAdapterImpl) Provider() ProviderType {
	return a.provider
}
