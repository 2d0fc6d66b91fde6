package ai

import (
	"context"
	"strings"
	"time"

	"dcaadvisor/internal/adapters/config"
	"dcaadvisor/pkg/errors"
)

// BuildRegistry registers Ollama plus every hosted provider that has a key,
// and makes cfg.DefaultProvider the fallback.
func BuildRegistry(ctx context.Context, cfg config.AIConfig, timeout time.Duration) (*ProviderRegistry, error) {
	registry := NewProviderRegistry()

	limiter := func(name ProviderName) RateLimiter {
		return NewRateLimiter(name.String(), cfg.RequestsPerMin)
	}

	// Ollama needs no credentials and is always available as a target.
	ollamaModel := ""
	if NormalizeProviderName(cfg.DefaultProvider) == ProviderNameOllama.String() {
		ollamaModel = cfg.DefaultModel
	}
	if err := registry.Register(NewOllamaProvider(cfg.OllamaBaseURL(), ollamaModel, !cfg.OllamaTextTools, timeout, limiter(ProviderNameOllama))); err != nil {
		return nil, err
	}

	if cfg.OpenAIKey != "" {
		model := modelFor(cfg, ProviderNameOpenAI)
		if err := registry.Register(NewOpenAIProvider(cfg.OpenAIKey, "", model, timeout, limiter(ProviderNameOpenAI))); err != nil {
			return nil, err
		}
	}

	if cfg.DeepSeekKey != "" {
		if err := registry.Register(NewDeepSeekProvider(cfg.DeepSeekKey, timeout, limiter(ProviderNameDeepSeek))); err != nil {
			return nil, err
		}
	}

	if cfg.GeminiKey != "" {
		gemini, err := NewGeminiProvider(ctx, GeminiConfig{
			APIKey:  cfg.GeminiKey,
			Model:   modelFor(cfg, ProviderNameGemini),
			Timeout: timeout,
			Limiter: limiter(ProviderNameGemini),
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(gemini); err != nil {
			return nil, err
		}
	}

	if cfg.ClaudeKey != "" {
		claude := NewClaudeProvider(ClaudeConfig{
			APIKey:  cfg.ClaudeKey,
			Model:   modelFor(cfg, ProviderNameClaude),
			Timeout: timeout,
			Limiter: limiter(ProviderNameClaude),
		})
		if err := registry.Register(claude); err != nil {
			return nil, err
		}
	}

	if cfg.DefaultProvider != "" {
		if err := registry.SetFallback(cfg.DefaultProvider); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "default provider %s is not configured", cfg.DefaultProvider)
		}
	}

	return registry, nil
}

func modelFor(cfg config.AIConfig, name ProviderName) string {
	if NormalizeProviderName(cfg.DefaultProvider) == name.String() {
		return cfg.DefaultModel
	}
	return ""
}

// NormalizeProviderName makes provider lookup more forgiving.
func NormalizeProviderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
