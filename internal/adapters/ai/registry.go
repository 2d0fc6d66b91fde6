package ai

import (
	"context"
	"strings"
	"sync"

	"dcaadvisor/pkg/errors"
)

// ProviderRegistry stores the configured chat backends.
type ProviderRegistry struct {
	providers map[string]ChatProvider
	order     []string
	fallback  string
	mu        sync.RWMutex
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ChatProvider),
	}
}

// Register adds a provider; the first one registered becomes the fallback.
func (r *ProviderRegistry) Register(provider ChatProvider) error {
	if provider == nil {
		return errors.Wrap(errors.ErrInvalidInput, "provider is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := NormalizeProviderName(provider.Name())
	if _, exists := r.providers[name]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "provider %s already registered", name)
	}

	r.providers[name] = provider
	r.order = append(r.order, name)
	if r.fallback == "" {
		r.fallback = name
	}
	return nil
}

// SetFallback picks the provider that serves models no provider lists.
func (r *ProviderRegistry) SetFallback(name string) error {
	name = NormalizeProviderName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "provider %s", name)
	}
	r.fallback = name
	return nil
}

// Get returns the provider by name.
func (r *ProviderRegistry) Get(name string) (ChatProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[NormalizeProviderName(name)]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "provider %s", name)
	}
	return provider, nil
}

// MustGet returns the provider by name and panics if missing.
func (r *ProviderRegistry) MustGet(name string) ChatProvider {
	provider, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return provider
}

// List returns providers in registration order.
func (r *ProviderRegistry) List() []ChatProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ChatProvider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// ListModels aggregates models across providers keyed by provider name.
func (r *ProviderRegistry) ListModels(ctx context.Context) (map[string][]ModelInfo, error) {
	out := make(map[string][]ModelInfo)
	for _, p := range r.List() {
		models, err := p.ListModels(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "list models for %s", p.Name())
		}
		out[p.Name()] = models
	}
	return out, nil
}

// Resolve picks a provider and model from a selector that is either a
// provider name, a model name, or "provider/model". An empty selector
// returns the fallback provider with its default model. A model nobody
// lists goes to the fallback provider, which for Ollama means any local model.
func (r *ProviderRegistry) Resolve(ctx context.Context, selector string) (ChatProvider, string, error) {
	selector = strings.TrimSpace(selector)

	if name, model, ok := strings.Cut(selector, "/"); ok {
		p, err := r.Get(name)
		if err != nil {
			return nil, "", err
		}
		if model == "" {
			model = p.DefaultModel()
		}
		return p, model, nil
	}

	if selector != "" {
		if p, err := r.Get(selector); err == nil {
			return p, p.DefaultModel(), nil
		}
		if p, model, err := r.ResolveModel(ctx, selector); err == nil {
			return p, model, nil
		}
	}

	r.mu.RLock()
	fallback := r.fallback
	r.mu.RUnlock()
	if fallback == "" {
		return nil, "", errors.Wrap(errors.ErrUnavailable, "no AI providers registered")
	}

	p, err := r.Get(fallback)
	if err != nil {
		return nil, "", err
	}
	if selector == "" {
		return p, p.DefaultModel(), nil
	}
	return p, selector, nil
}

// ResolveModel finds the provider that lists model.
func (r *ProviderRegistry) ResolveModel(ctx context.Context, model string) (ChatProvider, string, error) {
	for _, p := range r.List() {
		models, err := p.ListModels(ctx)
		if err != nil {
			continue
		}
		if info, err := findModel(models, model); err == nil {
			return p, info.Name, nil
		}
	}
	return nil, "", errors.Wrapf(errors.ErrNotFound, "model %s", model)
}
