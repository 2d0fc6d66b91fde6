package advisor

import (
	"context"
	"sync/atomic"

	"dcaadvisor/internal/adapters/ai"
	"dcaadvisor/internal/agent"
)

// ProviderSource picks the agent provider for a requested model selector.
// It returns the provider and the concrete model it will use.
type ProviderSource interface {
	Provider(ctx context.Context, selector string) (agent.Provider, string, error)
}

// ProviderSourceFunc adapts a function to ProviderSource
type ProviderSourceFunc func(ctx context.Context, selector string) (agent.Provider, string, error)

func (f ProviderSourceFunc) Provider(ctx context.Context, selector string) (agent.Provider, string, error) {
	return f(ctx, selector)
}

// ChainConfig adds backup backends behind the resolved one
type ChainConfig struct {
	Strategy agent.ProviderStrategy
	// Fallbacks are provider names tried after the resolved provider, in order
	Fallbacks []string
}

// RegistrySource resolves selectors against the configured AI backends
type RegistrySource struct {
	registry *ai.ProviderRegistry
	base     ai.ChatAgentConfig
	chain    ChainConfig
	rotation atomic.Uint64
}

// NewRegistrySource wraps registry; base carries the sampling settings shared by every agent
func NewRegistrySource(registry *ai.ProviderRegistry, base ai.ChatAgentConfig, chain ChainConfig) *RegistrySource {
	return &RegistrySource{registry: registry, base: base, chain: chain}
}

// Provider resolves selector to the primary backend. With failover or round
// robin the configured fallbacks join it, all speaking the same tool
// protocol so a conversation can move between them.
func (s *RegistrySource) Provider(ctx context.Context, selector string) (agent.Provider, string, error) {
	backend, model, err := s.registry.Resolve(ctx, selector)
	if err != nil {
		return nil, "", err
	}

	members := []ai.ChatProvider{backend}
	if s.chain.Strategy == agent.StrategyFailover || s.chain.Strategy == agent.StrategyRoundRobin {
		for _, name := range s.chain.Fallbacks {
			p, err := s.registry.Get(name)
			if err != nil || p.Name() == backend.Name() {
				continue
			}
			members = append(members, p)
		}
	}

	cfg := s.base
	for _, p := range members {
		if !p.SupportsTools() {
			cfg.TextTools = true
		}
	}

	primaryCfg := cfg
	primaryCfg.Model = model
	primary := ai.NewChatAgent(backend, primaryCfg)
	if len(members) == 1 {
		return primary, primary.Model(), nil
	}

	providers := []agent.Provider{primary}
	for _, p := range members[1:] {
		providers = append(providers, ai.NewChatAgent(p, cfg))
	}
	chain, err := agent.NewProviderChain(s.chain.Strategy, providers, agent.WithCursor(s.cursor()))
	if err != nil {
		return nil, "", err
	}
	return chain, primary.Model(), nil
}

// cursor is shared only for round robin; failover starts every turn at the
// resolved provider.
func (s *RegistrySource) cursor() *atomic.Uint64 {
	if s.chain.Strategy == agent.StrategyRoundRobin {
		return &s.rotation
	}
	return nil
}
