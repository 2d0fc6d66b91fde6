package agent

import (
	"context"
	"strings"
	"sync/atomic"

	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

// ProviderStrategy selects how a ProviderChain spreads queries over its members
type ProviderStrategy string

const (
	// StrategySingle always queries the first provider
	StrategySingle ProviderStrategy = "single"
	// StrategyFailover queries the current provider and moves to the next one
	// when it fails. The move sticks for the rest of the chain's life.
	StrategyFailover ProviderStrategy = "failover"
	// StrategyRoundRobin rotates providers on every query
	StrategyRoundRobin ProviderStrategy = "round_robin"
	// StrategyModelRouted uses the provider that owns the requested model
	StrategyModelRouted ProviderStrategy = "model_routed"
)

// ParseProviderStrategy accepts the strategy names case-insensitively; empty
// means model routing.
func ParseProviderStrategy(s string) (ProviderStrategy, error) {
	switch ProviderStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyModelRouted:
		return StrategyModelRouted, nil
	case StrategySingle:
		return StrategySingle, nil
	case StrategyFailover:
		return StrategyFailover, nil
	case StrategyRoundRobin, "roundrobin":
		return StrategyRoundRobin, nil
	}
	return "", errors.Wrapf(errors.ErrInvalidInput, "unknown provider strategy %q", s)
}

// ProviderChain is a Provider over several backends
type ProviderChain struct {
	providers []Provider
	strategy  ProviderStrategy
	cursor    *atomic.Uint64
	log       *logger.Logger
}

var (
	_ Provider         = (*ProviderChain)(nil)
	_ TextToolProvider = (*ProviderChain)(nil)
)

type ChainOption func(*ProviderChain)

// WithCursor shares the rotation position between chains, so round robin
// keeps rotating across turns.
func WithCursor(cursor *atomic.Uint64) ChainOption {
	return func(c *ProviderChain) {
		if cursor != nil {
			c.cursor = cursor
		}
	}
}

// NewProviderChain needs at least one provider
func NewProviderChain(strategy ProviderStrategy, providers []Provider, opts ...ChainOption) (*ProviderChain, error) {
	if len(providers) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "provider chain needs at least one provider")
	}
	c := &ProviderChain{
		providers: append([]Provider(nil), providers...),
		strategy:  strategy,
		cursor:    new(atomic.Uint64),
		log:       logger.Get().With("component", "provider_chain", "strategy", string(strategy)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name lists the members in order
func (c *ProviderChain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}

// UsesTextToolProtocol follows the first member; members of one chain are
// expected to share the protocol.
func (c *ProviderChain) UsesTextToolProtocol() bool {
	tp, ok := c.providers[0].(TextToolProvider)
	return ok && tp.UsesTextToolProtocol()
}

func (c *ProviderChain) Generate(ctx context.Context, conv Conversation, schemas []tools.Schema) (Response, error) {
	n := uint64(len(c.providers))
	switch c.strategy {
	case StrategyRoundRobin:
		p := c.providers[(c.cursor.Add(1)-1)%n]
		return p.Generate(ctx, conv, schemas)
	case StrategyFailover:
		return c.failover(ctx, conv, schemas)
	default:
		return c.providers[0].Generate(ctx, conv, schemas)
	}
}

// failover tries each member at most once, starting at the current one.
// A failed member is skipped for later queries too, so a loop retry after a
// timeout lands on the next backend.
func (c *ProviderChain) failover(ctx context.Context, conv Conversation, schemas []tools.Schema) (Response, error) {
	n := uint64(len(c.providers))
	var lastErr error

	for tried := uint64(0); tried < n; tried++ {
		pos := c.cursor.Load()
		p := c.providers[pos%n]

		resp, err := p.Generate(ctx, conv, schemas)
		if err == nil {
			if verr := resp.Validate(); verr != nil {
				err = NewProviderError(ProviderMalformedResponse, p.Name(), verr)
			}
		}
		if err == nil {
			return resp, nil
		}

		lastErr = ClassifyProviderError(p.Name(), err)
		c.cursor.CompareAndSwap(pos, pos+1)
		if ctx.Err() != nil || tried+1 == n {
			break
		}

		next := c.providers[(pos+1)%n]
		c.log.Warnw("Provider failed, failing over",
			"from", p.Name(),
			"to", next.Name(),
			"error", err,
		)
	}
	return Response{}, lastErr
}
