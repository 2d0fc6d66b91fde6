package middleware

import (
	"time"

	"dcaadvisor/internal/tools"
)

// Wrapper decorates a tool
type Wrapper interface {
	Wrap(t tools.Tool) tools.Tool
}

// Builder provides a fluent API for applying middleware to a tool
type Builder struct {
	tool tools.Tool

	withRetry   bool
	retryConfig RetryMiddleware

	withTimeout   bool
	timeoutConfig TimeoutMiddleware

	withMetrics bool
}

// For starts a builder around t
func For(t tools.Tool) *Builder {
	return &Builder{
		tool:          t,
		retryConfig:   RetryMiddleware{Attempts: 2, Backoff: 200 * time.Millisecond},
		timeoutConfig: TimeoutMiddleware{Timeout: 10 * time.Second},
	}
}

// WithRetry enables retry middleware
func (b *Builder) WithRetry(attempts int, backoff time.Duration) *Builder {
	b.withRetry = true
	b.retryConfig.Attempts = attempts
	b.retryConfig.Backoff = backoff
	return b
}

// WithTimeout enables timeout middleware
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.withTimeout = true
	b.timeoutConfig = TimeoutMiddleware{Timeout: timeout}
	return b
}

// WithMetrics enables Prometheus tracking
func (b *Builder) WithMetrics() *Builder {
	b.withMetrics = true
	return b
}

// Build applies middleware in order: retry, then timeout around it, then metrics outermost.
func (b *Builder) Build() tools.Tool {
	var chain []Wrapper
	if b.withRetry {
		chain = append(chain, b.retryConfig)
	}
	if b.withTimeout {
		chain = append(chain, b.timeoutConfig)
	}
	if b.withMetrics {
		chain = append(chain, MetricsMiddleware{})
	}
	return Chain(b.tool, chain...)
}

// Chain wraps t with each wrapper in turn; the last wrapper is outermost
func Chain(t tools.Tool, wrappers ...Wrapper) tools.Tool {
	for _, w := range wrappers {
		t = w.Wrap(t)
	}
	return t
}
