package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MARKET_SOURCE", "mock")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Agent.MaxIterations)
	assert.Equal(t, 2, cfg.Agent.ProviderRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Agent.ProviderBackoff)
	assert.Equal(t, []float64{0.40, 0.30, 0.20, 0.10}, cfg.Strategy.Conservative)
	assert.Equal(t, "advisor.turns", cfg.Kafka.TurnsTopic)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.OllamaBaseURL())
	assert.Equal(t, "model_routed", cfg.AI.ProviderStrategy)
	assert.Empty(t, cfg.AI.FallbackProviders)
	assert.Equal(t, 30*time.Second, cfg.HTTP.WSPingInterval)
	assert.Equal(t, 60*time.Second, cfg.HTTP.WSPongTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AGENT_MAX_ITERATIONS", "3")
	t.Setenv("OLLAMA_HOST", "gpu-box")
	t.Setenv("OLLAMA_PORT", "9999")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("AI_PROVIDER_STRATEGY", "failover")
	t.Setenv("AI_FALLBACK_PROVIDERS", "openai,gemini")
	t.Setenv("HTTP_WS_PONG_TIMEOUT", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Agent.MaxIterations)
	assert.Equal(t, "http://gpu-box:9999/v1", cfg.AI.OllamaBaseURL())
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
	assert.True(t, cfg.Kafka.Enabled())
	assert.Len(t, cfg.Kafka.Brokers, 2)
	assert.Equal(t, "failover", cfg.AI.ProviderStrategy)
	assert.Equal(t, []string{"openai", "gemini"}, cfg.AI.FallbackProviders)
	assert.Equal(t, 5*time.Minute, cfg.HTTP.WSPongTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("AGENT_MAX_ITERATIONS", "0")
	t.Setenv("STRATEGY_BALANCED_WEIGHTS", "0.5,0.5")
	t.Setenv("MARKET_SOURCE", "coingecko")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "AGENT_MAX_ITERATIONS")
}

func TestLoad_UnknownProviderStrategy(t *testing.T) {
	t.Setenv("AI_PROVIDER_STRATEGY", "random")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "AI_PROVIDER_STRATEGY")
}
