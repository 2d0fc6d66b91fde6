package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/pkg/errors"
)

func TestTokenBucketLimiter(t *testing.T) {
	l := NewTokenBucketLimiter("ollama", 60, 2)
	assert.Equal(t, 60.0, l.Limit())

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded), err.Error())

	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "ollama", rle.Provider)
}

func TestTokenBucketLimiter_Canceled(t *testing.T) {
	l := NewTokenBucketLimiter("openai", 1, 1)
	require.True(t, l.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewRateLimiter(t *testing.T) {
	noop := NewRateLimiter("ollama", 0)
	assert.Equal(t, -1.0, noop.Limit())
	assert.True(t, noop.Allow())
	assert.NoError(t, noop.Wait(context.Background()))

	limited := NewRateLimiter("ollama", 600)
	assert.Equal(t, 600.0, limited.Limit())
	assert.NoError(t, limited.Wait(context.Background()))
}

func TestCompatibleProvider_WaitsOnLimiter(t *testing.T) {
	limiter := NewTokenBucketLimiter("ollama", 1, 1)
	require.True(t, limiter.Allow())

	p := NewCompatibleProvider(CompatibleConfig{Name: "ollama", BaseURL: "http://127.0.0.1:1", Limiter: limiter})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Chat(ctx, ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded), err.Error())
}
