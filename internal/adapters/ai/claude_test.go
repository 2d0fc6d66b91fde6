package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/pkg/errors"
)

func newClaude(t *testing.T, handler http.HandlerFunc) *ClaudeProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClaudeProvider(ClaudeConfig{
		APIKey:  "sk-ant",
		BaseURL: srv.URL + "/v1/",
		Timeout: 2 * time.Second,
	})
}

func TestClaudeProvider_Chat(t *testing.T) {
	var captured claudeRequest
	p := newClaude(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"model": "claude-sonnet-4-5",
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Checking prices."},
				{"type": "tool_use", "id": "toolu_1", "name": "price_lookup", "input": {"symbols": ["BTC"]}}
			],
			"usage": {"input_tokens": 12, "output_tokens": 8}
		}`))
	})

	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "BTC and ETH?"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{
				{ID: "a", Function: FunctionCall{Name: "price_lookup", Arguments: `{"symbols":["BTC"]}`}},
				{ID: "b", Function: FunctionCall{Name: "price_lookup"}},
			}},
			{Role: RoleTool, Content: `{"BTC":97500}`, ToolCallID: "a", Name: "price_lookup"},
			{Role: RoleTool, Content: `{"ETH":3400}`, ToolCallID: "b", Name: "price_lookup"},
		},
		Tools: []ToolDefinition{{Type: "function", Function: FunctionDefinition{Name: "price_lookup", Parameters: map[string]any{"type": "object"}}}},
	})
	require.NoError(t, err)

	assert.Equal(t, ModelClaudeSonnet, captured.Model)
	assert.Equal(t, "be brief", captured.System)
	assert.Equal(t, defaultMaxTokens, captured.MaxTokens)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "assistant", captured.Messages[1].Role)
	assert.JSONEq(t, `{}`, string(captured.Messages[1].Content[1].Input))

	results := captured.Messages[2]
	assert.Equal(t, "user", results.Role)
	require.Len(t, results.Content, 2)
	assert.Equal(t, "a", results.Content[0].ToolUseID)
	assert.Equal(t, "b", results.Content[1].ToolUseID)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "price_lookup", captured.Tools[0].Name)

	require.Len(t, resp.Choices, 1)
	choice := resp.Choices[0]
	assert.Equal(t, FinishReasonToolCalls, choice.FinishReason)
	assert.Equal(t, "Checking prices.", choice.Message.Content)
	require.Len(t, choice.Message.ToolCalls, 1)
	assert.Equal(t, "toolu_1", choice.Message.ToolCalls[0].ID)
	assert.JSONEq(t, `{"symbols":["BTC"]}`, choice.Message.ToolCalls[0].Function.Arguments)
	assert.Equal(t, 20, resp.Usage.TotalTokens)
}

func TestClaudeProvider_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, errors.ErrRateLimitExceeded},
		{"overloaded", 529, errors.ErrProviderUnreachable},
		{"bad request", http.StatusBadRequest, errors.ErrExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newClaude(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"some_error","message":"nope"}}`))
			})

			_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err)
			assert.Contains(t, err.Error(), "some_error - nope")
		})
	}
}

func TestClaudeProvider_RequiresKey(t *testing.T) {
	p := NewClaudeProvider(ClaudeConfig{})

	_, err := p.Chat(context.Background(), ChatRequest{})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Equal(t, ModelClaudeSonnet, p.DefaultModel())
}
