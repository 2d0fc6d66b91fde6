package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/pkg/errors"
)

func TestOpenAIProvider_Chat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": null,
					"refusal": null,
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "dca_calculator", "arguments": "{\"amount\":1000}"}}]
				}
			}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 7, "total_tokens": 27}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL+"/v1/", "", time.Second, nil)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, ModelGPT4oMini, p.DefaultModel())

	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "advisor"},
			{Role: RoleUser, Content: "invest 1000"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "prev", Function: FunctionCall{Name: "price_lookup", Arguments: `{"symbols":["BTC"]}`}}}},
			{Role: RoleTool, Content: `{"price":1}`, ToolCallID: "prev", Name: "price_lookup"},
		},
		Tools:       []ToolDefinition{{Type: "function", Function: FunctionDefinition{Name: "dca_calculator", Description: "plan", Parameters: map[string]any{"type": "object"}}}},
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "tool", msgs[3].(map[string]any)["role"])
	assert.Equal(t, "prev", msgs[3].(map[string]any)["tool_call_id"])
	assert.Len(t, body["tools"].([]any), 1)

	require.Len(t, resp.Choices, 1)
	calls := resp.Choices[0].Message.ToolCalls
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "dca_calculator", calls[0].Function.Name)
	assert.Equal(t, `{"amount":1000}`, calls[0].Function.Arguments)
	assert.Equal(t, 27, resp.Usage.TotalTokens)
}

func TestOpenAIProvider_Errors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, errors.ErrRateLimitExceeded},
		{http.StatusServiceUnavailable, errors.ErrProviderUnreachable},
		{http.StatusUnauthorized, errors.ErrExternal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
			}))
			defer srv.Close()

			p := NewOpenAIProvider("sk-test", srv.URL+"/v1/", "", time.Second, nil)
			_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
}
