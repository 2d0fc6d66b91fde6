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

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents([]Message{
		{Role: RoleSystem, Content: "advisor"},
		{Role: RoleUser, Content: "compare BTC and ETH"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "a", Function: FunctionCall{Name: "price_lookup", Arguments: `{"symbols":["BTC"]}`}},
			{ID: "b", Function: FunctionCall{Name: "price_lookup", Arguments: `{"symbols":["ETH"]}`}},
		}},
		{Role: RoleTool, Content: `{"price":97500}`, ToolCallID: "a", Name: "price_lookup"},
		{Role: RoleTool, Content: `not json`, ToolCallID: "b", Name: "price_lookup"},
	})

	require.NotNil(t, system)
	assert.Equal(t, "advisor", system.Parts[0].Text)

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "b", contents[1].Parts[1].FunctionCall.ID)
	assert.Equal(t, []any{"ETH"}, contents[1].Parts[1].FunctionCall.Args["symbols"])

	// both results travel in one user turn
	require.Len(t, contents[2].Parts, 2)
	assert.Equal(t, 97500.0, contents[2].Parts[0].FunctionResponse.Response["price"])
	assert.Equal(t, "not json", contents[2].Parts[1].FunctionResponse.Response["result"])
}

func TestGeminiProvider_Chat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, "gemini-2.5-flash:generateContent"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [
					{"text": "Let me look. "},
					{"functionCall": {"name": "price_lookup", "args": {"symbols": ["BTC"]}}}
				]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 4, "totalTokenCount": 16},
			"responseId": "resp-1"
		}`))
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "key", BaseURL: srv.URL + "/", Timeout: time.Second})
	require.NoError(t, err)

	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleSystem, Content: "advisor"}, {Role: RoleUser, Content: "BTC?"}},
		Tools:    []ToolDefinition{{Type: "function", Function: FunctionDefinition{Name: "price_lookup", Parameters: map[string]any{"type": "object"}}}},
	})
	require.NoError(t, err)

	assert.Contains(t, body, "systemInstruction")
	assert.Contains(t, body, "tools")

	msg := resp.Choices[0].Message
	assert.Equal(t, "Let me look. ", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "price_lookup", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"symbols":["BTC"]}`, msg.ToolCalls[0].Function.Arguments)
	assert.Equal(t, FinishReasonToolCalls, resp.Choices[0].FinishReason)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
}

func TestGeminiProvider_Errors(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), GeminiConfig{})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProviderUnreachable), err.Error())
}
