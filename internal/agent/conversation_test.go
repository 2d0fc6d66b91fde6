package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/internal/tools"
)

func TestConversation_CloneIsIndependent(t *testing.T) {
	conv := NewConversation("sys")
	conv.Append(AssistantMessage("", tools.Call{ID: "1", Name: "price_lookup", Arguments: map[string]any{"symbol": "BTC"}}))

	clone := conv.Clone()
	clone.Messages[1].ToolCalls[0].Arguments["symbol"] = "ETH"
	clone.Append(UserMessage("more"))

	assert.Equal(t, "BTC", conv.Messages[1].ToolCalls[0].Arguments["symbol"])
	assert.Equal(t, 2, conv.Len())
}

func TestConversation_WithSystem(t *testing.T) {
	conv := Conversation{}
	conv.Append(UserMessage("hi"))

	withSys := conv.WithSystem("be brief")
	require.True(t, withSys.HasSystem())
	assert.Equal(t, 2, withSys.Len())
	assert.False(t, conv.HasSystem())

	replaced := withSys.WithSystem("be verbose")
	assert.Equal(t, 2, replaced.Len())
	assert.Equal(t, "be verbose", replaced.Messages[0].Content)
}

func TestConversation_TruncateToFit(t *testing.T) {
	call := tools.Call{ID: "c1", Name: "price_lookup"}
	conv := NewConversation("sys")
	conv.Append(
		UserMessage("q1"),
		AssistantMessage("", call),
		Message{Role: RoleTool, ToolCallID: "c1", ToolName: "price_lookup", Content: "{}"},
		AssistantMessage("a1"),
		UserMessage("q2"),
		AssistantMessage("a2"),
	)

	tests := []struct {
		name string
		max  int
		len  int
	}{
		{"fits", 10, 7},
		{"disabled", 0, 7},
		{"drops oldest", 6, 6},
		{"never starts on tool result", 5, 4},
		{"system only budget", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := conv.TruncateToFit(tt.max)
			assert.Equal(t, tt.len, out.Len())
			assert.True(t, out.HasSystem())
			if out.Len() > 1 {
				assert.NotEqual(t, RoleTool, out.Messages[1].Role)
			}
		})
	}

	last, ok := conv.TruncateToFit(4).LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "a2", last.Content)
}
