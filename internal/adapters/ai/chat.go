package ai

import "context"

// ChatProvider is a backend that answers chat completions. Backends that
// report SupportsTools() == false still receive tool-free requests and are
// driven through the text tool protocol by ChatAgent.
type ChatProvider interface {
	Provider
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int // 0 leaves the backend default
}

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is the backend-neutral chat message. ToolCallID and Name are only
// set on RoleTool messages and pair the result with the assistant call.
type Message struct {
	Role       MessageRole
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolDefinition is the OpenAI-style function declaration; Parameters holds
// the JSON schema produced by tools.Schema.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall carries raw JSON arguments; decoding happens in ChatAgent so a
// malformed payload surfaces as a provider error.
type ToolCall struct {
	ID       string
	Type     string
	Function FunctionCall
}

type FunctionCall struct {
	Name      string
	Arguments string
}

type ChatResponse struct {
	ID      string
	Model   string
	Choices []Choice
	Usage   Usage
}

type Choice struct {
	Index        int
	Message      Message
	FinishReason FinishReason
}

type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
)

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
