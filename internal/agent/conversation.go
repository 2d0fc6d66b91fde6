package agent

import (
	"maps"

	"dcaadvisor/internal/tools"
)

// Role identifies the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation. Assistant messages may carry tool
// calls; tool messages carry the id and name of the call they answer.
type Message struct {
	Role       Role         `json:"role"`
	Content    string       `json:"content"`
	ToolCalls  []tools.Call `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	ToolName   string       `json:"tool_name,omitempty"`
}

// SystemMessage builds a system message
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message, optionally requesting tool calls
func AssistantMessage(content string, calls ...tools.Call) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage builds the message that feeds a tool result back to the model
func ToolMessage(res tools.Result) Message {
	return Message{
		Role:       RoleTool,
		Content:    res.Content(),
		ToolCallID: res.CallID,
		ToolName:   res.ToolName,
	}
}

// Conversation is the ordered message history of one session.
// A loop owns its copy for the duration of a turn.
type Conversation struct {
	Messages []Message `json:"messages"`
}

// NewConversation starts a conversation, with a system message when prompt is set
func NewConversation(prompt string) Conversation {
	var c Conversation
	if prompt != "" {
		c.Messages = append(c.Messages, SystemMessage(prompt))
	}
	return c
}

// Clone returns a copy sharing no slices or argument maps with c
func (c Conversation) Clone() Conversation {
	out := Conversation{Messages: make([]Message, len(c.Messages))}
	for i, m := range c.Messages {
		if m.ToolCalls != nil {
			calls := make([]tools.Call, len(m.ToolCalls))
			for j, call := range m.ToolCalls {
				call.Arguments = maps.Clone(call.Arguments)
				calls[j] = call
			}
			m.ToolCalls = calls
		}
		out.Messages[i] = m
	}
	return out
}

// Append adds messages at the end
func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
}

// Len returns the number of messages
func (c Conversation) Len() int {
	return len(c.Messages)
}

// HasSystem reports whether the conversation opens with a system message
func (c Conversation) HasSystem() bool {
	return len(c.Messages) > 0 && c.Messages[0].Role == RoleSystem
}

// WithSystem returns a copy with prompt as the leading system message
func (c Conversation) WithSystem(prompt string) Conversation {
	out := c.Clone()
	if out.HasSystem() {
		out.Messages[0].Content = prompt
		return out
	}
	out.Messages = append([]Message{SystemMessage(prompt)}, out.Messages...)
	return out
}

// LastAssistant returns the most recent assistant message
func (c Conversation) LastAssistant() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// TruncateToFit drops the oldest non-system messages until at most max remain.
// The cut never lands on a tool message, so a tool request is never separated
// from its results. System messages are always kept.
func (c Conversation) TruncateToFit(max int) Conversation {
	if max <= 0 || len(c.Messages) <= max {
		return c.Clone()
	}

	var system, rest []Message
	for _, m := range c.Messages {
		if m.Role == RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}

	budget := max - len(system)
	cut := len(rest)
	if budget > 0 {
		cut = len(rest) - budget
		if cut < 0 {
			cut = 0
		}
	}
	for cut < len(rest) && rest[cut].Role == RoleTool {
		cut++
	}

	out := Conversation{Messages: append(append([]Message(nil), system...), rest[cut:]...)}
	return out.Clone()
}
