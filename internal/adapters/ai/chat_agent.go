package ai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"dcaadvisor/internal/agent"
	"dcaadvisor/internal/metrics"
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

// ChatAgentConfig selects the model and sampling for a ChatAgent.
type ChatAgentConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// TextTools forces the text tool protocol even when the backend has native tools.
	TextTools bool
}

// ChatAgent adapts a ChatProvider to the agent loop's Provider contract.
type ChatAgent struct {
	provider  ChatProvider
	cfg       ChatAgentConfig
	textTools bool
	log       *logger.Logger
}

var (
	_ agent.Provider         = (*ChatAgent)(nil)
	_ agent.TextToolProvider = (*ChatAgent)(nil)
)

// NewChatAgent wraps provider. Backends without native tool calling always
// use the text tool protocol.
func NewChatAgent(provider ChatProvider, cfg ChatAgentConfig) *ChatAgent {
	if cfg.Model == "" {
		cfg.Model = provider.DefaultModel()
	}
	return &ChatAgent{
		provider:  provider,
		cfg:       cfg,
		textTools: cfg.TextTools || !provider.SupportsTools(),
		log:       logger.Get().With("component", "chat_agent", "provider", provider.Name(), "model", cfg.Model),
	}
}

func (a *ChatAgent) Name() string { return a.provider.Name() }

// Model returns the model requests are sent to
func (a *ChatAgent) Model() string { return a.cfg.Model }

func (a *ChatAgent) UsesTextToolProtocol() bool { return a.textTools }

// Generate sends the conversation and maps the first choice onto a Response.
func (a *ChatAgent) Generate(ctx context.Context, conv agent.Conversation, schemas []tools.Schema) (agent.Response, error) {
	req := ChatRequest{
		Model:       a.cfg.Model,
		Messages:    a.toMessages(conv),
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
	if !a.textTools {
		req.Tools = ToolDefinitions(schemas)
	}

	start := time.Now()
	resp, err := a.provider.Chat(ctx, req)
	if err == nil && len(resp.Choices) == 0 {
		err = errors.Wrap(errors.ErrMalformedResponse, "response has no choices")
	}
	if err != nil {
		perr := agent.ClassifyProviderError(a.provider.Name(), err)
		metrics.RecordProviderCall(a.provider.Name(), time.Since(start), string(perr.Kind))
		return agent.Response{}, perr
	}

	out, err := a.toResponse(resp.Choices[0].Message)
	if err != nil {
		metrics.RecordProviderCall(a.provider.Name(), time.Since(start), string(agent.ProviderMalformedResponse))
		return agent.Response{}, agent.NewProviderError(agent.ProviderMalformedResponse, a.provider.Name(), err)
	}
	metrics.RecordProviderCall(a.provider.Name(), time.Since(start), "")

	a.log.Debugw("Provider answered",
		"kind", out.Kind,
		"calls", len(out.Calls),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return out, nil
}

// ToolDefinitions converts tool schemas to function definitions.
func ToolDefinitions(schemas []tools.Schema) []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(schemas))
	for _, s := range schemas {
		defs = append(defs, ToolDefinition{
			Type: "function",
			Function: FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.JSONSchema(),
			},
		})
	}
	return defs
}

func (a *ChatAgent) toMessages(conv agent.Conversation) []Message {
	out := make([]Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		switch m.Role {
		case agent.RoleSystem:
			out = append(out, Message{Role: RoleSystem, Content: m.Content})
		case agent.RoleUser:
			out = append(out, Message{Role: RoleUser, Content: m.Content})
		case agent.RoleAssistant:
			msg := Message{Role: RoleAssistant, Content: m.Content}
			if a.textTools {
				blocks := make([]string, 0, len(m.ToolCalls)+1)
				if strings.TrimSpace(m.Content) != "" {
					blocks = append(blocks, m.Content)
				}
				for _, call := range m.ToolCalls {
					blocks = append(blocks, FormatTextToolCall(call.Name, encodeArguments(call.Arguments)))
				}
				msg.Content = strings.Join(blocks, "\n")
			} else {
				for _, call := range m.ToolCalls {
					msg.ToolCalls = append(msg.ToolCalls, ToolCall{
						ID:       call.ID,
						Type:     "function",
						Function: FunctionCall{Name: call.Name, Arguments: encodeArguments(call.Arguments)},
					})
				}
			}
			out = append(out, msg)
		case agent.RoleTool:
			if a.textTools {
				out = append(out, Message{Role: RoleUser, Content: FormatTextToolResult(m.ToolName, m.Content)})
				continue
			}
			out = append(out, Message{Role: RoleTool, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.ToolName})
		}
	}
	return out
}

func (a *ChatAgent) toResponse(msg Message) (agent.Response, error) {
	if a.textTools {
		parsed, text, err := ParseTextToolCalls(msg.Content)
		if err != nil {
			return agent.Response{}, err
		}
		if len(parsed) == 0 {
			return agent.FinalAnswer(msg.Content), nil
		}
		calls := make([]tools.Call, 0, len(parsed))
		for _, p := range parsed {
			calls = append(calls, tools.Call{ID: callID(p.ID), Name: p.Tool, Arguments: p.Arguments})
		}
		return agent.ToolRequest(text, calls...), nil
	}

	if len(msg.ToolCalls) == 0 {
		return agent.FinalAnswer(msg.Content), nil
	}
	calls := make([]tools.Call, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		args, err := decodeArguments(tc.Function.Arguments)
		if err != nil {
			return agent.Response{}, errors.Wrapf(err, "call %s", tc.Function.Name)
		}
		calls = append(calls, tools.Call{ID: callID(tc.ID), Name: tc.Function.Name, Arguments: args})
	}
	return agent.ToolRequest(msg.Content, calls...), nil
}

// callID keeps a backend id or mints one.
func callID(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func decodeArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedResponse, "arguments are not a JSON object: %v", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
