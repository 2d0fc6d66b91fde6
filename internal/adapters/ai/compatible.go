package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"dcaadvisor/pkg/errors"
)

// CompatibleConfig configures a backend speaking the OpenAI chat completions wire format.
type CompatibleConfig struct {
	Name         string
	BaseURL      string // up to and including /v1
	APIKey       string // optional for local servers
	DefaultModel string
	Models       []ModelInfo
	// NativeTools is false for backends that need the text tool protocol.
	NativeTools bool
	Timeout     time.Duration
	Limiter     RateLimiter
}

// CompatibleProvider talks to OpenAI-compatible /chat/completions endpoints
// such as Ollama and DeepSeek.
type CompatibleProvider struct {
	cfg    CompatibleConfig
	client *http.Client
}

var _ ChatProvider = (*CompatibleProvider)(nil)

// NewCompatibleProvider builds a provider for cfg.
func NewCompatibleProvider(cfg CompatibleConfig) *CompatibleProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CompatibleProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// NewOllamaProvider serves local models through Ollama's /v1 endpoint.
// Any model name is accepted since the local catalog is not known up front.
func NewOllamaProvider(baseURL, model string, nativeTools bool, timeout time.Duration, limiter RateLimiter) *CompatibleProvider {
	if model == "" {
		model = ModelLlama31
	}
	return NewCompatibleProvider(CompatibleConfig{
		Name:         ProviderNameOllama.String(),
		BaseURL:      baseURL,
		DefaultModel: model,
		Models: []ModelInfo{
			{Provider: ProviderNameOllama.String(), Name: model, Family: "local", SupportsTools: nativeTools},
		},
		NativeTools: nativeTools,
		Timeout:     timeout,
		Limiter:     limiter,
	})
}

// NewDeepSeekProvider serves the hosted DeepSeek API.
func NewDeepSeekProvider(apiKey string, timeout time.Duration, limiter RateLimiter) *CompatibleProvider {
	return NewCompatibleProvider(CompatibleConfig{
		Name:         ProviderNameDeepSeek.String(),
		BaseURL:      deepseekBaseURL,
		APIKey:       apiKey,
		DefaultModel: ModelDeepSeekChat,
		Models: []ModelInfo{
			{Provider: ProviderNameDeepSeek.String(), Name: ModelDeepSeekChat, Family: "deepseek-v3", MaxTokens: 64000, SupportsTools: true},
		},
		NativeTools: true,
		Timeout:     timeout,
		Limiter:     limiter,
	})
}

func (p *CompatibleProvider) Name() string         { return p.cfg.Name }
func (p *CompatibleProvider) DefaultModel() string { return p.cfg.DefaultModel }
func (p *CompatibleProvider) SupportsTools() bool  { return p.cfg.NativeTools }

func (p *CompatibleProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return append([]ModelInfo(nil), p.cfg.Models...), nil
}

// Chat sends one chat completion request.
func (p *CompatibleProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := waitLimiter(ctx, p.cfg.Limiter); err != nil {
		return nil, err
	}

	body, err := json.Marshal(p.toWire(req))
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s request", p.cfg.Name)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, p.cfg.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProviderUnreachable, "read %s response: %v", p.cfg.Name, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(p.cfg.Name, resp.StatusCode, respBody)
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedResponse, "decode %s response: %v", p.cfg.Name, err)
	}
	if len(wire.Choices) == 0 {
		return nil, errors.Wrapf(errors.ErrMalformedResponse, "%s response has no choices", p.cfg.Name)
	}

	return fromWire(&wire), nil
}

// OpenAI-compatible request/response types
type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Stream      bool          `json:"stream"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name string `json:"name"`
	// Arguments is a JSON string on OpenAI and DeepSeek; some Ollama builds send an object.
	Arguments json.RawMessage `json:"arguments"`
}

type wireTool struct {
	Type     string          `json:"type"`
	Function wireFunctionDef `json:"function"`
}

type wireFunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type wireChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

func (p *CompatibleProvider) toWire(req ChatRequest) wireRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}
	out := wireRequest{
		Model:       model,
		Messages:    make([]wireMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = defaultMaxTokens
	}

	for _, msg := range req.Messages {
		wm := wireMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			arguments := tc.Function.Arguments
			if arguments == "" {
				arguments = "{}"
			}
			args, _ := json.Marshal(arguments)
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: wireFunctionCall{Name: tc.Function.Name, Arguments: args},
			})
		}
		out.Messages = append(out.Messages, wm)
	}

	if p.cfg.NativeTools {
		for _, tool := range req.Tools {
			out.Tools = append(out.Tools, wireTool{
				Type: "function",
				Function: wireFunctionDef{
					Name:        tool.Function.Name,
					Description: tool.Function.Description,
					Parameters:  tool.Function.Parameters,
				},
			})
		}
	}
	return out
}

func fromWire(wire *wireResponse) *ChatResponse {
	out := &ChatResponse{
		ID:    wire.ID,
		Model: wire.Model,
		Usage: Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
	}
	for _, c := range wire.Choices {
		msg := Message{Role: RoleAssistant, Content: c.Message.Content}
		for _, tc := range c.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: FunctionCall{Name: tc.Function.Name, Arguments: rawArguments(tc.Function.Arguments)},
			})
		}
		out.Choices = append(out.Choices, Choice{
			Index:        c.Index,
			Message:      msg,
			FinishReason: FinishReason(c.FinishReason),
		})
	}
	return out
}

// rawArguments unwraps a JSON-encoded string or passes an inline object through.
func rawArguments(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
