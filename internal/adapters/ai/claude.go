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

const (
	claudeBaseURL    = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

var claudeModels = []ModelInfo{
	{Provider: ProviderNameClaude.String(), Name: ModelClaudeSonnet, Family: "claude-4.5", MaxTokens: 200000, SupportsTools: true},
	{Provider: ProviderNameClaude.String(), Name: ModelClaudeHaiku, Family: "claude-4.5", MaxTokens: 200000, SupportsTools: true},
}

// ClaudeConfig configures the Anthropic Messages API backend.
type ClaudeConfig struct {
	APIKey  string
	BaseURL string // empty for the public API
	Model   string
	Timeout time.Duration
	Limiter RateLimiter
}

// ClaudeProvider calls the Anthropic Messages API over plain HTTP.
type ClaudeProvider struct {
	cfg    ClaudeConfig
	client *http.Client
}

var _ ChatProvider = (*ClaudeProvider)(nil)

func NewClaudeProvider(cfg ClaudeConfig) *ClaudeProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = claudeBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = ModelClaudeSonnet
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &ClaudeProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *ClaudeProvider) Name() string         { return ProviderNameClaude.String() }
func (p *ClaudeProvider) DefaultModel() string { return p.cfg.Model }
func (p *ClaudeProvider) SupportsTools() bool  { return true }

func (p *ClaudeProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return append([]ModelInfo(nil), claudeModels...), nil
}

// Chat sends one Messages API request.
func (p *ClaudeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "claude API key not configured")
	}
	if err := waitLimiter(ctx, p.cfg.Limiter); err != nil {
		return nil, err
	}

	body, err := json.Marshal(p.toClaude(req))
	if err != nil {
		return nil, errors.Wrap(err, "marshal claude request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, p.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProviderUnreachable, "read claude response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(p.Name(), resp.StatusCode, respBody)
	}

	var out claudeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedResponse, "decode claude response: %v", err)
	}
	return fromClaude(&out), nil
}

// Claude API types
type claudeRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Tools       []claudeTool    `json:"tools,omitempty"`
}

type claudeMessage struct {
	Role    string          `json:"role"` // user | assistant
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type      string          `json:"type"` // text | tool_use | tool_result
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type claudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type claudeResponse struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	Content    []claudeContent `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// toClaude lifts system messages into the top-level prompt and folds
// consecutive tool results into one user turn, as the API requires.
func (p *ClaudeProvider) toClaude(req ChatRequest) claudeRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	out := claudeRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = defaultMaxTokens
	}

	var system []string
	for _, msg := range req.Messages {
		switch {
		case msg.Role == RoleSystem:
			system = append(system, msg.Content)

		case msg.Role == RoleTool:
			block := claudeContent{Type: "tool_result", ToolUseID: msg.ToolCallID, Content: msg.Content}
			if n := len(out.Messages); n > 0 && out.Messages[n-1].Role == "user" && isToolResults(out.Messages[n-1]) {
				out.Messages[n-1].Content = append(out.Messages[n-1].Content, block)
				continue
			}
			out.Messages = append(out.Messages, claudeMessage{Role: "user", Content: []claudeContent{block}})

		case len(msg.ToolCalls) > 0:
			var blocks []claudeContent
			if msg.Content != "" {
				blocks = append(blocks, claudeContent{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, claudeContent{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: toolInput(tc.Function.Arguments),
				})
			}
			out.Messages = append(out.Messages, claudeMessage{Role: "assistant", Content: blocks})

		default:
			role := "user"
			if msg.Role == RoleAssistant {
				role = "assistant"
			}
			out.Messages = append(out.Messages, claudeMessage{
				Role:    role,
				Content: []claudeContent{{Type: "text", Text: msg.Content}},
			})
		}
	}
	out.System = strings.Join(system, "\n\n")

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, claudeTool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: tool.Function.Parameters,
		})
	}
	return out
}

func isToolResults(msg claudeMessage) bool {
	for _, c := range msg.Content {
		if c.Type != "tool_result" {
			return false
		}
	}
	return len(msg.Content) > 0
}

// toolInput must be a JSON object; anything else is sent as {}.
func toolInput(arguments string) json.RawMessage {
	trimmed := strings.TrimSpace(arguments)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return json.RawMessage("{}")
}

func fromClaude(resp *claudeResponse) *ChatResponse {
	msg := Message{Role: RoleAssistant}
	var text []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:       block.ID,
				Type:     "function",
				Function: FunctionCall{Name: block.Name, Arguments: rawArguments(block.Input)},
			})
		}
	}
	msg.Content = strings.Join(text, "\n")

	finish := FinishReasonStop
	switch resp.StopReason {
	case "max_tokens":
		finish = FinishReasonLength
	case "tool_use":
		finish = FinishReasonToolCalls
	}

	return &ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Choices: []Choice{{
			Message:      msg,
			FinishReason: finish,
		}},
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}
