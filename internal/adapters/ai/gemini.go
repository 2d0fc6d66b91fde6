package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"dcaadvisor/pkg/errors"
)

// GeminiProvider calls Gemini models through the genai SDK.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	limiter RateLimiter
}

var _ ChatProvider = (*GeminiProvider)(nil)

var geminiModels = []ModelInfo{
	{Provider: ProviderNameGemini.String(), Name: ModelGemini25, Family: "gemini-2.5", MaxTokens: 1048576, SupportsTools: true},
	{Provider: ProviderNameGemini.String(), Name: ModelGemini25Pro, Family: "gemini-2.5", MaxTokens: 1048576, SupportsTools: true},
}

// GeminiConfig configures the Gemini backend. BaseURL is only set in tests.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Limiter RateLimiter
}

// NewGeminiProvider builds the genai client for the Gemini API backend.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gemini API key not configured")
	}
	if cfg.Model == "" {
		cfg.Model = ModelGemini25
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		cc.HTTPOptions.Timeout = genai.Ptr(cfg.Timeout)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}

	return &GeminiProvider{client: client, model: cfg.Model, limiter: cfg.Limiter}, nil
}

func (p *GeminiProvider) Name() string         { return ProviderNameGemini.String() }
func (p *GeminiProvider) DefaultModel() string { return p.model }
func (p *GeminiProvider) SupportsTools() bool  { return true }

func (p *GeminiProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return append([]ModelInfo(nil), geminiModels...), nil
}

// Chat sends one GenerateContent request.
func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := waitLimiter(ctx, p.limiter); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	system, contents := toGeminiContents(req.Messages)
	config := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 tool.Function.Name,
				Description:          tool.Function.Description,
				ParametersJsonSchema: tool.Function.Parameters,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, geminiError(ctx, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.Wrap(errors.ErrMalformedResponse, "gemini response has no candidates")
	}

	msg := Message{Role: RoleAssistant}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrMalformedResponse, "gemini call arguments: %v", err)
			}
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:       part.FunctionCall.ID,
				Type:     "function",
				Function: FunctionCall{Name: part.FunctionCall.Name, Arguments: string(args)},
			})
		case part.Text != "" && !part.Thought:
			text.WriteString(part.Text)
		}
	}
	msg.Content = text.String()

	finish := FinishReasonStop
	if len(msg.ToolCalls) > 0 {
		finish = FinishReasonToolCalls
	}
	out := &ChatResponse{
		ID:      resp.ResponseID,
		Model:   model,
		Choices: []Choice{{Message: msg, FinishReason: finish}},
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// toGeminiContents splits off the system prompt and groups consecutive tool
// results into one user turn, which is how Gemini expects function responses.
func toGeminiContents(msgs []Message) (*genai.Content, []*genai.Content) {
	var (
		system   *genai.Content
		contents []*genai.Content
		pending  []*genai.Part
	)
	flush := func() {
		if len(pending) > 0 {
			contents = append(contents, genai.NewContentFromParts(pending, genai.RoleUser))
			pending = nil
		}
	}

	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			system = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case RoleTool:
			part := genai.NewPartFromFunctionResponse(msg.Name, toolResponse(msg.Content))
			part.FunctionResponse.ID = msg.ToolCallID
			pending = append(pending, part)
		case RoleAssistant:
			flush()
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				part := genai.NewPartFromFunctionCall(tc.Function.Name, args)
				part.FunctionCall.ID = tc.ID
				parts = append(parts, part)
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		default:
			flush()
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	flush()
	return system, contents
}

// toolResponse wraps a tool result as the object Gemini requires.
func toolResponse(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"result": content}
}

func geminiError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), "gemini request")
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return errors.Wrapf(errors.ErrRateLimitExceeded, "gemini API error: %v", err)
		case apiErr.Code >= 500:
			return errors.Wrapf(errors.ErrProviderUnreachable, "gemini API error: %v", err)
		default:
			return errors.Wrapf(errors.ErrExternal, "gemini API error: %v", err)
		}
	}
	return errors.Wrap(err, "gemini request")
}
