package ai

import (
	"context"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"dcaadvisor/pkg/errors"
)

// OpenAIProvider calls the OpenAI chat completions API through the official SDK.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	limiter RateLimiter
}

var _ ChatProvider = (*OpenAIProvider)(nil)

var openAIModels = []ModelInfo{
	{Provider: ProviderNameOpenAI.String(), Name: ModelGPT4oMini, Family: "gpt-4o", MaxTokens: 128000, SupportsTools: true},
	{Provider: ProviderNameOpenAI.String(), Name: ModelGPT4o, Family: "gpt-4o", MaxTokens: 128000, SupportsTools: true},
}

// NewOpenAIProvider builds the provider. baseURL may be empty for the public API.
// SDK retries are disabled since the agent loop owns retry policy.
func NewOpenAIProvider(apiKey, baseURL, model string, timeout time.Duration, limiter RateLimiter) *OpenAIProvider {
	if model == "" {
		model = ModelGPT4oMini
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	return &OpenAIProvider{
		client:  openai.NewClient(opts...),
		model:   model,
		limiter: limiter,
	}
}

func (p *OpenAIProvider) Name() string         { return ProviderNameOpenAI.String() }
func (p *OpenAIProvider) DefaultModel() string { return p.model }
func (p *OpenAIProvider) SupportsTools() bool  { return true }

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return append([]ModelInfo(nil), openAIModels...), nil
}

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := waitLimiter(ctx, p.limiter); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        tool.Function.Name,
			Description: openai.String(tool.Function.Description),
			Parameters:  shared.FunctionParameters(tool.Function.Parameters),
		}))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, openAIError(ctx, err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrMalformedResponse, "openai response has no choices")
	}

	out := &ChatResponse{
		ID:    completion.ID,
		Model: completion.Model,
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	for _, choice := range completion.Choices {
		msg := Message{Role: RoleAssistant, Content: choice.Message.Content}
		for _, tc := range choice.Message.ToolCalls {
			if tc.Type != "" && tc.Type != "function" {
				continue
			}
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
			})
		}
		out.Choices = append(out.Choices, Choice{
			Index:        int(choice.Index),
			Message:      msg,
			FinishReason: FinishReason(choice.FinishReason),
		})
	}
	return out, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		case RoleAssistant:
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Function.Arguments
				if args == "" {
					args = "{}"
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Function.Name,
							Arguments: args,
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// openAIError maps SDK failures onto the shared sentinels.
func openAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), "openai request")
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return errors.Wrapf(errors.ErrRateLimitExceeded, "openai API error: %v", err)
		case apiErr.StatusCode >= 500:
			return errors.Wrapf(errors.ErrProviderUnreachable, "openai API error: %v", err)
		default:
			return errors.Wrapf(errors.ErrExternal, "openai API error: %v", err)
		}
	}
	return errors.Wrap(err, "openai request")
}
