package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
)

// Provider is a language-model backend. Generate sees the whole conversation
// and the tools that may be requested, and answers with either final text or
// a batch of tool calls.
type Provider interface {
	Name() string
	Generate(ctx context.Context, conv Conversation, tools []tools.Schema) (Response, error)
}

// TextToolProvider is implemented by providers that have no native tool
// calling and expect the tool descriptions in the system prompt.
type TextToolProvider interface {
	UsesTextToolProtocol() bool
}

// ResponseKind tags the variant held by a Response
type ResponseKind string

const (
	KindFinalAnswer ResponseKind = "final_answer"
	KindToolRequest ResponseKind = "tool_request"
)

// Response is what a provider produced for one query
type Response struct {
	Kind  ResponseKind
	Text  string
	Calls []tools.Call
}

// FinalAnswer ends the turn with text
func FinalAnswer(text string) Response {
	return Response{Kind: KindFinalAnswer, Text: text}
}

// ToolRequest asks the loop to run calls; text is kept on the assistant message
func ToolRequest(text string, calls ...tools.Call) Response {
	return Response{Kind: KindToolRequest, Text: text, Calls: calls}
}

// Validate checks the response shape: a tool request needs at least one call,
// and every call a name and an id unique within the response.
func (r Response) Validate() error {
	switch r.Kind {
	case KindFinalAnswer:
		return nil
	case KindToolRequest:
	default:
		return errors.Newf("unknown response kind %q", r.Kind)
	}

	if len(r.Calls) == 0 {
		return errors.New("tool request without calls")
	}
	seen := make(map[string]struct{}, len(r.Calls))
	for i, call := range r.Calls {
		if strings.TrimSpace(call.ID) == "" {
			return errors.Newf("call %d (%s) has no id", i, call.Name)
		}
		if strings.TrimSpace(call.Name) == "" {
			return errors.Newf("call %s has no tool name", call.ID)
		}
		if _, dup := seen[call.ID]; dup {
			return errors.Newf("duplicate call id %s", call.ID)
		}
		seen[call.ID] = struct{}{}
	}
	return nil
}

// ProviderErrorKind classifies provider failures
type ProviderErrorKind string

const (
	ProviderTimeout           ProviderErrorKind = "Timeout"
	ProviderUnreachable       ProviderErrorKind = "Unreachable"
	ProviderMalformedResponse ProviderErrorKind = "MalformedResponse"
)

func (k ProviderErrorKind) sentinel() error {
	switch k {
	case ProviderTimeout:
		return errors.ErrProviderTimeout
	case ProviderMalformedResponse:
		return errors.ErrMalformedResponse
	default:
		return errors.ErrProviderUnreachable
	}
}

// ProviderError is a classified failure of one Generate call
type ProviderError struct {
	Kind     ProviderErrorKind
	Provider string
	Err      error
}

// NewProviderError builds a ProviderError
func NewProviderError(kind ProviderErrorKind, provider string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause
func (e *ProviderError) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

// ClassifyProviderError maps an arbitrary backend error onto a ProviderError
func ClassifyProviderError(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	var (
		netErr    net.Error
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, errors.ErrTimeout),
		errors.Is(err, errors.ErrProviderTimeout):
		return NewProviderError(ProviderTimeout, provider, err)
	case errors.Is(err, errors.ErrMalformedResponse),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		return NewProviderError(ProviderMalformedResponse, provider, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewProviderError(ProviderTimeout, provider, err)
	default:
		return NewProviderError(ProviderUnreachable, provider, err)
	}
}
