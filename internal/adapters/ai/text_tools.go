package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"dcaadvisor/pkg/errors"
)

const (
	toolFenceOpen  = "```tool"
	toolFenceClose = "```"
)

// TextToolCall is a call parsed from a plain-text completion.
type TextToolCall struct {
	ID        string         `json:"id,omitempty"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// ParseTextToolCalls extracts every ```tool block from content and returns
// the calls together with the text outside the blocks. Without blocks, a
// single inline JSON object carrying a "tool" key is accepted. Text that
// holds neither yields no calls.
func ParseTextToolCalls(content string) ([]TextToolCall, string, error) {
	var (
		calls []TextToolCall
		rest  strings.Builder
	)

	remaining := content
	for {
		start := strings.Index(remaining, toolFenceOpen)
		if start < 0 {
			rest.WriteString(remaining)
			break
		}
		rest.WriteString(remaining[:start])

		body := remaining[start+len(toolFenceOpen):]
		end := strings.Index(body, toolFenceClose)
		if end < 0 {
			return nil, "", errors.Wrap(errors.ErrMalformedResponse, "unterminated tool block")
		}

		call, err := decodeTextCall(strings.TrimSpace(body[:end]))
		if err != nil {
			return nil, "", err
		}
		calls = append(calls, call)
		remaining = body[end+len(toolFenceClose):]
	}

	if len(calls) > 0 {
		return calls, strings.TrimSpace(rest.String()), nil
	}

	if call, ok := inlineTextCall(content); ok {
		return []TextToolCall{call}, "", nil
	}
	return nil, content, nil
}

func decodeTextCall(raw string) (TextToolCall, error) {
	var call TextToolCall
	if err := json.Unmarshal([]byte(raw), &call); err != nil {
		return TextToolCall{}, errors.Wrapf(errors.ErrMalformedResponse, "tool block is not JSON: %v", err)
	}
	if strings.TrimSpace(call.Tool) == "" {
		return TextToolCall{}, errors.Wrap(errors.ErrMalformedResponse, "tool block has no tool name")
	}
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	return call, nil
}

// inlineTextCall takes the span from the first '{' to the last '}'.
func inlineTextCall(content string) (TextToolCall, bool) {
	if !strings.Contains(content, `"tool"`) {
		return TextToolCall{}, false
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return TextToolCall{}, false
	}
	call, err := decodeTextCall(content[start : end+1])
	if err != nil {
		return TextToolCall{}, false
	}
	return call, true
}

// FormatTextToolCall renders a call the way the model is told to write it.
func FormatTextToolCall(name, arguments string) string {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	return fmt.Sprintf("%s\n{\"tool\": %q, \"arguments\": %s}\n%s", toolFenceOpen, name, arguments, toolFenceClose)
}

// FormatTextToolResult renders a tool result fed back as a user message.
func FormatTextToolResult(name, content string) string {
	verb := "returned"
	if strings.HasPrefix(strings.TrimSpace(content), `{"error"`) {
		verb = "failed"
	}
	return fmt.Sprintf("[Tool '%s' %s]\n%s", name, verb, content)
}
