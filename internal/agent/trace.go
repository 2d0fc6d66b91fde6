package agent

import (
	"time"

	"dcaadvisor/internal/tools"
)

// StepKind tags a trace step
type StepKind string

const (
	StepAnswer        StepKind = "answer"
	StepToolRequest   StepKind = "tool_request"
	StepToolResult    StepKind = "tool_result"
	StepProviderError StepKind = "provider_error"
)

// Step is one observable event of a turn
type Step struct {
	Iteration int           `json:"iteration"`
	Kind      StepKind      `json:"kind"`
	Text      string        `json:"text,omitempty"`
	Calls     []tools.Call  `json:"calls,omitempty"`
	Result    *tools.Result `json:"result,omitempty"`
	Attempt   int           `json:"attempt,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Trace is the full record of a turn
type Trace struct {
	RunID       string       `json:"run_id"`
	Provider    string       `json:"provider"`
	Steps       []Step       `json:"steps"`
	Transitions []Transition `json:"transitions"`
}

func (t *Trace) add(s Step) {
	t.Steps = append(t.Steps, s)
}

// ToolResults returns every tool result in execution order
func (t Trace) ToolResults() []tools.Result {
	var out []tools.Result
	for _, s := range t.Steps {
		if s.Kind == StepToolResult && s.Result != nil {
			out = append(out, *s.Result)
		}
	}
	return out
}

// ProviderCalls counts Generate calls that returned a usable response
func (t Trace) ProviderCalls() int {
	n := 0
	for _, s := range t.Steps {
		if s.Kind == StepAnswer || s.Kind == StepToolRequest {
			n++
		}
	}
	return n
}
