package testsupport

import (
	"context"
	"fmt"
	"sync"

	"dcaadvisor/internal/agent"
	"dcaadvisor/internal/tools"
)

// Scripted is one provider reply in a scripted sequence
type Scripted struct {
	Response agent.Response
	Err      error
	// Block makes Generate wait for ctx to end before returning ctx.Err()
	Block bool
}

// Answer scripts a final answer
func Answer(text string) Scripted {
	return Scripted{Response: agent.FinalAnswer(text)}
}

// Calls scripts a tool request
func Calls(calls ...tools.Call) Scripted {
	return Scripted{Response: agent.ToolRequest("", calls...)}
}

// Fail scripts a provider error
func Fail(err error) Scripted {
	return Scripted{Err: err}
}

// ScriptedProvider replays a fixed sequence of replies and records what it was sent
type ScriptedProvider struct {
	mu        sync.Mutex
	name      string
	script    []Scripted
	index     int
	seen      []agent.Conversation
	textTools bool
}

// NewScriptedProvider builds a provider replying with script in order
func NewScriptedProvider(script ...Scripted) *ScriptedProvider {
	return &ScriptedProvider{name: "scripted", script: append([]Scripted(nil), script...)}
}

// WithName sets the name reported by Name
func (p *ScriptedProvider) WithName(name string) *ScriptedProvider {
	p.name = name
	return p
}

// WithTextTools makes the provider ask for the text tool protocol
func (p *ScriptedProvider) WithTextTools() *ScriptedProvider {
	p.textTools = true
	return p
}

func (p *ScriptedProvider) Name() string { return p.name }

func (p *ScriptedProvider) UsesTextToolProtocol() bool { return p.textTools }

// Generate returns the next scripted reply
func (p *ScriptedProvider) Generate(ctx context.Context, conv agent.Conversation, _ []tools.Schema) (agent.Response, error) {
	p.mu.Lock()
	p.seen = append(p.seen, conv.Clone())
	if p.index >= len(p.script) {
		p.mu.Unlock()
		return agent.Response{}, fmt.Errorf("script exhausted at call %d", p.index+1)
	}
	current := p.script[p.index]
	p.index++
	p.mu.Unlock()

	if current.Block {
		<-ctx.Done()
		return agent.Response{}, ctx.Err()
	}
	if current.Err != nil {
		return agent.Response{}, current.Err
	}
	return current.Response, nil
}

// CallCount returns how many times Generate ran
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// Seen returns the conversations passed to Generate
func (p *ScriptedProvider) Seen() []agent.Conversation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]agent.Conversation(nil), p.seen...)
}
