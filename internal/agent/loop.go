package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

// ToolExecutor runs tool calls; *tools.Registry implements it
type ToolExecutor interface {
	Execute(ctx context.Context, call tools.Call) tools.Result
	Schemas() []tools.Schema
}

// Config bounds a turn
type Config struct {
	MaxIterations   int
	ProviderRetries int
	ProviderBackoff time.Duration
	ProviderTimeout time.Duration
	ToolTimeout     time.Duration

	// SystemPrompt is prepended when a conversation has none; empty renders
	// the advisor persona with DefaultPromptData.
	SystemPrompt string
}

// DefaultConfig returns the default turn bounds
func DefaultConfig() Config {
	return Config{
		MaxIterations:   8,
		ProviderRetries: 2,
		ProviderBackoff: 250 * time.Millisecond,
		ProviderTimeout: 60 * time.Second,
		ToolTimeout:     10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.ProviderRetries < 0 {
		c.ProviderRetries = 0
	}
	if c.ProviderBackoff <= 0 {
		c.ProviderBackoff = def.ProviderBackoff
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = def.ProviderTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = def.ToolTimeout
	}
	return c
}

// TurnResult is the outcome of RunTurn. On failure it holds whatever was
// produced before the loop stopped.
type TurnResult struct {
	RunID        string        `json:"run_id"`
	FinalText    string        `json:"final_text"`
	Trace        Trace         `json:"trace"`
	Conversation Conversation  `json:"conversation"`
	State        State         `json:"state"`
	Iterations   int           `json:"iterations"`
	Duration     time.Duration `json:"duration"`
}

// Option customizes a Loop
type Option func(*Loop)

// WithObservers registers turn observers
func WithObservers(obs ...Observer) Option {
	return func(l *Loop) {
		l.observers = append(l.observers, obs...)
	}
}

// Loop drives one provider and one tool executor through the turn state machine.
// A Loop holds no per-turn state and may serve concurrent turns.
type Loop struct {
	provider  Provider
	tools     ToolExecutor
	cfg       Config
	prompt    string
	observers []Observer
	log       *logger.Logger
}

// New builds a loop and renders its system prompt
func New(provider Provider, executor ToolExecutor, cfg Config, opts ...Option) (*Loop, error) {
	if provider == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "agent loop needs a provider")
	}
	if executor == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "agent loop needs a tool executor")
	}

	cfg = cfg.withDefaults()
	l := &Loop{
		provider: provider,
		tools:    executor,
		cfg:      cfg,
		log:      logger.Get().With("component", "agent_loop", "provider", provider.Name()),
	}
	for _, opt := range opts {
		opt(l)
	}

	prompt := cfg.SystemPrompt
	if prompt == "" {
		var err error
		if prompt, err = RenderSystemPrompt(DefaultPromptData()); err != nil {
			return nil, err
		}
	}
	if tp, ok := provider.(TextToolProvider); ok && tp.UsesTextToolProtocol() {
		section, err := RenderToolSection(executor.Schemas())
		if err != nil {
			return nil, err
		}
		prompt += "\n\n" + section
	}
	l.prompt = prompt

	return l, nil
}

// ListTools returns the schemas advertised to the provider
func (l *Loop) ListTools() []tools.Schema {
	return l.tools.Schemas()
}

// SystemPrompt returns the prompt prepended to new conversations
func (l *Loop) SystemPrompt() string {
	return l.prompt
}

// Provider returns the backend this loop queries
func (l *Loop) Provider() Provider {
	return l.provider
}

// turn is the mutable state of one RunTurn call
type turn struct {
	res      *TurnResult
	machine  *machine
	progress progressGuard
	log      *logger.Logger
}

// RunTurn answers userMessage in the context of conv. conv itself is never
// modified; the extended conversation is returned in the result. A failed
// turn returns the partial result together with a *LoopError.
func (l *Loop) RunTurn(ctx context.Context, conv Conversation, userMessage string) (*TurnResult, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty user message")
	}

	start := time.Now()
	runID := uuid.NewString()

	work := conv.Clone()
	if !work.HasSystem() {
		work = work.WithSystem(l.prompt)
	}
	work.Append(UserMessage(userMessage))

	t := &turn{
		res: &TurnResult{
			RunID:        runID,
			Conversation: work,
			Trace:        Trace{RunID: runID, Provider: l.provider.Name()},
		},
		machine: newMachine(),
		log:     l.log.With("run_id", runID),
	}

	err := l.run(ctx, t)

	t.res.State = t.machine.state
	t.res.Trace.Transitions = t.machine.history
	t.res.Duration = time.Since(start)

	if err != nil {
		t.log.Warnw("Turn failed", "error", err, "iterations", t.res.Iterations, "duration", t.res.Duration)
	} else {
		t.log.Infow("Turn completed",
			"iterations", t.res.Iterations,
			"tool_calls", len(t.res.Trace.ToolResults()),
			"duration", t.res.Duration,
		)
	}

	for _, obs := range l.observers {
		obs.TurnFinished(ctx, t.res, err)
	}

	if err != nil {
		return t.res, err
	}
	return t.res, nil
}

func (l *Loop) run(ctx context.Context, t *turn) error {
	if err := t.machine.to(StateQueryingProvider); err != nil {
		return l.fail(t, &LoopError{Kind: LoopInternal, Err: err})
	}

	for {
		if err := ctx.Err(); err != nil {
			return l.fail(t, &LoopError{Kind: LoopCanceled, Iterations: t.res.Iterations, Err: err})
		}
		if t.res.Iterations >= l.cfg.MaxIterations {
			return l.fail(t, &LoopError{
				Kind:       LoopMaxIterations,
				Iterations: t.res.Iterations,
				Err:        errors.ErrMaxIterationsExceeded,
			})
		}
		t.res.Iterations++

		resp, err := l.generate(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return l.fail(t, &LoopError{Kind: LoopCanceled, Iterations: t.res.Iterations, Err: ctx.Err()})
			}
			return l.fail(t, &LoopError{Kind: LoopProviderFailed, Iterations: t.res.Iterations, Err: err})
		}

		if resp.Kind == KindFinalAnswer {
			t.res.Conversation.Append(AssistantMessage(resp.Text))
			t.res.FinalText = resp.Text
			if err := t.machine.to(StateDone); err != nil {
				return l.fail(t, &LoopError{Kind: LoopInternal, Err: err})
			}
			return nil
		}

		t.res.Conversation.Append(AssistantMessage(resp.Text, resp.Calls...))

		if call, repeated := t.progress.repeated(resp.Calls); repeated {
			return l.fail(t, &LoopError{
				Kind:       LoopNoProgress,
				Iterations: t.res.Iterations,
				Tool:       call.Name,
				Err:        errors.ErrNoProgress,
			})
		}
		t.progress.remember(resp.Calls)

		if err := t.machine.to(StateExecutingTools); err != nil {
			return l.fail(t, &LoopError{Kind: LoopInternal, Err: err})
		}

		for _, res := range l.executeTools(ctx, resp.Calls) {
			t.res.Conversation.Append(ToolMessage(res))
			t.res.Trace.add(Step{
				Iteration: t.res.Iterations,
				Kind:      StepToolResult,
				Result:    &res,
				Duration:  res.Duration,
			})
		}

		if err := t.machine.to(StateQueryingProvider); err != nil {
			return l.fail(t, &LoopError{Kind: LoopInternal, Err: err})
		}
	}
}

func (l *Loop) fail(t *turn, lerr *LoopError) error {
	if !t.machine.state.Terminal() {
		if err := t.machine.to(StateFailed); err != nil {
			t.log.Errorw("Cannot record failure", "error", err)
		}
	}
	return lerr
}

// generate queries the provider with retries and exponential backoff.
// Each attempt runs under its own timeout.
func (l *Loop) generate(ctx context.Context, t *turn) (Response, error) {
	schemas := l.tools.Schemas()
	var lastErr error

	for attempt := 0; attempt <= l.cfg.ProviderRetries; attempt++ {
		if attempt > 0 {
			delay := l.cfg.ProviderBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		started := time.Now()
		resp, err := l.attempt(ctx, t.res.Conversation.Clone(), schemas)
		took := time.Since(started)

		if err == nil {
			step := Step{
				Iteration: t.res.Iterations,
				Kind:      StepAnswer,
				Text:      resp.Text,
				Attempt:   attempt + 1,
				Duration:  took,
			}
			if resp.Kind == KindToolRequest {
				step.Kind = StepToolRequest
				step.Calls = resp.Calls
			}
			t.res.Trace.add(step)
			return resp, nil
		}

		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}

		lastErr = err
		t.res.Trace.add(Step{
			Iteration: t.res.Iterations,
			Kind:      StepProviderError,
			Attempt:   attempt + 1,
			Error:     err.Error(),
			Duration:  took,
		})
		t.log.Warnw("Provider attempt failed",
			"attempt", attempt+1,
			"max_attempts", l.cfg.ProviderRetries+1,
			"error", err,
		)
	}

	return Response{}, lastErr
}

func (l *Loop) attempt(ctx context.Context, conv Conversation, schemas []tools.Schema) (Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, l.cfg.ProviderTimeout)
	defer cancel()

	resp, err := l.provider.Generate(attemptCtx, conv, schemas)
	if err != nil {
		return Response{}, ClassifyProviderError(l.provider.Name(), err)
	}
	if err := resp.Validate(); err != nil {
		return Response{}, NewProviderError(ProviderMalformedResponse, l.provider.Name(), err)
	}
	return resp, nil
}

// executeTools runs every call concurrently, each under its own timeout,
// and returns the results in request order.
func (l *Loop) executeTools(ctx context.Context, calls []tools.Call) []tools.Result {
	results := make([]tools.Result, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call tools.Call) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, l.cfg.ToolTimeout)
			defer cancel()
			results[i] = l.tools.Execute(callCtx, call)
		}(i, call)
	}
	wg.Wait()

	byID := make(map[string]tools.Result, len(results))
	for _, res := range results {
		byID[res.CallID] = res
	}

	ordered := make([]tools.Result, len(calls))
	for i, call := range calls {
		res, ok := byID[call.ID]
		if !ok {
			res = results[i]
			res.CallID = call.ID
		}
		ordered[i] = res
	}
	return ordered
}
