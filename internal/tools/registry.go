package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

// Registry stores tools by name and executes calls against them.
// Registration happens at startup; lookups and executions are concurrent.
type Registry struct {
	tools map[string]Tool
	order []string
	mu    sync.RWMutex
	log   *logger.Logger
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		log:   logger.Get().With("component", "tool_registry"),
	}
}

// Register adds a tool under its schema name. A second tool with the same name is rejected.
func (r *Registry) Register(t Tool) error {
	name := t.Schema().Name
	if name == "" {
		return errors.Wrap(errors.ErrInvalidInput, "tool schema has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return errors.Wrapf(errors.ErrDuplicateToolName, "%s", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers tools and panics on a duplicate; for startup wiring.
func (r *Registry) MustRegister(ts ...Tool) {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get retrieves a tool by name if registered.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Schemas returns every registered schema in registration order.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema())
	}
	return out
}

type outcome struct {
	payload any
	err     error
}

// Execute runs one call and always produces a Result; it never returns an error.
// If ctx ends before the handler returns, the result is a Timeout failure and
// the handler is left to observe the cancellation on its own.
func (r *Registry) Execute(ctx context.Context, call Call) Result {
	start := time.Now()

	t, ok := r.Get(call.Name)
	if !ok {
		r.log.Warnw("Unknown tool requested", "tool", call.Name, "call_id", call.ID)
		return failed(call, FailureUnknownTool, errors.CodeUnknownTool,
			fmt.Sprintf("no tool named %q; available: %v", call.Name, r.Names()), time.Since(start))
	}

	args, err := Validate(t.Schema(), call.Arguments)
	if err != nil {
		r.log.Debugw("Tool arguments rejected", "tool", call.Name, "call_id", call.ID, "error", err)
		return failed(call, FailureInvalidArguments, errors.CodeInvalidArguments, err.Error(), time.Since(start))
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Errorw("Tool panicked", "tool", call.Name, "call_id", call.ID, "panic", rec)
				done <- outcome{err: errors.NewDomainError(errors.CodeInternal, fmt.Sprintf("tool panicked: %v", rec), errors.ErrInternal)}
			}
		}()
		payload, err := t.Execute(ctx, args)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		took := time.Since(start)
		if out.err != nil {
			kind := FailureExecution
			if errors.Is(out.err, errors.ErrInvalidArguments) {
				kind = FailureInvalidArguments
			}
			r.log.Debugw("Tool failed", "tool", call.Name, "call_id", call.ID, "reason", errors.Code(out.err), "error", out.err)
			return failed(call, kind, errors.Code(out.err), out.err.Error(), took)
		}
		return Result{
			CallID:   call.ID,
			ToolName: call.Name,
			Status:   StatusSuccess,
			Payload:  out.payload,
			Duration: took,
		}

	case <-ctx.Done():
		reason := errors.CodeTimeout
		if errors.Is(ctx.Err(), context.Canceled) {
			reason = errors.CodeCanceled
		}
		r.log.Warnw("Tool did not finish in time", "tool", call.Name, "call_id", call.ID, "reason", reason)
		return failed(call, FailureExecution, reason, fmt.Sprintf("tool %s: %v", call.Name, ctx.Err()), time.Since(start))
	}
}
