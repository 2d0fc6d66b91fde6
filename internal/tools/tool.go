package tools

import (
	"context"

	"dcaadvisor/pkg/errors"
)

// Tool represents a callable capability exposed to the reasoning loop.
type Tool interface {
	// Schema returns the tool's name, description and parameters.
	Schema() Schema
	// Execute performs the tool's action using validated arguments.
	Execute(ctx context.Context, args Args) (any, error)
}

// HandlerFunc is the function signature for tool handlers.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// FunctionTool is a Tool backed by a handler function.
type FunctionTool struct {
	schema  Schema
	handler HandlerFunc
}

// New creates a new function-backed Tool.
func New(schema Schema, handler HandlerFunc) Tool {
	return &FunctionTool{
		schema:  schema,
		handler: handler,
	}
}

func (t *FunctionTool) Schema() Schema { return t.schema }

// Execute runs the underlying handler.
func (t *FunctionTool) Execute(ctx context.Context, args Args) (any, error) {
	if t.handler == nil {
		return nil, errors.Wrapf(errors.ErrNotImplemented, "tool %s has no handler", t.schema.Name)
	}
	return t.handler(ctx, args)
}
