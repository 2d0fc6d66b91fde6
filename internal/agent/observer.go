package agent

import (
	"context"
)

// Observer is told about every finished turn, successful or not.
// Observers run synchronously after the turn and must not block for long.
type Observer interface {
	TurnFinished(ctx context.Context, res *TurnResult, err error)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, res *TurnResult, err error)

func (f ObserverFunc) TurnFinished(ctx context.Context, res *TurnResult, err error) {
	f(ctx, res, err)
}
