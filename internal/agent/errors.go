package agent

import (
	"fmt"

	"dcaadvisor/pkg/errors"
)

// LoopErrorKind names why a turn ended in Failed
type LoopErrorKind string

const (
	LoopMaxIterations  LoopErrorKind = "MaxIterationsExceeded"
	LoopNoProgress     LoopErrorKind = "NoProgress"
	LoopProviderFailed LoopErrorKind = "ProviderFailed"
	LoopCanceled       LoopErrorKind = "Canceled"
	LoopInternal       LoopErrorKind = "Internal"
)

// LoopError is the terminal error of a turn. The partial TurnResult is
// returned alongside it.
type LoopError struct {
	Kind       LoopErrorKind
	Iterations int
	Tool       string // repeated tool for NoProgress
	Err        error
}

func (e *LoopError) Error() string {
	switch e.Kind {
	case LoopMaxIterations:
		return fmt.Sprintf("agent loop: no answer after %d iterations", e.Iterations)
	case LoopNoProgress:
		return fmt.Sprintf("agent loop: %s requested again with identical arguments", e.Tool)
	}
	if e.Err != nil {
		return fmt.Sprintf("agent loop: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("agent loop: %s", e.Kind)
}

// Unwrap exposes the kind sentinel and the cause
func (e *LoopError) Unwrap() []error {
	var sentinel error
	switch e.Kind {
	case LoopMaxIterations:
		sentinel = errors.ErrMaxIterationsExceeded
	case LoopNoProgress:
		sentinel = errors.ErrNoProgress
	case LoopCanceled:
		sentinel = errors.ErrCanceled
	case LoopInternal:
		sentinel = errors.ErrInternal
	}

	out := make([]error, 0, 2)
	if sentinel != nil {
		out = append(out, sentinel)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// UserMessage is the text shown to an end user instead of the raw error
func (e *LoopError) UserMessage() string {
	switch e.Kind {
	case LoopMaxIterations:
		return "The request took too long to process. Please try a simpler query."
	case LoopNoProgress:
		return "I kept repeating the same lookup without getting further. Please rephrase or narrow the question."
	case LoopCanceled:
		return "The request was canceled."
	case LoopProviderFailed:
		var pe *ProviderError
		if errors.As(e.Err, &pe) && pe.Kind == ProviderMalformedResponse {
			return "The AI service returned a response I could not understand. Please try again."
		}
		return "The AI service is currently unavailable. Please try again."
	default:
		return "An unexpected error occurred."
	}
}

// Reason returns a stable code for metrics and events
func (e *LoopError) Reason() string {
	if e.Kind == LoopProviderFailed {
		return errors.Code(e.Err)
	}
	return string(e.Kind)
}
