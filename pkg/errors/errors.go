package errors

import (
	"context"
	"errors"
	"fmt"
)

// General errors

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a dependency is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrExternal indicates an upstream API rejected the request
	ErrExternal = errors.New("external service error")

	// ErrNotImplemented indicates a capability the backend does not offer
	ErrNotImplemented = errors.New("not implemented")

	// ErrRateLimitExceeded indicates a local or upstream rate limit was hit
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Strategy engine errors

var (
	// ErrInsufficientData indicates too few samples for a statistic
	ErrInsufficientData = errors.New("insufficient data")
)

// Tool errors. Always converted into failed tool results, never surfaced to the loop.

var (
	// ErrUnknownTool indicates a call for a tool that is not registered
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments indicates call arguments do not match the tool schema
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrDuplicateToolName indicates a second registration under an existing name
	ErrDuplicateToolName = errors.New("duplicate tool name")

	// ErrExecutionFailure indicates the tool handler itself failed
	ErrExecutionFailure = errors.New("tool execution failed")
)

// Provider errors. Retried within bounds by the reasoning loop.

var (
	// ErrProviderTimeout indicates the model backend did not answer in time
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrProviderUnreachable indicates the model backend could not be reached
	ErrProviderUnreachable = errors.New("provider unreachable")

	// ErrMalformedResponse indicates the model backend answered with an unusable payload
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Reasoning loop errors. Terminal for the turn.

var (
	// ErrMaxIterationsExceeded indicates the loop hit its cycle cap without an answer
	ErrMaxIterationsExceeded = errors.New("max iterations exceeded")

	// ErrNoProgress indicates the model repeated an identical tool request
	ErrNoProgress = errors.New("no progress")

	// ErrCanceled indicates the caller canceled the turn
	ErrCanceled = errors.New("turn canceled")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Unwrap exposes every collected error to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Reason codes reported to the model and to API clients.
const (
	CodeNotFound          = "NotFound"
	CodeAlreadyExists     = "AlreadyExists"
	CodeInvalidInput      = "InvalidInput"
	CodeInternal          = "Internal"
	CodeTimeout           = "Timeout"
	CodeUnavailable       = "Unavailable"
	CodeExternal          = "External"
	CodeNotImplemented    = "NotImplemented"
	CodeRateLimited       = "RateLimited"
	CodeInsufficientData  = "InsufficientData"
	CodeUnknownTool       = "UnknownTool"
	CodeInvalidArguments  = "InvalidArguments"
	CodeDuplicateToolName = "DuplicateToolName"
	CodeExecutionFailure  = "ExecutionFailure"
	CodeProviderTimeout   = "ProviderTimeout"
	CodeUnreachable       = "Unreachable"
	CodeMalformedResponse = "MalformedResponse"
	CodeMaxIterations     = "MaxIterationsExceeded"
	CodeNoProgress        = "NoProgress"
	CodeCanceled          = "Canceled"
)

// Ordered so the most specific sentinel wins when a chain carries several.
var codeTable = []struct {
	target error
	code   string
}{
	{ErrInsufficientData, CodeInsufficientData},
	{ErrUnknownTool, CodeUnknownTool},
	{ErrInvalidArguments, CodeInvalidArguments},
	{ErrDuplicateToolName, CodeDuplicateToolName},
	{ErrProviderTimeout, CodeProviderTimeout},
	{ErrProviderUnreachable, CodeUnreachable},
	{ErrMalformedResponse, CodeMalformedResponse},
	{ErrMaxIterationsExceeded, CodeMaxIterations},
	{ErrNoProgress, CodeNoProgress},
	{ErrCanceled, CodeCanceled},
	{ErrNotFound, CodeNotFound},
	{ErrAlreadyExists, CodeAlreadyExists},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrRateLimitExceeded, CodeRateLimited},
	{ErrUnavailable, CodeUnavailable},
	{ErrTimeout, CodeTimeout},
	{context.DeadlineExceeded, CodeTimeout},
	{context.Canceled, CodeCanceled},
	{ErrExternal, CodeExternal},
	{ErrNotImplemented, CodeNotImplemented},
	{ErrExecutionFailure, CodeExecutionFailure},
	{ErrInternal, CodeInternal},
}

// Code returns a stable reason code for err.
// A DomainError in the chain takes precedence over sentinel matching.
func Code(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code
	}

	for _, entry := range codeTable {
		if errors.Is(err, entry.target) {
			return entry.code
		}
	}

	return CodeInternal
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines errors, dropping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
