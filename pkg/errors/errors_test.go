package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain sentinel", err: ErrUnavailable, want: CodeUnavailable},
		{name: "wrapped sentinel", err: Wrap(ErrNotFound, "quote BTC"), want: CodeNotFound},
		{name: "deadline", err: fmt.Errorf("fetch: %w", context.DeadlineExceeded), want: CodeTimeout},
		{name: "insufficient data beats invalid input", err: Join(ErrInvalidInput, ErrInsufficientData), want: CodeInsufficientData},
		{name: "domain error code", err: NewDomainError("Custom", "boom", ErrInternal), want: "Custom"},
		{name: "unknown error", err: New("something odd"), want: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestMultiError(t *testing.T) {
	var multi MultiError
	assert.NoError(t, multi.ToError())

	multi.Add(nil)
	multi.Add(NewValidationError("amount", "must be positive", -5))
	multi.Add(Wrap(ErrInvalidArguments, "risk_level"))

	err := multi.ToError()
	assert.Error(t, err)
	assert.True(t, Is(err, ErrInvalidArguments))

	var validation *ValidationError
	assert.True(t, As(err, &validation))
	assert.Equal(t, "amount", validation.Field)
	assert.Contains(t, err.Error(), "multiple errors (2)")
}
