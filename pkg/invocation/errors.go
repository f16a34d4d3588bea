package invocation

import (
	"errors"
	"fmt"
)

// Kind classifies why an invocation failed.
type Kind string

const (
	// KindResolution: the provider or operation name did not resolve.
	KindResolution Kind = "resolution"
	// KindArgument: the operation rejected the supplied params.
	KindArgument Kind = "argument"
	// KindExecution: client construction or the operation itself failed.
	KindExecution Kind = "execution"
)

// Error is an invocation failure. Error() returns the underlying message unchanged so the stored
// outcome carries exactly what the provider reported.
type Error struct {
	Kind      Kind
	Provider  string
	Operation string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewResolutionError reports an unknown provider or operation.
func NewResolutionError(provider, operation, format string, args ...interface{}) *Error {
	return &Error{Kind: KindResolution, Provider: provider, Operation: operation, Err: fmt.Errorf(format, args...)}
}

// NewArgumentError wraps a params decoding failure.
func NewArgumentError(provider, operation string, err error) *Error {
	return &Error{
		Kind:      KindArgument,
		Provider:  provider,
		Operation: operation,
		Err:       fmt.Errorf("invalid params for %s.%s: %w", provider, operation, err),
	}
}

// NewExecutionError wraps a failure raised while constructing the client or running the operation.
func NewExecutionError(provider, operation string, err error) *Error {
	return &Error{Kind: KindExecution, Provider: provider, Operation: operation, Err: err}
}

// AsError unwraps err to an *Error.
func AsError(err error) (*Error, bool) {
	var invErr *Error
	if errors.As(err, &invErr) {
		return invErr, true
	}
	return nil, false
}

// IsKind reports whether err is an invocation error of the given kind.
func IsKind(err error, kind Kind) bool {
	invErr, ok := AsError(err)
	return ok && invErr.Kind == kind
}
