package fieldwise

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAllowedValues is returned when a choice-like field type is
	// resolved without a non-empty allowed-value set. This is a caller
	// configuration error, raised before any model call.
	ErrMissingAllowedValues = errors.New("fieldwise: no allowed values provided")

	// ErrMalformedResponse is returned when the model's response body is
	// empty or cannot be parsed as the expected JSON envelope.
	ErrMalformedResponse = errors.New("fieldwise: could not process model response")

	// ErrUnknownTool is returned when the model requests a tool that is not
	// present in the registry for this agent turn.
	ErrUnknownTool = errors.New("fieldwise: unknown tool")

	// ErrInteractiveAction is returned when a code action yields an
	// interactive outcome while running in an automated context.
	ErrInteractiveAction = errors.New("fieldwise: interactive action in automated context")
)

// TransportError reports a timeout or connection failure on the model call.
// It is surfaced to the user as-is; no automatic retry is attempted.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fieldwise: model call failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UnresolvedError is the expected outcome when the model explicitly reports
// it could not resolve the query. Cause carries the model-supplied reason.
// Callers may leave the field blank instead of surfacing this as a failure.
type UnresolvedError struct {
	Cause string
}

func (e *UnresolvedError) Error() string {
	if e.Cause == "" {
		return "fieldwise: query could not be resolved"
	}
	return "fieldwise: query could not be resolved: " + e.Cause
}

// IsUnresolved reports whether err is an UnresolvedError.
func IsUnresolved(err error) bool {
	var ue *UnresolvedError
	return errors.As(err, &ue)
}

// RetrySignal marks a serialization conflict from the storage layer. It must
// pass through every tool-execution layer untouched so the caller's
// transaction-retry machinery can re-run the whole operation.
type RetrySignal struct {
	Err error
}

func (e *RetrySignal) Error() string {
	return fmt.Sprintf("fieldwise: transaction must be retried: %v", e.Err)
}

func (e *RetrySignal) Unwrap() error {
	return e.Err
}

// IsRetrySignal reports whether err carries a RetrySignal anywhere in its
// chain.
func IsRetrySignal(err error) bool {
	var rs *RetrySignal
	return errors.As(err, &rs)
}
