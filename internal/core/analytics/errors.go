package analytics

import (
	"errors"
	"fmt"
)

// InvalidSpecError reports a query specification rejected at compile
// time. Specs that fail this way never reach the store.
type InvalidSpecError struct {
	Reason string
}

func (e *InvalidSpecError) Error() string {
	return "invalid query spec: " + e.Reason
}

func invalidSpecf(format string, args ...interface{}) *InvalidSpecError {
	return &InvalidSpecError{Reason: fmt.Sprintf(format, args...)}
}

// IsInvalidSpec reports whether err is an InvalidSpecError.
func IsInvalidSpec(err error) bool {
	var target *InvalidSpecError
	return errors.As(err, &target)
}

// ExecutionError reports a store-level failure: unreachable store,
// timeout, or a rejected pipeline. Execution is all-or-nothing, so an
// ExecutionError means no partial results were produced.
type ExecutionError struct {
	Collection string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("aggregation on %q failed: %v", e.Collection, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionError reports whether err is an ExecutionError.
func IsExecutionError(err error) bool {
	var target *ExecutionError
	return errors.As(err, &target)
}
