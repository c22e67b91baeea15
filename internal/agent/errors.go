package agent

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable matches any failed or timed out model call.
var ErrModelUnavailable = errors.New("model unavailable")

// DirectiveParseError reports a directive whose arguments are not a JSON
// object. The directive is skipped; the rest of the turn proceeds.
type DirectiveParseError struct {
	Tool string
	Raw  string
	Err  error
}

func (e *DirectiveParseError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %v", e.Tool, e.Err)
}

func (e *DirectiveParseError) Unwrap() error { return e.Err }

// ToolExecutionError reports a tool call that failed in transport, argument
// validation or on timeout.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ModelError aborts a query. It matches ErrModelUnavailable and the
// underlying cause.
type ModelError struct {
	Iteration int
	Err       error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call failed on iteration %d: %v", e.Iteration, e.Err)
}

func (e *ModelError) Unwrap() []error { return []error{ErrModelUnavailable, e.Err} }
