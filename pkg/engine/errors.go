package engine

import (
	"errors"
	"fmt"

	"github.com/vango-dev/teddy/pkg/node"
)

var (
	// ErrInvalidVariable is wrapped by every InvalidVariableError.
	ErrInvalidVariable = errors.New("engine: invalid variable")

	// ErrNoMatch is returned when a write goes through a filter step that
	// matches no element.
	ErrNoMatch = errors.New("engine: filter matched nothing")

	// ErrNotContainer is returned when a write needs to descend through a
	// scalar value.
	ErrNotContainer = node.ErrNotContainer

	// ErrNotArray is returned when push, unshift or insert targets a value
	// that is not an array.
	ErrNotArray = node.ErrNotArray
)

// InvalidVariableError reports a placeholder that did not resolve to a string
// or number.
type InvalidVariableError struct {
	Variable string
	Value    any
	Missing  bool
}

func (e *InvalidVariableError) Error() string {
	if e.Missing {
		return fmt.Sprintf("engine: variable {%s} is not defined", e.Variable)
	}
	return fmt.Sprintf("engine: variable {%s} resolved to %T, want string or number", e.Variable, e.Value)
}

// Unwrap returns ErrInvalidVariable.
func (e *InvalidVariableError) Unwrap() error {
	return ErrInvalidVariable
}

// OpError records the operation and path that failed.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("engine: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
