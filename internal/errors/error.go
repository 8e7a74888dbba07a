package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/vango-dev/teddy/pkg/engine"
	"github.com/vango-dev/teddy/pkg/path"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryInput   Category = "input"
	CategoryPath    Category = "path"
	CategoryState   Category = "state"
	CategoryStorage Category = "storage"
	CategoryCLI     Category = "cli"
)

// Error is a structured error with a code, an explanation and a fix hint.
type Error struct {
	// Code is a unique error identifier (e.g., "T120").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Input is the text the error points into, such as a path.
	Input string

	// Column is the 1-based position in Input, or 0 for none.
	Column int

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	if e.Code != "" {
		return e.Code + ": " + msg
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithDetail adds a detailed explanation to the error.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithInput points the error at column of input.
func (e *Error) WithInput(input string, column int) *Error {
	e.Input = input
	e.Column = column
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// New creates an Error from a registered code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{Code: code, Message: "Unknown error"}
	}
	return &Error{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates an Error with a formatted message and no code.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError translates err into an Error. Library errors get their own
// codes; anything else is wrapped under code.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}

	var pe *path.ParseError
	if stderrors.As(err, &pe) {
		return New("T120").
			WithDetail("The path could not be parsed: " + pe.Reason + ".").
			WithInput(pe.Path, pe.Offset+1).
			Wrap(err)
	}
	var ve *engine.InvalidVariableError
	if stderrors.As(err, &ve) {
		out := New("T121").Wrap(err)
		if ve.Missing {
			out.Detail = fmt.Sprintf("The placeholder {%s} has no value in --vars.", ve.Variable)
		} else {
			out.Detail = fmt.Sprintf("The placeholder {%s} resolved to %T.", ve.Variable, ve.Value)
		}
		return out
	}
	switch {
	case stderrors.Is(err, engine.ErrNotContainer):
		return New("T122").Wrap(err)
	case stderrors.Is(err, engine.ErrNotArray):
		return New("T123").Wrap(err)
	case stderrors.Is(err, engine.ErrNoMatch):
		return New("T124").Wrap(err)
	}
	return New(code).Wrap(err)
}
