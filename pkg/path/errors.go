package path

import (
	"errors"
	"fmt"
)

// ErrSyntax is the sentinel wrapped by every ParseError.
var ErrSyntax = errors.New("path: syntax error")

// ParseError reports structurally malformed path syntax.
type ParseError struct {
	Path   string
	Offset int
	Reason string
}

func newParseError(full string, offset int, reason string) *ParseError {
	return &ParseError{Path: full, Offset: offset, Reason: reason}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("path: %s at offset %d in %q", e.Reason, e.Offset, e.Path)
}

// Unwrap returns ErrSyntax.
func (e *ParseError) Unwrap() error {
	return ErrSyntax
}
