package teddy

import "context"

// Operation describes one store operation passed through middleware.
type Operation struct {
	// Context is the context supplied with WithContext, or Background.
	Context context.Context

	// Kind is the operation name: get, has, set, remove, push, unshift,
	// insert, run or resolve.
	Kind string

	Store Definition

	// Path is the path operated on, or the action or getter name for run
	// and resolve.
	Path string
}

// Middleware wraps store operations. It must call next exactly once and
// return its error, optionally decorated.
//
// Example:
//
//	logOps := func(op teddy.Operation, next func() error) error {
//	    err := next()
//	    slog.Debug("teddy op", "kind", op.Kind, "path", op.Path, "error", err)
//	    return err
//	}
type Middleware func(op Operation, next func() error) error

func (t *Teddy) invoke(op Operation, fn func() error) error {
	if t.closed {
		return ErrClosed
	}
	if len(t.middleware) == 0 {
		return fn()
	}
	next := fn
	for i := len(t.middleware) - 1; i >= 0; i-- {
		mw, inner := t.middleware[i], next
		next = func() error {
			return mw(op, inner)
		}
	}
	return next()
}
