package teddy

import (
	"context"
	"log/slog"

	"github.com/vango-dev/teddy/pkg/engine"
	"github.com/vango-dev/teddy/pkg/reactive"
)

// DefaultGetterCacheSize is the number of argument combinations a
// parameterized getter keeps memoized.
const DefaultGetterCacheSize = 64

// Option configures a Teddy.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	middleware      []Middleware
	getterCacheSize int
	maxFlushRounds  int
	engine          *engine.Engine
}

// WithLogger sets the structured logger. If nil, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMiddleware appends middleware around every store operation. The first
// middleware given is the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithGetterCacheSize bounds the memoized argument combinations kept per
// parameterized getter. Zero keeps every combination.
//
// Example:
//
//	t := teddy.New(teddy.WithGetterCacheSize(256))
func WithGetterCacheSize(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.getterCacheSize = n
		}
	}
}

// WithMaxFlushRounds bounds how many rounds Flush runs before reporting
// reactive.ErrFlushLoop.
func WithMaxFlushRounds(n int) Option {
	return func(o *options) {
		o.maxFlushRounds = n
	}
}

// WithEngine replaces the path engine, e.g. to share a parse cache.
func WithEngine(e *engine.Engine) Option {
	return func(o *options) {
		o.engine = e
	}
}

// AccessOption configures a single path operation.
type AccessOption func(*access)

type access struct {
	ctx      context.Context
	vars     any
	fallback any
	index    *int
}

func newAccess(opts []AccessOption) access {
	a := access{ctx: context.Background()}
	for _, opt := range opts {
		if opt != nil {
			opt(&a)
		}
	}
	return a
}

// WithVars supplies the value {placeholders} in the path are resolved
// against. Placeholders never read from the store's state.
//
// Example:
//
//	t.Get(def, "pages.{index}.title", teddy.WithVars(map[string]any{"index": 0}))
func WithVars(vars any) AccessOption {
	return func(a *access) {
		a.vars = vars
	}
}

// WithFallback sets the value Get returns when the path cannot be reached.
func WithFallback(v any) AccessOption {
	return func(a *access) {
		a.fallback = v
	}
}

// AtIndex sets the position used by Insert.
func AtIndex(i int) AccessOption {
	return func(a *access) {
		a.index = &i
	}
}

// WithContext attaches ctx to the operation for middleware.
func WithContext(ctx context.Context) AccessOption {
	return func(a *access) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

func (o *options) runtime() *reactive.Runtime {
	return reactive.NewRuntime(
		reactive.WithLogger(o.logger),
		reactive.WithMaxFlushRounds(o.maxFlushRounds),
	)
}
