// Package teddy is a path-addressable reactive state container.
//
// A Teddy holds named stores grouped into spaces. Each store owns a reactive
// state tree plus getters, actions and watchers. Values inside the tree are
// read and written with string paths:
//
//	t := teddy.New()
//	def := teddy.Def("shop", "cart")
//	t.SetStore(def, teddy.Config{State: map[string]any{
//	    "products": []any{map[string]any{"name": "berries"}},
//	}})
//	t.Push(def, "products", map[string]any{"name": "honey"})
//	t.Get(def, "products.1.name") // "honey"
//
// Paths support numeric indices ("a.0"), filters ("products[name=honey]" or
// "products.name=honey"), wildcards ("products.*.name" or "products..name"),
// forced object keys ("a.^0") and {placeholders} resolved against the vars
// given with WithVars.
//
// # Threading
//
// A Teddy is driven from one goroutine at a time. Watchers run when Flush is
// called or when the outermost Batch returns, once per watcher no matter how
// many mutations happened in between. Code running on other goroutines (HTTP
// handlers, timers, network peers) must go through Exclusive.
package teddy

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/vango-dev/teddy/pkg/engine"
	"github.com/vango-dev/teddy/pkg/reactive"
)

// Teddy is a store registry and the entry point of every operation.
type Teddy struct {
	mu sync.Mutex

	rt     *reactive.Runtime
	engine *engine.Engine
	spaces map[string]map[string]*Store

	logger          *slog.Logger
	middleware      []Middleware
	getterCacheSize int
	ownsEngine      bool
	closed          bool
}

// New creates an empty registry.
func New(opts ...Option) *Teddy {
	o := options{getterCacheSize: DefaultGetterCacheSize}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	t := &Teddy{
		rt:              o.runtime(),
		engine:          o.engine,
		spaces:          make(map[string]map[string]*Store),
		logger:          o.logger,
		middleware:      o.middleware,
		getterCacheSize: o.getterCacheSize,
	}
	if t.engine == nil {
		t.engine = engine.New()
		t.ownsEngine = true
	}
	return t
}

var (
	defaultOnce sync.Once
	defaultT    *Teddy
)

// Default returns a process-wide Teddy created on first use.
func Default() *Teddy {
	defaultOnce.Do(func() {
		defaultT = New()
	})
	return defaultT
}

// Runtime returns the reactive runtime every store of t belongs to.
func (t *Teddy) Runtime() *reactive.Runtime {
	return t.rt
}

// Engine returns the path engine.
func (t *Teddy) Engine() *engine.Engine {
	return t.engine
}

// Logger returns the logger t reports through.
func (t *Teddy) Logger() *slog.Logger {
	return t.logger
}

// Flush runs every watcher whose sources changed since the last flush.
func (t *Teddy) Flush() error {
	return t.rt.Flush()
}

// Batch runs fn and flushes once the outermost batch returns.
func (t *Teddy) Batch(fn func()) error {
	return t.rt.Batch(fn)
}

// Exclusive runs fn as a batch while holding t's lock. Callers on goroutines
// other than the owning one use it to serialise access. Exclusive must not be
// called from inside a watcher handler or another Exclusive.
func (t *Teddy) Exclusive(fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rt.Batch(fn)
}

// Stores returns the definitions of every registered store, sorted.
func (t *Teddy) Stores() []Definition {
	var defs []Definition
	for space, names := range t.spaces {
		for name := range names {
			defs = append(defs, Definition{Space: space, Name: name})
		}
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Space != defs[j].Space {
			return defs[i].Space < defs[j].Space
		}
		return defs[i].Name < defs[j].Name
	})
	return defs
}

// Close stops every watcher, uninstalls every feature and empties the
// registry. Afterwards store operations fail with ErrClosed and GetStore
// hands out detached stores. Close is idempotent.
func (t *Teddy) Close() error {
	if t.closed {
		return nil
	}
	for _, def := range t.Stores() {
		t.RemoveStore(def)
	}
	t.closed = true
	if t.ownsEngine {
		t.engine.Close()
	}
	return nil
}
