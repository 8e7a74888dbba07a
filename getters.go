package teddy

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vango-dev/teddy/pkg/reactive"
)

// GetterDef describes a derived value of a store. Build one with Getter,
// ParamGetter, WritableGetter or ExprGetter.
type GetterDef struct {
	get   func(s *Store, args []any) any
	set   func(s *Store, v any) error
	param bool
}

// Getter derives a value from the store. The result is cached until a value
// it read changes.
//
// Example:
//
//	"count": teddy.Getter(func(s *teddy.Store) any {
//	    return s.Get("products.length")
//	}),
func Getter(fn func(s *Store) any) GetterDef {
	return GetterDef{get: func(s *Store, _ []any) any { return fn(s) }}
}

// ParamGetter derives a value from the store and call arguments. Each
// distinct argument list gets its own cached derivation, keyed by the JSON
// encoding of the arguments.
func ParamGetter(fn func(s *Store, args ...any) any) GetterDef {
	return GetterDef{
		get:   func(s *Store, args []any) any { return fn(s, args...) },
		param: true,
	}
}

// WritableGetter is a Getter whose computed value can be set.
func WritableGetter(get func(s *Store) any, set func(s *Store, v any) error) GetterDef {
	return GetterDef{
		get: func(s *Store, _ []any) any { return get(s) },
		set: set,
	}
}

type getter struct {
	name  string
	def   GetterDef
	store *Store

	computed *reactive.Computed
	memo     *memo
}

func (s *Store) newGetter(name string, def GetterDef) *getter {
	g := &getter{name: name, def: def, store: s}
	if def.param {
		g.memo = newMemo(s.t.getterCacheSize)
		return g
	}
	var set func(any) error
	if def.set != nil {
		set = func(v any) error { return def.set(s, v) }
	}
	g.computed = s.t.rt.Computed(func() any { return def.get(s, nil) }, set)
	return g
}

func (g *getter) derivation(args []any) *reactive.Computed {
	if !g.def.param {
		return g.computed
	}
	key := argsKey(args)
	return g.memo.get(key, func() *reactive.Computed {
		frozen := append([]any(nil), args...)
		return g.store.t.rt.Computed(func() any { return g.def.get(g.store, frozen) }, nil)
	})
}

func (g *getter) dispose() {
	if g.computed != nil {
		g.computed.Dispose()
	}
	if g.memo != nil {
		g.memo.clear()
	}
}

func argsKey(args []any) string {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%#v", args)
	}
	return string(b)
}

// SetGetters merges getters into the store, replacing getters of the same
// name.
func (s *Store) SetGetters(getters map[string]GetterDef) {
	for name, def := range getters {
		if def.get == nil {
			continue
		}
		if old, ok := s.getters[name]; ok {
			old.dispose()
		}
		s.getters[name] = s.newGetter(name, def)
	}
}

// Getters returns the registered getter names, sorted.
func (s *Store) Getters() []string {
	names := make([]string, 0, len(s.getters))
	for name := range s.getters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Computed returns the derivation behind a getter. Parameterized getters
// return the memoized derivation for args.
func (s *Store) Computed(name string, args ...any) (*reactive.Computed, error) {
	g, ok := s.getters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGetter, name)
	}
	return g.derivation(args), nil
}

// Eval returns the value of a getter. Panics raised by the getter are
// returned as errors.
func (s *Store) Eval(name string, args ...any) (v any, err error) {
	c, err := s.Computed(name, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = &PanicError{Value: r}
			}
		}
	}()
	return c.Value(), nil
}

// ResolveContext returns the value of a getter through middleware.
func (s *Store) ResolveContext(ctx context.Context, name string, args ...any) (any, error) {
	var out any
	op := Operation{Context: ctx, Kind: "resolve", Store: s.def, Path: name}
	err := s.t.invoke(op, func() error {
		v, err := s.Eval(name, args...)
		out = v
		return err
	})
	return out, err
}

// Resolve returns the value of a getter. Errors and panics are logged and
// yield nil.
func (s *Store) Resolve(name string, args ...any) any {
	v, err := s.ResolveContext(context.Background(), name, args...)
	if err != nil {
		s.t.logger.Error("teddy: getter failed",
			"space", s.def.Space, "name", s.def.Name, "getter", name, "error", err)
		return nil
	}
	return v
}

// Resolve is GetStore(def).Resolve.
func (t *Teddy) Resolve(def Definition, name string, args ...any) any {
	return t.GetStore(def).Resolve(name, args...)
}

// =============================================================================
// Memo
// =============================================================================

// memo is a least-recently-used set of derivations. A size of zero never
// evicts. Evicted derivations are disposed.
type memo struct {
	size  int
	ll    *list.List
	items map[string]*list.Element
}

type memoEntry struct {
	key string
	c   *reactive.Computed
}

func newMemo(size int) *memo {
	return &memo{
		size:  size,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

func (m *memo) get(key string, create func() *reactive.Computed) *reactive.Computed {
	if el, ok := m.items[key]; ok {
		m.ll.MoveToFront(el)
		return el.Value.(*memoEntry).c
	}
	c := create()
	m.items[key] = m.ll.PushFront(&memoEntry{key: key, c: c})
	if m.size > 0 && m.ll.Len() > m.size {
		oldest := m.ll.Back()
		m.ll.Remove(oldest)
		e := oldest.Value.(*memoEntry)
		delete(m.items, e.key)
		e.c.Dispose()
	}
	return c
}

func (m *memo) len() int {
	return m.ll.Len()
}

func (m *memo) clear() {
	for _, el := range m.items {
		el.Value.(*memoEntry).c.Dispose()
	}
	m.ll.Init()
	m.items = make(map[string]*list.Element)
}
