package teddy

import (
	"fmt"

	"github.com/vango-dev/teddy/pkg/path"
	"github.com/vango-dev/teddy/pkg/reactive"
)

// statePrefix is accepted, and ignored, in front of any store path.
const statePrefix = "_state"

func (s *Store) parse(raw string) (*path.Path, error) {
	p, err := s.t.engine.Parse(raw)
	if err != nil {
		return nil, err
	}
	return p.TrimKey(statePrefix), nil
}

func (s *Store) op(a access, kind, raw string) Operation {
	return Operation{Context: a.ctx, Kind: kind, Store: s.def, Path: raw}
}

// Get returns the value at raw, dereferenced. Unreachable paths, malformed
// paths and unresolvable variables return the WithFallback value (nil by
// default).
func (s *Store) Get(raw string, opts ...AccessOption) any {
	a := newAccess(opts)
	out := a.fallback
	_ = s.t.invoke(s.op(a, "get", raw), func() error {
		p, err := s.parse(raw)
		if err != nil {
			return nil
		}
		if v, ok := s.t.engine.Lookup(s.state, p, a.vars); ok {
			out = v
		}
		return nil
	})
	return out
}

// Has reports whether every step of raw resolves. It never mutates.
func (s *Store) Has(raw string, opts ...AccessOption) bool {
	a := newAccess(opts)
	var found bool
	_ = s.t.invoke(s.op(a, "has", raw), func() error {
		p, err := s.parse(raw)
		if err != nil {
			return nil
		}
		found = s.t.engine.HasPath(s.state, p, a.vars)
		return nil
	})
	return found
}

// Set writes value at raw, creating missing intermediate containers. An
// empty path replaces the state; when both old and new state are objects the
// new keys are merged into the existing object.
func (s *Store) Set(raw string, value any, opts ...AccessOption) error {
	a := newAccess(opts)
	return s.t.invoke(s.op(a, "set", raw), func() error {
		p, err := s.parse(raw)
		if err != nil {
			return fmt.Errorf("teddy: set %q: %w", raw, err)
		}
		if err := s.t.engine.SetPath(s.state, p, value, a.vars); err != nil {
			return fmt.Errorf("teddy: set %q: %w", raw, err)
		}
		return nil
	})
}

// Remove deletes the value at raw. Array elements are spliced out, object
// keys deleted. It reports whether anything was removed.
func (s *Store) Remove(raw string, opts ...AccessOption) (bool, error) {
	a := newAccess(opts)
	var removed bool
	err := s.t.invoke(s.op(a, "remove", raw), func() error {
		p, err := s.parse(raw)
		if err != nil {
			return fmt.Errorf("teddy: remove %q: %w", raw, err)
		}
		removed, err = s.t.engine.RemovePath(s.state, p, a.vars)
		if err != nil {
			return fmt.Errorf("teddy: remove %q: %w", raw, err)
		}
		return nil
	})
	return removed, err
}

// Push appends value to the array at raw, creating the array when absent,
// and returns the stored element.
func (s *Store) Push(raw string, value any, opts ...AccessOption) (any, error) {
	return s.arrayOp("push", raw, opts, func(p *path.Path, a access) (any, error) {
		return s.t.engine.PushPath(s.state, p, value, a.vars)
	})
}

// Unshift prepends value to the array at raw and returns the array.
func (s *Store) Unshift(raw string, value any, opts ...AccessOption) (any, error) {
	return s.arrayOp("unshift", raw, opts, func(p *path.Path, a access) (any, error) {
		return s.t.engine.UnshiftPath(s.state, p, value, a.vars)
	})
}

// Insert places value into the array at raw and returns the array. The
// position comes from AtIndex, else from a trailing numeric step of raw;
// without either the value is appended.
func (s *Store) Insert(raw string, value any, opts ...AccessOption) (any, error) {
	return s.arrayOp("insert", raw, opts, func(p *path.Path, a access) (any, error) {
		return s.t.engine.InsertPath(s.state, p, value, a.vars, a.index)
	})
}

func (s *Store) arrayOp(kind, raw string, opts []AccessOption, fn func(*path.Path, access) (any, error)) (any, error) {
	a := newAccess(opts)
	var out any
	err := s.t.invoke(s.op(a, kind, raw), func() error {
		p, err := s.parse(raw)
		if err == nil {
			out, err = fn(p, a)
		}
		if err != nil {
			return fmt.Errorf("teddy: %s %q: %w", kind, raw, err)
		}
		return nil
	})
	return out, err
}

// Getter returns a function reading raw on every call.
func (s *Store) Getter(raw string, opts ...AccessOption) func() any {
	return func() any {
		return s.Get(raw, opts...)
	}
}

// Setter returns a function writing raw on every call.
func (s *Store) Setter(raw string, opts ...AccessOption) func(any) error {
	return func(v any) error {
		return s.Set(raw, v, opts...)
	}
}

// Sync returns a writable computed bound to raw: reading it gets the path,
// setting it sets the path.
func (s *Store) Sync(raw string, opts ...AccessOption) *reactive.Computed {
	return s.t.rt.Computed(s.Getter(raw, opts...), s.Setter(raw, opts...))
}

// SyncPaths returns one Sync per path, positionally.
func (s *Store) SyncPaths(paths []string, opts ...AccessOption) []*reactive.Computed {
	out := make([]*reactive.Computed, len(paths))
	for i, p := range paths {
		out[i] = s.Sync(p, opts...)
	}
	return out
}

// SyncMap returns one Sync per entry, keyed like paths.
//
// Example:
//
//	m := store.SyncMap(map[string]string{"title": "page.title", "body": "page.body"})
//	m["title"].Set("Hello")
func (s *Store) SyncMap(paths map[string]string, opts ...AccessOption) map[string]*reactive.Computed {
	out := make(map[string]*reactive.Computed, len(paths))
	for k, p := range paths {
		out[k] = s.Sync(p, opts...)
	}
	return out
}

// =============================================================================
// Registry shortcuts
// =============================================================================

// Get is GetStore(def).Get.
func (t *Teddy) Get(def Definition, raw string, opts ...AccessOption) any {
	return t.GetStore(def).Get(raw, opts...)
}

// Has is GetStore(def).Has.
func (t *Teddy) Has(def Definition, raw string, opts ...AccessOption) bool {
	return t.GetStore(def).Has(raw, opts...)
}

// Set is GetStore(def).Set.
func (t *Teddy) Set(def Definition, raw string, value any, opts ...AccessOption) error {
	return t.GetStore(def).Set(raw, value, opts...)
}

// Remove is GetStore(def).Remove.
func (t *Teddy) Remove(def Definition, raw string, opts ...AccessOption) (bool, error) {
	return t.GetStore(def).Remove(raw, opts...)
}

// Push is GetStore(def).Push.
func (t *Teddy) Push(def Definition, raw string, value any, opts ...AccessOption) (any, error) {
	return t.GetStore(def).Push(raw, value, opts...)
}

// Unshift is GetStore(def).Unshift.
func (t *Teddy) Unshift(def Definition, raw string, value any, opts ...AccessOption) (any, error) {
	return t.GetStore(def).Unshift(raw, value, opts...)
}

// Insert is GetStore(def).Insert.
func (t *Teddy) Insert(def Definition, raw string, value any, opts ...AccessOption) (any, error) {
	return t.GetStore(def).Insert(raw, value, opts...)
}

// Getter is GetStore(def).Getter.
func (t *Teddy) Getter(def Definition, raw string, opts ...AccessOption) func() any {
	return t.GetStore(def).Getter(raw, opts...)
}

// Setter is GetStore(def).Setter.
func (t *Teddy) Setter(def Definition, raw string, opts ...AccessOption) func(any) error {
	return t.GetStore(def).Setter(raw, opts...)
}

// Sync is GetStore(def).Sync.
func (t *Teddy) Sync(def Definition, raw string, opts ...AccessOption) *reactive.Computed {
	return t.GetStore(def).Sync(raw, opts...)
}

// SyncPaths is GetStore(def).SyncPaths.
func (t *Teddy) SyncPaths(def Definition, paths []string, opts ...AccessOption) []*reactive.Computed {
	return t.GetStore(def).SyncPaths(paths, opts...)
}

// SyncMap is GetStore(def).SyncMap.
func (t *Teddy) SyncMap(def Definition, paths map[string]string, opts ...AccessOption) map[string]*reactive.Computed {
	return t.GetStore(def).SyncMap(paths, opts...)
}
