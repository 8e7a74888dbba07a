// Package engine evaluates teddy paths against a state graph.
//
// Reads (Get, Has) never fail: a malformed path, an unresolvable variable or
// a missing node all read as "not found". Writes (Set, Remove, Push, Unshift,
// Insert) report those conditions as errors wrapped in *OpError.
//
// Variables are always resolved against the vars value passed alongside the
// path, never against the graph being traversed.
package engine

import (
	"errors"
	"math"
	"sync"

	"github.com/vango-dev/teddy/pkg/node"
	"github.com/vango-dev/teddy/pkg/path"
	"github.com/vango-dev/teddy/pkg/reactive"
)

// Engine evaluates paths. It is safe for concurrent use as long as the graphs
// it operates on are not shared across goroutines.
type Engine struct {
	cache *path.Cache
	lazy  bool
	once  sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the parse cache. A nil cache disables caching.
func WithCache(c *path.Cache) Option {
	return func(e *Engine) {
		e.cache = c
		e.lazy = false
	}
}

// New creates an engine. Unless WithCache is given, a default parse cache is
// created on first parse.
func New(opts ...Option) *Engine {
	e := &Engine{lazy: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse parses raw through the engine's cache.
func (e *Engine) Parse(raw string) (*path.Path, error) {
	return e.parse(raw)
}

func (e *Engine) parse(raw string) (*path.Path, error) {
	e.once.Do(e.initCache)
	if e.cache == nil {
		return path.Parse(raw)
	}
	return e.cache.Parse(raw)
}

func (e *Engine) initCache() {
	if !e.lazy {
		return
	}
	if c, err := path.NewCache(path.DefaultCacheSize); err == nil {
		e.cache = c
	}
}

// Close releases the parse cache. An engine that never parsed has nothing to
// release and will not create a cache afterwards.
func (e *Engine) Close() {
	e.once.Do(func() {})
	if e.cache != nil {
		e.cache.Close()
	}
}

// Get returns the value at raw, or fallback when it cannot be reached.
func (e *Engine) Get(root any, raw string, vars, fallback any) any {
	p, err := e.parse(raw)
	if err != nil {
		return fallback
	}
	if v, ok := e.Lookup(root, p, vars); ok {
		return v
	}
	return fallback
}

// Lookup returns the value at p and whether it was found. A wildcard step
// yields []any for arrays and map[string]any for objects, with nil in place of
// branches that did not resolve.
func (e *Engine) Lookup(root any, p *path.Path, vars any) (any, bool) {
	return e.lookup(root, p.Steps, vars)
}

func (e *Engine) lookup(cur any, steps []path.Step, vars any) (any, bool) {
	for i, step := range steps {
		if step.Kind == path.Wildcard {
			return e.fanLookup(cur, steps[i+1:], vars)
		}
		key, err := e.resolveKey(cur, step, vars)
		if err != nil {
			return nil, false
		}
		next, ok := node.Get(cur, key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return node.Deref(cur), true
}

func (e *Engine) fanLookup(cur any, rest []path.Step, vars any) (any, bool) {
	c := node.Deref(cur)
	if !node.IsContainer(c) {
		return nil, false
	}
	children := node.Children(c)
	if node.IsIndexed(c) {
		out := make([]any, 0, len(children))
		for _, k := range children {
			child, _ := node.Get(c, k)
			v, _ := e.lookup(child, rest, vars)
			out = append(out, v)
		}
		return out, true
	}
	out := make(map[string]any, len(children))
	for _, k := range children {
		child, _ := node.Get(c, k)
		v, _ := e.lookup(child, rest, vars)
		out[node.KeyString(k)] = v
	}
	return out, true
}

// Has reports whether every step of raw resolves. It never mutates.
func (e *Engine) Has(root any, raw string, vars any) bool {
	p, err := e.parse(raw)
	if err != nil {
		return false
	}
	return e.HasPath(root, p, vars)
}

// HasPath is Has for a parsed path.
func (e *Engine) HasPath(root any, p *path.Path, vars any) bool {
	return e.has(root, p.Steps, vars)
}

func (e *Engine) has(cur any, steps []path.Step, vars any) bool {
	for i, step := range steps {
		if step.Kind == path.Wildcard {
			c := node.Deref(cur)
			if !node.IsContainer(c) {
				return false
			}
			for _, k := range node.Children(c) {
				child, _ := node.Get(c, k)
				if !e.has(child, steps[i+1:], vars) {
					return false
				}
			}
			return true
		}
		key, err := e.resolveKey(cur, step, vars)
		if err != nil || !node.Has(cur, key) {
			return false
		}
		cur, _ = node.Get(cur, key)
	}
	return true
}

// Set writes value at raw, creating missing intermediate containers.
func (e *Engine) Set(root any, raw string, value, vars any) error {
	p, err := e.parse(raw)
	if err != nil {
		return &OpError{Op: "set", Path: raw, Err: err}
	}
	return e.SetPath(root, p, value, vars)
}

// SetPath is Set for a parsed path.
func (e *Engine) SetPath(root any, p *path.Path, value, vars any) error {
	var err error
	if p.Len() == 0 {
		err = replaceRoot(root, value)
	} else {
		err = e.set(root, p.Steps, value, vars)
	}
	if err != nil {
		return &OpError{Op: "set", Path: p.String(), Err: err}
	}
	return nil
}

func (e *Engine) set(cur any, steps []path.Step, value, vars any) error {
	if err := e.checkSet(cur, steps, vars); err != nil {
		return err
	}

	// The outermost container created by this write, dropped again if a
	// later step fails.
	var (
		vivified   bool
		vivParent  any
		vivKey     any
		vivExisted bool
	)
	undo := func(err error) error {
		if vivified {
			if vivExisted {
				node.Set(vivParent, vivKey, nil)
			} else {
				node.Remove(vivParent, vivKey)
			}
		}
		return err
	}

	last := len(steps) - 1
	for i := 0; i < last; i++ {
		step := steps[i]
		if step.Kind == path.Wildcard {
			return e.fanSet(cur, steps[i+1:], value, vars)
		}
		key, err := e.resolveKey(cur, step, vars)
		if err != nil {
			return undo(err)
		}
		next, ok := node.Get(cur, key)
		if !ok || next == nil {
			var fresh any = map[string]any{}
			if e.wantsArray(steps[i+1], vars) {
				fresh = []any{}
			}
			if next, err = node.Set(cur, key, fresh); err != nil {
				return undo(err)
			}
			if !vivified {
				vivified, vivParent, vivKey, vivExisted = true, cur, key, ok
			}
		} else if !node.IsContainer(next) {
			return undo(ErrNotContainer)
		}
		cur = next
	}

	step := steps[last]
	if step.Kind == path.Wildcard {
		return e.fanSet(cur, nil, value, vars)
	}
	key, err := e.resolveKey(cur, step, vars)
	if err != nil {
		return undo(err)
	}
	if _, err = node.Set(cur, key, value); err != nil {
		return undo(err)
	}
	return nil
}

// checkSet resolves every step of a write up to the first wildcard without
// touching the graph. Steps below a missing node are resolved against an
// empty container, so their variables must still resolve and their filters
// cannot match.
func (e *Engine) checkSet(cur any, steps []path.Step, vars any) error {
	missing := false
	for i, step := range steps {
		if step.Kind == path.Wildcard {
			return nil
		}
		if missing {
			if _, err := e.resolveKey(nil, step, vars); err != nil {
				return err
			}
			continue
		}
		key, err := e.resolveKey(cur, step, vars)
		if err != nil {
			return err
		}
		if i == len(steps)-1 {
			return nil
		}
		next, ok := node.Get(cur, key)
		switch {
		case !ok || next == nil:
			missing = true
		case !node.IsContainer(next):
			return ErrNotContainer
		default:
			cur = next
		}
	}
	return nil
}

// fanSet applies rest to every child of cur. A failing branch does not stop
// its siblings; every branch error is returned joined.
func (e *Engine) fanSet(cur any, rest []path.Step, value, vars any) error {
	c := node.Deref(cur)
	if !node.IsContainer(c) {
		return ErrNotContainer
	}
	var errs []error
	for _, k := range node.Children(c) {
		var err error
		if len(rest) == 0 {
			_, err = node.Set(c, k, value)
		} else {
			err = e.set(c, append([]path.Step{childStep(k)}, rest...), value, vars)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// childStep addresses a known child key without re-resolving it.
func childStep(k any) path.Step {
	if i, ok := k.(int); ok {
		return path.Step{Kind: path.Index, Index: i}
	}
	return path.Step{Kind: path.Key, Key: node.KeyString(k), Forced: true}
}

// replaceRoot writes a whole new root value. When both the current and the
// new value are objects, the new keys are assigned onto the current object.
func replaceRoot(root, value any) error {
	var rt *reactive.Runtime
	switch r := root.(type) {
	case *reactive.Ref:
		rt = r.Runtime()
		if old, ok := r.Peek().(*reactive.Object); ok {
			if obj, ok := rt.Reactive(value).(*reactive.Object); ok && obj != old {
				assign(old, obj)
				return nil
			}
		}
		r.Set(value)
		return nil
	case *reactive.Computed:
		return r.Set(value)
	case *reactive.Object:
		rt = r.Runtime()
		if obj, ok := rt.Reactive(value).(*reactive.Object); ok {
			if obj != r {
				assign(r, obj)
			}
			return nil
		}
	}
	return ErrNotContainer
}

func assign(dst, src *reactive.Object) {
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		dst.Set(k, v)
	}
}

// Remove deletes the value at raw. Array elements are spliced out, object
// keys deleted. A trailing wildcard sets every element to nil instead.
func (e *Engine) Remove(root any, raw string, vars any) (bool, error) {
	p, err := e.parse(raw)
	if err != nil {
		return false, &OpError{Op: "remove", Path: raw, Err: err}
	}
	return e.RemovePath(root, p, vars)
}

// RemovePath is Remove for a parsed path.
func (e *Engine) RemovePath(root any, p *path.Path, vars any) (bool, error) {
	if p.Len() == 0 {
		return false, nil
	}
	ok, err := e.remove(root, p.Steps, vars)
	if err != nil {
		return false, &OpError{Op: "remove", Path: p.String(), Err: err}
	}
	return ok, nil
}

func (e *Engine) remove(cur any, steps []path.Step, vars any) (bool, error) {
	last := len(steps) - 1
	for i := 0; i < last; i++ {
		step := steps[i]
		if step.Kind == path.Wildcard {
			return e.fanRemove(cur, steps[i+1:], vars)
		}
		key, err := e.resolveKey(cur, step, vars)
		if errors.Is(err, ErrNoMatch) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		next, ok := node.Get(cur, key)
		if !ok {
			return false, nil
		}
		cur = next
	}

	step := steps[last]
	if step.Kind == path.Wildcard {
		c := node.Deref(cur)
		if !node.IsContainer(c) {
			return false, nil
		}
		children := node.Children(c)
		for _, k := range children {
			if _, err := node.Set(c, k, nil); err != nil {
				return false, err
			}
		}
		return len(children) > 0, nil
	}
	key, err := e.resolveKey(cur, step, vars)
	if errors.Is(err, ErrNoMatch) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return node.Remove(cur, key), nil
}

func (e *Engine) fanRemove(cur any, rest []path.Step, vars any) (bool, error) {
	c := node.Deref(cur)
	if !node.IsContainer(c) {
		return false, nil
	}
	removed := false
	var errs []error
	for _, k := range node.Children(c) {
		child, _ := node.Get(c, k)
		if !node.IsContainer(child) {
			continue
		}
		ok, err := e.remove(child, rest, vars)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		removed = removed || ok
	}
	return removed, errors.Join(errs...)
}

// Push appends value to the array at raw, creating an empty array when the
// path is absent. It returns the inserted element, or one per branch when raw
// contains a wildcard.
func (e *Engine) Push(root any, raw string, value, vars any) (any, error) {
	p, err := e.parse(raw)
	if err != nil {
		return nil, &OpError{Op: "push", Path: raw, Err: err}
	}
	return e.PushPath(root, p, value, vars)
}

// PushPath is Push for a parsed path.
func (e *Engine) PushPath(root any, p *path.Path, value, vars any) (any, error) {
	return e.arrayOp("push", root, p, p.Steps, vars, func(arr any) (any, error) {
		return node.Push(arr, value)
	})
}

// Unshift prepends value to the array at raw and returns the array.
func (e *Engine) Unshift(root any, raw string, value, vars any) (any, error) {
	p, err := e.parse(raw)
	if err != nil {
		return nil, &OpError{Op: "unshift", Path: raw, Err: err}
	}
	return e.UnshiftPath(root, p, value, vars)
}

// UnshiftPath is Unshift for a parsed path.
func (e *Engine) UnshiftPath(root any, p *path.Path, value, vars any) (any, error) {
	return e.arrayOp("unshift", root, p, p.Steps, vars, func(arr any) (any, error) {
		return node.Unshift(arr, value)
	})
}

// Insert places value into the array at raw and returns the array. When index
// is nil, a trailing numeric step of raw is used as the index; without one
// the value is appended.
func (e *Engine) Insert(root any, raw string, value, vars any, index *int) (any, error) {
	p, err := e.parse(raw)
	if err != nil {
		return nil, &OpError{Op: "insert", Path: raw, Err: err}
	}
	return e.InsertPath(root, p, value, vars, index)
}

// InsertPath is Insert for a parsed path.
func (e *Engine) InsertPath(root any, p *path.Path, value, vars any, index *int) (any, error) {
	at := math.MaxInt
	steps := p.Steps
	if index != nil {
		at = *index
	} else if n := len(steps); n > 0 && steps[n-1].Kind == path.Index {
		at = steps[n-1].Index
		steps = steps[:n-1]
	}
	return e.arrayOp("insert", root, p, steps, vars, func(arr any) (any, error) {
		return node.Insert(arr, at, value)
	})
}

type arrayFunc func(arr any) (any, error)

func (e *Engine) arrayOp(op string, root any, p *path.Path, steps []path.Step, vars any, fn arrayFunc) (any, error) {
	out, err := e.arraySteps(root, steps, vars, fn)
	if err != nil {
		return nil, &OpError{Op: op, Path: p.String(), Err: err}
	}
	return out, nil
}

// arraySteps resolves the array named by steps, vivifying it when absent, and
// calls fn on it. Wildcards fan out and collect one result per branch.
func (e *Engine) arraySteps(cur any, steps []path.Step, vars any, fn arrayFunc) (any, error) {
	for i, step := range steps {
		if step.Kind != path.Wildcard {
			continue
		}
		parent, ok := e.lookup(cur, steps[:i], vars)
		if !ok || !node.IsContainer(parent) {
			return nil, ErrNotContainer
		}
		rest := steps[i+1:]
		var (
			out  []any
			errs []error
		)
		for _, k := range node.Children(parent) {
			child, _ := node.Get(parent, k)
			r, err := e.arraySteps(child, rest, vars, fn)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, r)
		}
		return out, errors.Join(errs...)
	}

	arr, ok := e.lookup(cur, steps, vars)
	if !ok || arr == nil {
		if len(steps) == 0 {
			if r, isRef := cur.(*reactive.Ref); isRef {
				r.Set([]any{})
			}
		} else if err := e.set(cur, steps, []any{}, vars); err != nil {
			return nil, err
		}
		if arr, ok = e.lookup(cur, steps, vars); !ok {
			return nil, ErrNotArray
		}
	}
	return fn(arr)
}
