package teddy

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/vango-dev/teddy/pkg/path"
	"github.com/vango-dev/teddy/pkg/reactive"
)

// Handler receives the new and previous watched value. Watches over several
// Paths receive []any values, one element per path.
type Handler func(newV, oldV any)

// Watch describes a watcher registration.
//
// With neither Path nor Paths set, the whole state is watched deeply.
type Watch struct {
	Path    string
	Paths   []string
	Handler Handler

	// Deep fires on any nested change below the watched value.
	Deep bool

	// Immediate calls Handler once during registration with a nil old value.
	Immediate bool

	// Vars resolves {placeholders} in the watched paths.
	Vars any

	// Key overrides the registration identity. By default two watches are
	// the same registration when they watch the same paths with the same
	// handler function.
	Key string
}

// WatcherState is the lifecycle stage of a Watcher.
type WatcherState int

const (
	// WatcherRegistered is a watcher that has not subscribed yet.
	WatcherRegistered WatcherState = iota
	// WatcherActive is a watcher subscribed to its sources.
	WatcherActive
	// WatcherCancelled is a stopped watcher. It never becomes active again.
	WatcherCancelled
)

func (s WatcherState) String() string {
	switch s {
	case WatcherRegistered:
		return "registered"
	case WatcherActive:
		return "active"
	case WatcherCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("WatcherState(%d)", int(s))
}

// Watcher is a registered watch on a store.
type Watcher struct {
	store *Store
	watch Watch
	key   string
	sub   *reactive.Subscription
	state WatcherState
}

// State returns the watcher's lifecycle stage.
func (w *Watcher) State() WatcherState {
	return w.state
}

// Key returns the registration identity.
func (w *Watcher) Key() string {
	return w.key
}

// Watch returns the registration the watcher was created from.
func (w *Watcher) Watch() Watch {
	return w.watch
}

// Stop cancels the watcher. Pending invocations are dropped.
func (w *Watcher) Stop() {
	if w.state == WatcherCancelled {
		return
	}
	w.state = WatcherCancelled
	if w.sub != nil {
		w.sub.Stop()
	}
	if s := w.store; s != nil {
		for i, other := range s.watchers {
			if other == w {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
	}
}

func watchKey(w Watch) string {
	if w.Key != "" {
		return w.Key
	}
	paths := w.Paths
	if len(paths) == 0 {
		paths = []string{w.Path}
	}
	var ptr uintptr
	if w.Handler != nil {
		ptr = reflect.ValueOf(w.Handler).Pointer()
	}
	return fmt.Sprintf("%s|%t|%x", strings.Join(paths, "\x00"), len(w.Paths) > 0, ptr)
}

// Watch registers w. A registration with the same identity as an existing
// one replaces it: the old watcher is stopped first.
func (s *Store) Watch(w Watch) *Watcher {
	watcher := &Watcher{store: s, watch: w, key: watchKey(w)}
	if w.Handler == nil || s.detached {
		watcher.state = WatcherCancelled
		return watcher
	}
	for _, old := range s.watchers {
		if old.key == watcher.key {
			old.Stop()
			break
		}
	}

	opts := reactive.WatchOptions{Deep: w.Deep, Immediate: w.Immediate}
	handler := reactive.Handler(w.Handler)
	s.watchers = append(s.watchers, watcher)
	switch {
	case len(w.Paths) > 0:
		sources := make([]func() any, len(w.Paths))
		for i, raw := range w.Paths {
			sources[i] = s.source(raw, w.Vars)
		}
		watcher.sub = s.t.rt.WatchMany(sources, handler, opts)
	case w.Path == "":
		opts.Deep = true
		watcher.sub = s.t.rt.Watch(s.state.Value, handler, opts)
	default:
		watcher.sub = s.t.rt.Watch(s.source(w.Path, w.Vars), handler, opts)
	}
	switch watcher.state {
	case WatcherRegistered:
		watcher.state = WatcherActive
	case WatcherCancelled:
		// stopped by its own immediate invocation
		watcher.sub.Stop()
	}
	return watcher
}

// WatchState deeply watches the whole state.
func (s *Store) WatchState(handler Handler) *Watcher {
	return s.Watch(Watch{Handler: handler})
}

// SetWatchers registers every watch in order and returns the watchers.
func (s *Store) SetWatchers(watches []Watch) []*Watcher {
	out := make([]*Watcher, 0, len(watches))
	for _, w := range watches {
		out = append(out, s.Watch(w))
	}
	return out
}

// Watchers returns the active watchers in registration order.
func (s *Store) Watchers() []*Watcher {
	out := make([]*Watcher, len(s.watchers))
	copy(out, s.watchers)
	return out
}

// source reads raw against the state without going through middleware.
// A malformed path reads as nil.
func (s *Store) source(raw string, vars any) func() any {
	p, err := s.parse(raw)
	if err != nil {
		s.t.logger.Warn("teddy: watch path", "space", s.def.Space, "name", s.def.Name, "path", raw, "error", err)
		return func() any { return nil }
	}
	return func() any {
		return s.read(p, vars)
	}
}

func (s *Store) read(p *path.Path, vars any) any {
	v, _ := s.t.engine.Lookup(s.state, p, vars)
	return v
}

// Watch is GetStore(def).Watch.
func (t *Teddy) Watch(def Definition, w Watch) *Watcher {
	return t.GetStore(def).Watch(w)
}

// WatchState is GetStore(def).WatchState.
func (t *Teddy) WatchState(def Definition, handler Handler) *Watcher {
	return t.GetStore(def).WatchState(handler)
}
