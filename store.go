package teddy

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/vango-dev/teddy/pkg/path"
	"github.com/vango-dev/teddy/pkg/reactive"
)

var rootPath = path.MustParse("")

// Config is the payload of SetStore. Nil fields leave the store untouched.
type Config struct {
	State    any
	Getters  map[string]GetterDef
	Actions  map[string]ActionFunc
	Watchers []Watch
	Features []Feature
}

// Store is one named reactive state tree with its getters, actions, watchers
// and features.
type Store struct {
	t   *Teddy
	def Definition

	state    *reactive.Ref
	getters  map[string]*getter
	actions  map[string]ActionFunc
	watchers []*Watcher
	features map[string]Feature
	order    []string

	detached bool
}

func newStore(t *Teddy, def Definition) *Store {
	return &Store{
		t:        t,
		def:      def,
		state:    t.rt.Ref(map[string]any{}),
		getters:  make(map[string]*getter),
		actions:  make(map[string]ActionFunc),
		features: make(map[string]Feature),
	}
}

// Definition returns the store's space and name.
func (s *Store) Definition() Definition {
	return s.def
}

// Teddy returns the registry the store belongs to.
func (s *Store) Teddy() *Teddy {
	return s.t
}

// State returns the cell holding the store's state.
func (s *Store) State() *reactive.Ref {
	return s.state
}

// Raw returns a deep plain copy of the state.
func (s *Store) Raw() any {
	return reactive.ToRaw(s.state.Peek())
}

// Logger returns the Teddy logger annotated with the store definition.
func (s *Store) Logger() *slog.Logger {
	return s.t.logger.With("space", s.def.Space, "name", s.def.Name)
}

// Detached reports whether the store was removed from its registry.
func (s *Store) Detached() bool {
	return s.detached
}

// =============================================================================
// Registry
// =============================================================================

func (t *Teddy) lookup(def Definition) (*Store, bool) {
	def = def.normalize()
	s, ok := t.spaces[def.Space][def.Name]
	return s, ok
}

// GetStore returns the store for def, creating an empty one on first use.
// On a closed Teddy it returns a detached store whose operations fail with
// ErrClosed.
func (t *Teddy) GetStore(def Definition) *Store {
	def = def.normalize()
	if s, ok := t.lookup(def); ok {
		return s
	}
	if t.closed {
		s := newStore(t, def)
		s.detached = true
		return s
	}
	names, ok := t.spaces[def.Space]
	if !ok {
		names = make(map[string]*Store)
		t.spaces[def.Space] = names
	}
	s := newStore(t, def)
	names[def.Name] = s
	t.logger.Debug("teddy: store created", "space", def.Space, "name", def.Name)
	return s
}

// Exists reports whether def has been created. It never creates.
func (t *Teddy) Exists(def Definition) bool {
	_, ok := t.lookup(def)
	return ok
}

// LookupStore returns the store for def or a *MissingStoreError.
func (t *Teddy) LookupStore(def Definition) (*Store, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if s, ok := t.lookup(def); ok {
		return s, nil
	}
	return nil, &MissingStoreError{Definition: def.normalize()}
}

// CreateStore creates and configures a new store, or returns a
// *DuplicateStoreError when def already exists.
func (t *Teddy) CreateStore(def Definition, cfg Config) (*Store, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if t.Exists(def) {
		return nil, &DuplicateStoreError{Definition: def.normalize()}
	}
	return t.SetStore(def, cfg), nil
}

// SetStore creates the store if needed and merges cfg into it. State is
// applied first, then getters, actions, features and finally watchers.
func (t *Teddy) SetStore(def Definition, cfg Config) *Store {
	s := t.GetStore(def)
	if s.detached {
		t.logger.Warn("teddy: set store on closed registry", "space", s.def.Space, "name", s.def.Name)
		return s
	}
	if cfg.State != nil {
		if err := s.SetState(cfg.State); err != nil {
			t.logger.Error("teddy: set state", "space", s.def.Space, "name", s.def.Name, "error", err)
		}
	}
	s.SetGetters(cfg.Getters)
	s.SetActions(cfg.Actions)
	for _, f := range cfg.Features {
		if err := s.Use(f); err != nil {
			t.logger.Error("teddy: install feature", "space", s.def.Space, "name", s.def.Name, "feature", f.Name(), "error", err)
		}
	}
	s.SetWatchers(cfg.Watchers)
	return s
}

// SetState merges state into def's state. See Store.SetState.
func (t *Teddy) SetState(def Definition, state any) error {
	return t.GetStore(def).SetState(state)
}

// SetGetters merges getters into def. See Store.SetGetters.
func (t *Teddy) SetGetters(def Definition, getters map[string]GetterDef) {
	t.GetStore(def).SetGetters(getters)
}

// SetActions merges actions into def. See Store.SetActions.
func (t *Teddy) SetActions(def Definition, actions map[string]ActionFunc) {
	t.GetStore(def).SetActions(actions)
}

// SetWatchers registers watchers on def. See Store.SetWatchers.
func (t *Teddy) SetWatchers(def Definition, watches []Watch) []*Watcher {
	return t.GetStore(def).SetWatchers(watches)
}

// RemoveStore detaches def from the registry, stopping its watchers and
// uninstalling its features. It reports whether the store existed.
func (t *Teddy) RemoveStore(def Definition) bool {
	s, ok := t.lookup(def)
	if !ok {
		return false
	}
	if err := s.detach(); err != nil {
		t.logger.Error("teddy: remove store", "space", s.def.Space, "name", s.def.Name, "error", err)
	}
	names := t.spaces[s.def.Space]
	delete(names, s.def.Name)
	if len(names) == 0 {
		delete(t.spaces, s.def.Space)
	}
	return true
}

func (s *Store) detach() error {
	s.detached = true
	for _, w := range s.Watchers() {
		w.Stop()
	}
	for _, g := range s.getters {
		g.dispose()
	}
	var errs []error
	for i := len(s.order) - 1; i >= 0; i-- {
		f := s.features[s.order[i]]
		if u, ok := f.(Uninstaller); ok {
			if err := u.Uninstall(s); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// SetState merges state into the store's state: when both the current and
// the new state are objects the new keys are assigned onto the current
// object, otherwise the state is replaced.
func (s *Store) SetState(state any) error {
	if err := s.t.engine.SetPath(s.state, rootPath, state, nil); err != nil {
		return fmt.Errorf("teddy: set state of %s: %w", s.def, err)
	}
	return nil
}

// ReplaceState swaps the whole state without merging.
func (s *Store) ReplaceState(state any) {
	s.state.Set(state)
}
