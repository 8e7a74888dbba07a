package teddy

import (
	"context"
	"fmt"
	"sort"
)

// ActionFunc is a store operation callable by name. It receives the store it
// is registered on followed by the caller's arguments.
type ActionFunc func(s *Store, args ...any) (any, error)

// SetActions merges actions into the store, replacing actions of the same
// name.
func (s *Store) SetActions(actions map[string]ActionFunc) {
	for name, fn := range actions {
		if fn == nil {
			continue
		}
		s.actions[name] = fn
	}
}

// Actions returns the registered action names, sorted.
func (s *Store) Actions() []string {
	names := make([]string, 0, len(s.actions))
	for name := range s.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes the named action and returns its result. A panic inside the
// action is returned as a *PanicError.
func (s *Store) Call(name string, args ...any) (result any, err error) {
	fn, ok := s.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &PanicError{Value: r}
		}
	}()
	return fn(s, args...)
}

// RunContext invokes the named action through middleware and returns its
// result and error.
func (s *Store) RunContext(ctx context.Context, name string, args ...any) (any, error) {
	var out any
	op := Operation{Context: ctx, Kind: "run", Store: s.def, Path: name}
	err := s.t.invoke(op, func() error {
		v, err := s.Call(name, args...)
		out = v
		return err
	})
	return out, err
}

// Run invokes the named action. Errors and panics are logged and yield nil,
// so a failing action never takes the caller down.
func (s *Store) Run(name string, args ...any) any {
	v, err := s.RunContext(context.Background(), name, args...)
	if err != nil {
		s.t.logger.Error("teddy: action failed",
			"space", s.def.Space, "name", s.def.Name, "action", name, "error", err)
		return nil
	}
	return v
}

// Run is GetStore(def).Run.
func (t *Teddy) Run(def Definition, name string, args ...any) any {
	return t.GetStore(def).Run(name, args...)
}
