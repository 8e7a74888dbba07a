package teddy

import "fmt"

// Feature is an optional add-on installed into a store, such as persistence,
// history or cross-process sync. Features only use the public store API.
type Feature interface {
	// Name identifies the feature. A store installs each name once.
	Name() string

	// Install attaches the feature to s.
	Install(s *Store) error
}

// Uninstaller is implemented by features that hold resources per store.
// Uninstall runs when the store is removed or its Teddy is closed.
type Uninstaller interface {
	Uninstall(s *Store) error
}

// Use installs f unless a feature with the same name is already installed.
func (s *Store) Use(f Feature) error {
	if f == nil {
		return nil
	}
	name := f.Name()
	if _, ok := s.features[name]; ok {
		return nil
	}
	if err := f.Install(s); err != nil {
		return fmt.Errorf("teddy: feature %s: %w", name, err)
	}
	s.features[name] = f
	s.order = append(s.order, name)
	return nil
}

// Feature returns the installed feature named name.
func (s *Store) Feature(name string) (Feature, bool) {
	f, ok := s.features[name]
	return f, ok
}

// Features returns the names of installed features in install order.
func (s *Store) Features() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
