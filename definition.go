package teddy

import "strings"

const (
	// DefaultSpace is used when a definition names no space.
	DefaultSpace = "default"

	// DefaultName is used when a definition names no store.
	DefaultName = "default"
)

// Definition identifies a store by space and name. Empty fields take the
// defaults, so the zero Definition addresses the implicit default store.
type Definition struct {
	Space string `json:"space"`
	Name  string `json:"name"`
}

// Def is shorthand for Definition{Space: space, Name: name}.
func Def(space, name string) Definition {
	return Definition{Space: space, Name: name}
}

// ParseDefinition parses "space.name", "space/name" or a bare "name".
//
//	ParseDefinition("shop.cart")  // {shop cart}
//	ParseDefinition("shop/cart")  // {shop cart}
//	ParseDefinition("cart")       // {default cart}
//	ParseDefinition("")           // {default default}
func ParseDefinition(s string) Definition {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "./"); i >= 0 {
		return Definition{Space: s[:i], Name: s[i+1:]}.normalize()
	}
	return Definition{Name: s}.normalize()
}

func (d Definition) normalize() Definition {
	if d.Space == "" {
		d.Space = DefaultSpace
	}
	if d.Name == "" {
		d.Name = DefaultName
	}
	return d
}

// String returns "space.name".
func (d Definition) String() string {
	d = d.normalize()
	return d.Space + "." + d.Name
}
