package reactive

import "encoding/json"

// Computed is a lazily cached derivation. It recomputes on the first read after
// one of the dependencies it read last time changed.
//
// A Computed created with a setter is writable: Set forwards to the setter.
type Computed struct {
	rt        *Runtime
	id        uint64
	dep       *dep
	get       func() any
	set       func(any) error
	value     any
	valid     bool
	computing bool
	sources   []*dep
}

// Computed creates a derivation. set may be nil for a read-only value.
func (rt *Runtime) Computed(get func() any, set func(any) error) *Computed {
	return &Computed{
		rt:  rt,
		id:  nextID(),
		dep: newDep(rt),
		get: get,
		set: set,
	}
}

// Value returns the derived value and subscribes the current listener.
func (c *Computed) Value() any {
	c.dep.track()
	if !c.valid {
		c.recompute()
	}
	return c.value
}

// Peek returns the derived value without subscribing.
func (c *Computed) Peek() any {
	if !c.valid {
		c.recompute()
	}
	return c.value
}

// Set writes through the setter.
func (c *Computed) Set(v any) error {
	if c.set == nil {
		return ErrReadOnly
	}
	return c.set(v)
}

// Writable reports whether the derivation has a setter.
func (c *Computed) Writable() bool {
	return c.set != nil
}

// MarkDirty invalidates the cached value and propagates to subscribers.
func (c *Computed) MarkDirty() {
	if !c.valid {
		return
	}
	c.valid = false
	c.dep.trigger()
}

// ID returns the unique identifier for this derivation.
func (c *Computed) ID() uint64 {
	return c.id
}

func (c *Computed) addSource(d *dep) {
	for _, s := range c.sources {
		if s == d {
			return
		}
	}
	c.sources = append(c.sources, d)
}

func (c *Computed) clearSources() {
	for _, s := range c.sources {
		s.unsubscribe(c)
	}
	c.sources = c.sources[:0]
}

// Dispose detaches the derivation from its dependencies. A later read
// recomputes and subscribes again.
func (c *Computed) Dispose() {
	c.clearSources()
	c.valid = false
}

func (c *Computed) recompute() {
	if c.computing {
		return
	}
	c.computing = true
	defer func() { c.computing = false }()

	c.clearSources()

	old := c.rt.setListener(c)
	defer c.rt.setListener(old)

	c.value = c.get()
	c.valid = true
}

// MarshalJSON encodes the raw derived value.
func (c *Computed) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToRaw(c.Peek()))
}
