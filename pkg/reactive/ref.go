package reactive

import "encoding/json"

// Ref is a mutable reactive cell.
type Ref struct {
	rt    *Runtime
	dep   *dep
	value any
}

// Ref creates a cell holding v. Plain containers in v are made reactive.
func (rt *Runtime) Ref(v any) *Ref {
	return &Ref{
		rt:    rt,
		dep:   newDep(rt),
		value: rt.Reactive(v),
	}
}

// Value returns the current value and subscribes the current listener.
func (r *Ref) Value() any {
	r.dep.track()
	return r.value
}

// Peek returns the current value without subscribing.
func (r *Ref) Peek() any {
	return r.value
}

// Set replaces the value and notifies subscribers if it changed.
func (r *Ref) Set(v any) {
	v = r.rt.Reactive(v)
	if Same(r.value, v) {
		return
	}
	r.value = v
	r.dep.trigger()
}

// Runtime returns the runtime the cell belongs to.
func (r *Ref) Runtime() *Runtime {
	return r.rt
}

// MarshalJSON encodes the raw value.
func (r *Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToRaw(r.value))
}
