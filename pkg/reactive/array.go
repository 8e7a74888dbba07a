package reactive

import "encoding/json"

// Array is a reactive ordered container. Any read subscribes to the whole
// array; any write notifies its subscribers.
type Array struct {
	rt    *Runtime
	items []any
	dep   *dep
}

// NewArray creates an empty reactive array.
func (rt *Runtime) NewArray() *Array {
	return &Array{rt: rt, dep: newDep(rt)}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	a.dep.track()
	return len(a.items)
}

// At returns the element at i.
func (a *Array) At(i int) (any, bool) {
	a.dep.track()
	if i < 0 || i >= len(a.items) {
		return nil, false
	}
	return a.items[i], true
}

// Items returns a copy of the elements.
func (a *Array) Items() []any {
	a.dep.track()
	out := make([]any, len(a.items))
	copy(out, a.items)
	return out
}

// SetAt stores v at index i, growing the array with nil elements when i is
// past the end. It returns the stored value.
func (a *Array) SetAt(i int, v any) any {
	if i < 0 {
		return nil
	}
	v = a.rt.Reactive(v)
	if i < len(a.items) {
		if Same(a.items[i], v) {
			return a.items[i]
		}
		a.items[i] = v
		a.dep.trigger()
		return v
	}
	for len(a.items) < i {
		a.items = append(a.items, nil)
	}
	a.items = append(a.items, v)
	a.dep.trigger()
	return v
}

// Push appends v and returns the stored element.
func (a *Array) Push(v any) any {
	v = a.rt.Reactive(v)
	a.items = append(a.items, v)
	a.dep.trigger()
	return v
}

// Unshift prepends v and returns the stored element.
func (a *Array) Unshift(v any) any {
	return a.Insert(0, v)
}

// Insert places v before index i, shifting later elements. Indexes past the
// end append; negative indexes count from the end.
func (a *Array) Insert(i int, v any) any {
	i = a.clamp(i)
	v = a.rt.Reactive(v)
	a.items = append(a.items, nil)
	copy(a.items[i+1:], a.items[i:])
	a.items[i] = v
	a.dep.trigger()
	return v
}

// RemoveAt removes the element at i, shifting later elements down.
func (a *Array) RemoveAt(i int) (any, bool) {
	if i < 0 || i >= len(a.items) {
		return nil, false
	}
	v := a.items[i]
	a.items = append(a.items[:i], a.items[i+1:]...)
	a.dep.trigger()
	return v, true
}

// Splice removes deleteCount elements at start, inserts items in their place
// and returns the removed elements.
func (a *Array) Splice(start, deleteCount int, items ...any) []any {
	start = a.clamp(start)
	if deleteCount < 0 {
		deleteCount = 0
	}
	if start+deleteCount > len(a.items) {
		deleteCount = len(a.items) - start
	}
	removed := make([]any, deleteCount)
	copy(removed, a.items[start:start+deleteCount])

	added := make([]any, len(items))
	for i, it := range items {
		added[i] = a.rt.Reactive(it)
	}
	tail := append([]any(nil), a.items[start+deleteCount:]...)
	a.items = append(append(a.items[:start], added...), tail...)
	if deleteCount > 0 || len(added) > 0 {
		a.dep.trigger()
	}
	return removed
}

func (a *Array) clamp(i int) int {
	if i < 0 {
		i += len(a.items)
		if i < 0 {
			i = 0
		}
	}
	if i > len(a.items) {
		i = len(a.items)
	}
	return i
}

// Raw returns a deep plain copy.
func (a *Array) Raw() []any {
	out := make([]any, len(a.items))
	for i, v := range a.items {
		out[i] = ToRaw(v)
	}
	return out
}

// MarshalJSON encodes the elements.
func (a *Array) MarshalJSON() ([]byte, error) {
	if a.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.items)
}

// Runtime returns the runtime the array belongs to.
func (a *Array) Runtime() *Runtime {
	return a.rt
}
