package reactive

import (
	"bytes"
	"encoding/json"
)

// Object is a reactive string-keyed container. Keys keep insertion order.
//
// Reads of a key subscribe to that key; Keys, Len and Range also subscribe to
// the key set, which changes whenever a key is added or deleted.
type Object struct {
	rt     *Runtime
	keys   []string
	vals   map[string]any
	deps   map[string]*dep
	keySet *dep
}

// NewObject creates an empty reactive object.
func (rt *Runtime) NewObject() *Object {
	return &Object{
		rt:     rt,
		vals:   make(map[string]any),
		deps:   make(map[string]*dep),
		keySet: newDep(rt),
	}
}

func (o *Object) trackKey(key string) {
	if o.rt.listener == nil {
		return
	}
	d, ok := o.deps[key]
	if !ok {
		d = newDep(o.rt)
		o.deps[key] = d
	}
	d.track()
}

func (o *Object) triggerKey(key string) {
	if d, ok := o.deps[key]; ok {
		d.trigger()
	}
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	o.trackKey(key)
	v, ok := o.vals[key]
	return v, ok
}

// Has reports whether key is an own key.
func (o *Object) Has(key string) bool {
	o.trackKey(key)
	_, ok := o.vals[key]
	return ok
}

// Set stores v under key and returns the stored value. Adding a key notifies
// key-set subscribers as well as subscribers of the key itself.
func (o *Object) Set(key string, v any) any {
	v = o.rt.Reactive(v)
	old, exists := o.vals[key]
	if exists && Same(old, v) {
		return old
	}
	o.vals[key] = v
	if !exists {
		o.keys = append(o.keys, key)
		o.keySet.trigger()
	}
	o.triggerKey(key)
	return v
}

// Delete removes key. It reports whether the key existed.
func (o *Object) Delete(key string) bool {
	if _, ok := o.vals[key]; !ok {
		return false
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	o.triggerKey(key)
	o.keySet.trigger()
	return true
}

// Keys returns the own keys in insertion order.
func (o *Object) Keys() []string {
	o.keySet.track()
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

// Len returns the number of own keys.
func (o *Object) Len() int {
	o.keySet.track()
	return len(o.keys)
}

// Range calls fn for every key in insertion order until fn returns false.
func (o *Object) Range(fn func(key string, v any) bool) {
	for _, k := range o.Keys() {
		v, ok := o.Get(k)
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

// Raw returns a deep plain copy.
func (o *Object) Raw() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		out[k] = ToRaw(o.vals[k])
	}
	return out
}

// init stores a value without notifying anyone. Used while building.
func (o *Object) init(key string, v any) {
	if _, exists := o.vals[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

// MarshalJSON encodes the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Runtime returns the runtime the object belongs to.
func (o *Object) Runtime() *Runtime {
	return o.rt
}
