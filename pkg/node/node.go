// Package node implements single-level operations on a state graph node.
//
// Every operation classifies its container once with KindOf and dispatches on
// the result. Reactive cells are dereferenced before the operation applies to
// their value. Plain Go values (maps, slices, structs) are readable so they can
// serve as variables, and map[string]any / []any are writable in place.
package node

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/vango-dev/teddy/pkg/reactive"
)

// Kind is the variant of a graph node.
type Kind int

const (
	// Scalar is anything that is not a container: nil, strings, numbers, bools.
	Scalar Kind = iota
	// Object is a *reactive.Object.
	Object
	// Array is a *reactive.Array.
	Array
	// Cell is a *reactive.Ref or *reactive.Computed.
	Cell
	// PlainMap is a Go map with string keys.
	PlainMap
	// PlainSlice is a Go slice or array.
	PlainSlice
	// PlainStruct is a Go struct or pointer to one.
	PlainStruct
)

var (
	// ErrNotContainer is returned when a write targets a scalar.
	ErrNotContainer = errors.New("node: not a container")

	// ErrNotArray is returned when an array operation targets a non-array.
	ErrNotArray = errors.New("node: not an array")

	// ErrInvalidIndex is returned when an array is addressed with a key that
	// is not a non-negative integer.
	ErrInvalidIndex = errors.New("node: invalid array index")

	// ErrReadOnly is returned when writing a plain value that cannot be
	// changed in place.
	ErrReadOnly = errors.New("node: container is read-only")
)

// KindOf classifies v.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return Scalar
	case *reactive.Object:
		return Object
	case *reactive.Array:
		return Array
	case *reactive.Ref, *reactive.Computed:
		return Cell
	case map[string]any:
		return PlainMap
	case []any:
		return PlainSlice
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Scalar
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return PlainMap
		}
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() != reflect.Uint8 {
			return PlainSlice
		}
	case reflect.Struct:
		return PlainStruct
	}
	return Scalar
}

// IsContainer reports whether v holds keyed or indexed children.
func IsContainer(v any) bool {
	k := KindOf(Deref(v))
	return k != Scalar && k != Cell
}

// Deref returns the value of a cell, or v itself.
func Deref(v any) any {
	for {
		switch c := v.(type) {
		case *reactive.Ref:
			v = c.Value()
		case *reactive.Computed:
			v = c.Value()
		default:
			return v
		}
	}
}

// KeyString renders a key as an object property name.
func KeyString(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case int:
		return strconv.Itoa(k)
	}
	return toString(key)
}

// KeyIndex converts a key into an array index.
func KeyIndex(key any) (int, bool) {
	switch k := key.(type) {
	case int:
		return k, k >= 0
	case string:
		if k == "" {
			return 0, false
		}
		for i := 0; i < len(k); i++ {
			if k[i] < '0' || k[i] > '9' {
				return 0, false
			}
		}
		n, err := strconv.Atoi(k)
		return n, err == nil
	case float64:
		n := int(k)
		return n, float64(n) == k && n >= 0
	}
	if f, ok := toFloat(key); ok {
		return KeyIndex(f)
	}
	return 0, false
}

// Get returns container[key]. A nil key returns the dereferenced container.
// Arrays also answer "length".
func Get(container, key any) (any, bool) {
	c := Deref(container)
	if key == nil {
		return c, c != nil
	}
	switch KindOf(c) {
	case Object:
		return c.(*reactive.Object).Get(KeyString(key))
	case Array:
		a := c.(*reactive.Array)
		if i, ok := KeyIndex(key); ok {
			return a.At(i)
		}
		if KeyString(key) == "length" {
			return a.Len(), true
		}
	case PlainMap:
		return plainMapGet(c, KeyString(key))
	case PlainSlice:
		rv := indirect(reflect.ValueOf(c))
		if i, ok := KeyIndex(key); ok {
			if i < rv.Len() {
				return rv.Index(i).Interface(), true
			}
			return nil, false
		}
		if KeyString(key) == "length" {
			return rv.Len(), true
		}
	case PlainStruct:
		return structField(c, KeyString(key))
	}
	return nil, false
}

// Has reports whether key is an own key or in-range index of the container.
func Has(container, key any) bool {
	c := Deref(container)
	if key == nil {
		return c != nil
	}
	switch KindOf(c) {
	case Object:
		return c.(*reactive.Object).Has(KeyString(key))
	case Array, PlainSlice:
		i, ok := KeyIndex(key)
		if !ok {
			return false
		}
		_, ok = Get(c, i)
		return ok
	case PlainMap, PlainStruct:
		_, ok := Get(c, key)
		return ok
	}
	return false
}

// Set writes container[key] = value and returns the stored value. A nil key
// writes the cell itself. Values written into reactive containers are made
// reactive; adding a key to an Object is observable by key-set listeners.
func Set(container, key, value any) (any, error) {
	if key == nil {
		if r, ok := container.(*reactive.Ref); ok {
			r.Set(value)
			return r.Peek(), nil
		}
		if c, ok := container.(*reactive.Computed); ok {
			return value, c.Set(value)
		}
		return nil, ErrNotContainer
	}
	c := Deref(container)
	switch KindOf(c) {
	case Object:
		return c.(*reactive.Object).Set(KeyString(key), value), nil
	case Array:
		i, ok := KeyIndex(key)
		if !ok {
			return nil, ErrInvalidIndex
		}
		return c.(*reactive.Array).SetAt(i, value), nil
	case PlainMap:
		if m, ok := c.(map[string]any); ok {
			m[KeyString(key)] = value
			return value, nil
		}
		return nil, ErrReadOnly
	case PlainSlice:
		s, ok := c.([]any)
		if !ok {
			return nil, ErrReadOnly
		}
		i, ok := KeyIndex(key)
		if !ok {
			return nil, ErrInvalidIndex
		}
		if i >= len(s) {
			return nil, ErrReadOnly
		}
		s[i] = value
		return value, nil
	case PlainStruct:
		return nil, ErrReadOnly
	}
	return nil, ErrNotContainer
}

// Remove deletes container[key]. Arrays splice the element out, shifting the
// rest; objects delete the key observably. It returns false when the container
// is neither an array nor an object, or the key is absent.
func Remove(container, key any) bool {
	c := Deref(container)
	switch KindOf(c) {
	case Object:
		return c.(*reactive.Object).Delete(KeyString(key))
	case Array:
		i, ok := KeyIndex(key)
		if !ok {
			return false
		}
		_, ok = c.(*reactive.Array).RemoveAt(i)
		return ok
	case PlainMap:
		m, ok := c.(map[string]any)
		if !ok {
			return false
		}
		k := KeyString(key)
		if _, exists := m[k]; !exists {
			return false
		}
		delete(m, k)
		return true
	}
	return false
}

func asArray(container any) (*reactive.Array, error) {
	a, ok := Deref(container).(*reactive.Array)
	if !ok {
		return nil, ErrNotArray
	}
	return a, nil
}

// Push appends value to the array and returns the inserted element.
func Push(container, value any) (any, error) {
	a, err := asArray(container)
	if err != nil {
		return nil, err
	}
	return a.Push(value), nil
}

// Unshift prepends value to the array and returns the array.
func Unshift(container, value any) (any, error) {
	a, err := asArray(container)
	if err != nil {
		return nil, err
	}
	a.Unshift(value)
	return a, nil
}

// Insert places value at index and returns the array. Indexes past the end
// append.
func Insert(container any, index int, value any) (any, error) {
	a, err := asArray(container)
	if err != nil {
		return nil, err
	}
	a.Insert(index, value)
	return a, nil
}

// Children returns the child keys of a container in iteration order: indexes
// for arrays and slices, own keys for objects and maps.
func Children(container any) []any {
	c := Deref(container)
	switch KindOf(c) {
	case Object:
		keys := c.(*reactive.Object).Keys()
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out
	case Array:
		return indexes(c.(*reactive.Array).Len())
	case PlainSlice:
		return indexes(indirect(reflect.ValueOf(c)).Len())
	case PlainMap:
		rv := indirect(reflect.ValueOf(c))
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sortStrings(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out
	}
	return nil
}

// IsIndexed reports whether children of v are addressed by index.
func IsIndexed(v any) bool {
	k := KindOf(Deref(v))
	return k == Array || k == PlainSlice
}

func indexes(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv
}

func plainMapGet(c any, key string) (any, bool) {
	if m, ok := c.(map[string]any); ok {
		v, ok := m[key]
		return v, ok
	}
	rv := indirect(reflect.ValueOf(c))
	v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

// structField looks key up by json tag first, then by field name.
func structField(c any, key string) (any, bool) {
	rv := indirect(reflect.ValueOf(c))
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == key || (name == "" && strings.EqualFold(f.Name, key)) {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}
