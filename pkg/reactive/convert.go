package reactive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
)

// Reactive deep-converts plain containers in v into reactive ones.
// map[string]any becomes *Object, []any becomes *Array. Other maps with string
// keys, slices and structs are normalised through reflection or JSON. Values
// that are already reactive are returned as is.
func (rt *Runtime) Reactive(v any) any {
	switch x := v.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case *Object, *Array, *Ref, *Computed:
		return v
	case map[string]any:
		o := rt.NewObject()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			o.init(k, rt.Reactive(x[k]))
		}
		return o
	case []any:
		a := rt.NewArray()
		a.items = make([]any, len(x))
		for i, item := range x {
			a.items[i] = rt.Reactive(item)
		}
		return a
	}
	return rt.reflectReactive(v)
}

func (rt *Runtime) reflectReactive(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		plain := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			plain[iter.Key().String()] = iter.Value().Interface()
		}
		return rt.Reactive(plain)
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		plain := make([]any, rv.Len())
		for i := range plain {
			plain[i] = rv.Index(i).Interface()
		}
		return rt.Reactive(plain)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return rt.Reactive(rv.Elem().Interface())
	case reflect.Struct:
		data, err := json.Marshal(v)
		if err != nil {
			return v
		}
		out, err := rt.DecodeJSON(data)
		if err != nil {
			return v
		}
		return out
	}
	return v
}

// ToRaw returns a deep plain copy of v with every reactive container replaced
// by map[string]any or []any and every cell dereferenced. Reading does not
// subscribe the current listener.
func ToRaw(v any) any {
	switch x := v.(type) {
	case *Object:
		return x.Raw()
	case *Array:
		return x.Raw()
	case *Ref:
		return ToRaw(x.Peek())
	case *Computed:
		return ToRaw(x.Peek())
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, child := range x {
			out[k] = ToRaw(child)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, child := range x {
			out[i] = ToRaw(child)
		}
		return out
	}
	return v
}

// DecodeJSON decodes data into reactive values, keeping object keys in
// document order. Numbers decode as float64.
func (rt *Runtime) DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := rt.decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("reactive: unexpected data after JSON value")
	}
	return v, nil
}

func (rt *Runtime) decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			o := rt.NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("reactive: invalid object key %v", kt)
				}
				child, err := rt.decodeValue(dec)
				if err != nil {
					return nil, err
				}
				o.init(key, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return o, nil
		case '[':
			a := rt.NewArray()
			a.items = []any{}
			for dec.More() {
				child, err := rt.decodeValue(dec)
				if err != nil {
					return nil, err
				}
				a.items = append(a.items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return a, nil
		}
		return nil, fmt.Errorf("reactive: unexpected delimiter %v", t)
	}
	return tok, nil
}
