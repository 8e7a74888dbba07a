package node

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LooseEqual compares a stored value with a filter operand. Numbers compare
// numerically across kinds and against numeric strings, booleans match
// "true"/"false", nil matches "null". Everything else compares as text.
func LooseEqual(stored, operand any) bool {
	stored = Deref(stored)
	if stored == nil || operand == nil {
		if stored == nil && operand == nil {
			return true
		}
		s, ok := operand.(string)
		if stored == nil && ok {
			return s == "null"
		}
		return false
	}

	if ss, ok := stored.(string); ok {
		if os, ok := operand.(string); ok {
			return ss == os
		}
	}

	sf, sok := toFloat(stored)
	of, ook := toFloat(operand)
	if sok && ook {
		return sf == of
	}

	if sb, ok := stored.(bool); ok {
		switch o := operand.(type) {
		case bool:
			return sb == o
		case string:
			b, err := strconv.ParseBool(o)
			return err == nil && b == sb
		}
		return false
	}

	if !IsContainer(stored) {
		return toString(stored) == toString(operand)
	}
	return false
}

// toFloat converts numbers and numeric strings to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// IsNumber reports whether v is a Go numeric value.
func IsNumber(v any) bool {
	if _, ok := v.(string); ok {
		return false
	}
	_, ok := toFloat(v)
	return ok
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

// String renders a scalar key value as text.
func String(v any) string {
	return toString(v)
}

func sortStrings(s []string) {
	sort.Strings(s)
}
