package engine

import (
	"strings"

	"github.com/vango-dev/teddy/pkg/node"
	"github.com/vango-dev/teddy/pkg/path"
)

// resolveKey turns a non-wildcard step into a concrete key for cur.
// Index steps yield int, everything else string or int.
func (e *Engine) resolveKey(cur any, step path.Step, vars any) (any, error) {
	switch step.Kind {
	case path.Key:
		return step.Key, nil
	case path.Index:
		return step.Index, nil
	case path.Variable:
		v, err := e.resolveTemplate(step.Template, vars)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(string); ok {
			return s, nil
		}
		if i, ok := node.KeyIndex(v); ok {
			return i, nil
		}
		return node.String(v), nil
	case path.Filter:
		return e.matchFilter(cur, step, vars)
	}
	return nil, ErrNotContainer
}

// resolveTemplate evaluates every placeholder of tpl against vars. A template
// made of exactly one placeholder yields the resolved value unchanged.
func (e *Engine) resolveTemplate(tpl path.Template, vars any) (any, error) {
	if sub, ok := tpl.Single(); ok {
		return e.resolveVar(sub, vars)
	}
	var b strings.Builder
	for _, part := range tpl {
		if part.Var == nil {
			b.WriteString(part.Text)
			continue
		}
		v, err := e.resolveVar(part.Var, vars)
		if err != nil {
			return nil, err
		}
		b.WriteString(node.String(v))
	}
	return b.String(), nil
}

// resolveVar looks a placeholder's sub-path up in vars. Only strings and
// numbers are valid keys.
func (e *Engine) resolveVar(sub *path.Path, vars any) (any, error) {
	v, ok := e.lookup(vars, sub.Steps, vars)
	if !ok {
		return nil, &InvalidVariableError{Variable: sub.String(), Missing: true}
	}
	v = node.Deref(v)
	if _, isStr := v.(string); isStr || node.IsNumber(v) {
		return v, nil
	}
	return nil, &InvalidVariableError{Variable: sub.String(), Value: v}
}

// matchFilter returns the key of the first child of cur whose filter key
// loosely equals the filter value.
func (e *Engine) matchFilter(cur any, step path.Step, vars any) (any, error) {
	k, err := e.resolveTemplate(step.FilterKey, vars)
	if err != nil {
		return nil, err
	}
	want, err := e.resolveTemplate(step.FilterValue, vars)
	if err != nil {
		return nil, err
	}

	key := node.String(k)
	var sub *path.Path
	if strings.ContainsAny(key, ".[") {
		if p, err := e.parse(key); err == nil {
			sub = p
		}
	}

	c := node.Deref(cur)
	for _, child := range node.Children(c) {
		el, _ := node.Get(c, child)
		var (
			got any
			ok  bool
		)
		if sub != nil {
			got, ok = e.lookup(el, sub.Steps, nil)
		} else {
			got, ok = node.Get(el, key)
		}
		if ok && node.LooseEqual(got, want) {
			return child, nil
		}
	}
	return nil, ErrNoMatch
}

// wantsArray decides the container type to create in front of step.
func (e *Engine) wantsArray(step path.Step, vars any) bool {
	switch step.Kind {
	case path.Index, path.Filter, path.Wildcard:
		return true
	case path.Variable:
		if step.Forced {
			return false
		}
		v, err := e.resolveTemplate(step.Template, vars)
		if err != nil {
			return false
		}
		if s, ok := v.(string); ok {
			return path.LooksLikeIndex(s)
		}
		_, ok := node.KeyIndex(v)
		return ok
	}
	return false
}
