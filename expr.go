package teddy

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/vango-dev/teddy/pkg/reactive"
)

// ExprGetter compiles an expr-lang expression into a parameterized getter.
//
// The expression sees the top-level keys of the state as variables, the whole
// state as "state", the call arguments as "args" and a get(path) function
// reading any path of the store:
//
//	teddy.ExprGetter(`len(products)`)
//	teddy.ExprGetter(`filter(products, .price > args[0])`)
//	teddy.ExprGetter(`get("products.0.name") + "!"`)
//
// Evaluation errors are returned by Store.Eval and logged by Resolve.
func ExprGetter(expression string) (GetterDef, error) {
	program, err := compileExpr(expression)
	if err != nil {
		return GetterDef{}, err
	}
	return GetterDef{
		get: func(s *Store, args []any) any {
			v, err := s.runExpr(program, args)
			if err != nil {
				panic(fmt.Errorf("teddy: expr %q: %w", expression, err))
			}
			return v
		},
		param: true,
	}, nil
}

// MustExprGetter is like ExprGetter but panics when the expression does
// not compile.
func MustExprGetter(expression string) GetterDef {
	g, err := ExprGetter(expression)
	if err != nil {
		panic(err)
	}
	return g
}

// EvalExpr evaluates an expression once against the store, with the same
// environment as ExprGetter.
func (s *Store) EvalExpr(expression string, args ...any) (any, error) {
	program, err := compileExpr(expression)
	if err != nil {
		return nil, err
	}
	return s.runExpr(program, args)
}

func compileExpr(expression string) (*vm.Program, error) {
	if expression == "" {
		return nil, fmt.Errorf("teddy: expression must not be empty")
	}
	program, err := expr.Compile(expression,
		expr.Env(map[string]any{
			"args": []any{},
			"get":  func(string) any { return nil },
		}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("teddy: compile %q: %w", expression, err)
	}
	return program, nil
}

func (s *Store) runExpr(program *vm.Program, args []any) (any, error) {
	// subscribe to the whole state so the derivation follows any change
	reactive.Touch(s.state.Value())
	state := s.Raw()

	env := make(map[string]any)
	if m, ok := state.(map[string]any); ok {
		for k, v := range m {
			env[k] = v
		}
	}
	if args == nil {
		args = []any{}
	}
	env["state"] = state
	env["args"] = args
	env["get"] = func(raw string) any {
		p, err := s.parse(raw)
		if err != nil {
			return nil
		}
		return reactive.ToRaw(s.read(p, nil))
	}
	return expr.Run(program, env)
}
