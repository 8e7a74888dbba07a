package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/teddy"
	"github.com/vango-dev/teddy/internal/errors"
	"github.com/vango-dev/teddy/pkg/path"
)

func addAccessFlags(cmd *cobra.Command, f *accessFlags) {
	cmd.Flags().StringVar(&f.vars, "vars", "", `Placeholder values as a JSON object, e.g. '{"id": "a"}'`)
	cmd.Flags().StringVarP(&f.output, "output", "o", "json", "Output format: json or yaml")
}

func getCmd() *cobra.Command {
	var flags accessFlags

	cmd := &cobra.Command{
		Use:   "get <file> [path]",
		Short: "Print the value at a path",
		Long: `Print the value at a path of a JSON or YAML state file.

Without a path the whole state is printed.

Examples:
  teddy get state.json products.0.name
  teddy get state.yaml 'products[id={id}].price' --vars '{"id": "a"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			sf, err := openState(args[0])
			if err != nil {
				return err
			}
			defer sf.Close()

			raw := ""
			if len(args) == 2 {
				raw = args[1]
			}
			if _, err := path.Parse(raw); err != nil {
				return err
			}
			if raw != "" && !sf.store.Has(raw, opts...) {
				return errors.Newf(errors.CategoryPath, "No value at %q", raw)
			}
			return printResult(cmd.OutOrStdout(), sf.store.Get(raw, opts...), flags.output)
		},
	}
	addAccessFlags(cmd, &flags)
	return cmd
}

// mutation is a write command: it loads the file, applies apply and prints
// its result, then writes the file back when --write is set.
type mutation struct {
	use, short, long string
	args             cobra.PositionalArgs
	apply            func(s *teddy.Store, args []string, opts []teddy.AccessOption) (any, error)
	flags            func(cmd *cobra.Command)
}

func (m mutation) command() *cobra.Command {
	var (
		flags accessFlags
		write bool
	)

	cmd := &cobra.Command{
		Use:   m.use,
		Short: m.short,
		Long:  m.long,
		Args:  m.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			sf, err := openState(args[0])
			if err != nil {
				return err
			}
			defer sf.Close()

			result, err := m.apply(sf.store, args[1:], opts)
			if err != nil {
				return err
			}
			if err := printResult(cmd.OutOrStdout(), result, flags.output); err != nil {
				return err
			}
			if !write {
				return nil
			}
			if err := sf.save(); err != nil {
				return err
			}
			success(cmd.ErrOrStderr(), "Wrote %s", sf.path)
			return nil
		},
	}
	addAccessFlags(cmd, &flags)
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the file")
	if m.flags != nil {
		m.flags(cmd)
	}
	return cmd
}

func setCmd() *cobra.Command {
	return mutation{
		use:   "set <file> <path> <json>",
		short: "Set the value at a path",
		long: `Set the value at a path, creating missing objects and arrays.

The value is parsed as JSON, so strings need quotes.

Examples:
  teddy set state.json products.0.price 12.5 --write
  teddy set state.json 'user.name' '"bear"'`,
		args: cobra.ExactArgs(3),
		apply: func(s *teddy.Store, args []string, opts []teddy.AccessOption) (any, error) {
			v, err := parseJSONArg(args[1])
			if err != nil {
				return nil, err
			}
			if err := s.Set(args[0], v, opts...); err != nil {
				return nil, err
			}
			return s.Get(args[0], opts...), nil
		},
	}.command()
}

func removeCmd() *cobra.Command {
	return mutation{
		use:   "remove <file> <path>",
		short: "Remove the value at a path",
		long: `Remove the value at a path and print whether anything was removed.

Example:
  teddy remove state.json 'products[id=a]' --write`,
		args: cobra.ExactArgs(2),
		apply: func(s *teddy.Store, args []string, opts []teddy.AccessOption) (any, error) {
			return s.Remove(args[0], opts...)
		},
	}.command()
}

func pushCmd() *cobra.Command {
	return mutation{
		use:   "push <file> <path> <json>",
		short: "Append a value to the array at a path",
		long: `Append a value to the array at a path, creating the array if needed.

Example:
  teddy push state.json products '{"id": "c", "name": "honey"}' --write`,
		args: cobra.ExactArgs(3),
		apply: func(s *teddy.Store, args []string, opts []teddy.AccessOption) (any, error) {
			v, err := parseJSONArg(args[1])
			if err != nil {
				return nil, err
			}
			return s.Push(args[0], v, opts...)
		},
	}.command()
}

func unshiftCmd() *cobra.Command {
	return mutation{
		use:   "unshift <file> <path> <json>",
		short: "Prepend a value to the array at a path",
		args:  cobra.ExactArgs(3),
		apply: func(s *teddy.Store, args []string, opts []teddy.AccessOption) (any, error) {
			v, err := parseJSONArg(args[1])
			if err != nil {
				return nil, err
			}
			return s.Unshift(args[0], v, opts...)
		},
	}.command()
}

func insertCmd() *cobra.Command {
	var index int

	return mutation{
		use:   "insert <file> <path> <json>",
		short: "Insert a value into the array at a path",
		long: `Insert a value into the array at a path.

The position comes from --index, else from a trailing index in the path.
Without either the value is appended.

Examples:
  teddy insert state.json products '"b"' --index 1
  teddy insert state.json products.0 '"first"'`,
		args: cobra.ExactArgs(3),
		apply: func(s *teddy.Store, args []string, opts []teddy.AccessOption) (any, error) {
			v, err := parseJSONArg(args[1])
			if err != nil {
				return nil, err
			}
			if index >= 0 {
				opts = append(opts, teddy.AtIndex(index))
			}
			return s.Insert(args[0], v, opts...)
		},
		flags: func(cmd *cobra.Command) {
			cmd.Flags().IntVar(&index, "index", -1, "Position to insert at")
		},
	}.command()
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <path>",
		Short: "Print the steps of a path expression",
		Long: `Parse a path expression and print one step per line.

Example:
  teddy parse 'products[id={id}].tags.*'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := path.Parse(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for i, step := range p.Steps {
				line := fmt.Sprintf("%d\t%s\t%s", i, step.Kind, step)
				if step.Forced {
					line += "\tforced"
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
}

func evalCmd() *cobra.Command {
	var (
		output  string
		rawArgs string
	)

	cmd := &cobra.Command{
		Use:   "eval <file> <expr>",
		Short: "Evaluate an expression against a state file",
		Long: `Evaluate an expr-lang expression against a state file.

Top-level keys are variables; state, args and get(path) are also available.

Examples:
  teddy eval state.json 'len(products)'
  teddy eval state.json 'filter(products, .price > args[0])' --args '[10]'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var exprArgs []any
			if rawArgs != "" {
				v, err := parseJSONArg(rawArgs)
				if err != nil {
					return err
				}
				list, ok := v.([]any)
				if !ok {
					return errors.New("T113").WithDetail("--args must be a JSON array.")
				}
				exprArgs = list
			}
			sf, err := openState(args[0])
			if err != nil {
				return err
			}
			defer sf.Close()

			v, err := sf.store.EvalExpr(args[1], exprArgs...)
			if err != nil {
				return errors.New("T130").
					WithDetail(strings.TrimSpace(err.Error())).
					WithInput(args[1], 0)
			}
			return printResult(cmd.OutOrStdout(), v, output)
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "Expression arguments as a JSON array")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	return cmd
}
