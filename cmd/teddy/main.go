package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/teddy/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(errors.FromError(err, "T131"))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "teddy",
		Short: "Read and write path-addressed state",
		Long: `Teddy is a path-addressable reactive state container.

The teddy CLI applies path expressions to JSON or YAML state files
and serves stores over HTTP:

  teddy get state.json 'products[id=a].name'
  teddy set state.json 'products.0.price' 12.5 --write
  teddy serve --config .`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		getCmd(),
		setCmd(),
		removeCmd(),
		pushCmd(),
		unshiftCmd(),
		insertCmd(),
		parseCmd(),
		evalCmd(),
		serveCmd(),
		versionCmd(),
	)

	return rootCmd
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
