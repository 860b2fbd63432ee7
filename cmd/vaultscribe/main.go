package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fmueller/vaultscribe/internal/cli"
	"github.com/fmueller/vaultscribe/internal/config"
	"github.com/spf13/cobra"
)

const (
	exitOK = iota
	exitFailure
	exitUsage
	exitPartial
)

func main() {
	os.Exit(run(cli.NewRootCmd(), os.Args[1:], os.Stderr))
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "vaultscribe: %v\n", err)

	var cfgErr *config.ConfigurationError
	switch {
	case isUsageError(err):
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", helpHintTarget(root, args))
		return exitUsage
	case errors.As(err, &cfgErr):
		fmt.Fprintln(stderr, "Run 'vaultscribe config list' to review your settings.")
		return exitUsage
	case errors.Is(err, cli.ErrSomeFailed):
		return exitPartial
	default:
		return exitFailure
	}
}

func isUsageError(err error) bool {
	if err == nil {
		return false
	}
	var usageErr *cli.UsageError
	if errors.As(err, &usageErr) {
		return true
	}
	// cobra resolves subcommands before any hook can wrap the error.
	return strings.HasPrefix(err.Error(), "unknown command ")
}

// helpHintTarget names the deepest command the arguments reach.
func helpHintTarget(root *cobra.Command, args []string) string {
	if root == nil {
		return "vaultscribe"
	}
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return root.CommandPath()
	}
	if found, _, err := root.Find(args); err == nil && found != nil {
		return found.CommandPath()
	}
	return root.CommandPath()
}
