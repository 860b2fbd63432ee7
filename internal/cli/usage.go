package cli

import "github.com/spf13/cobra"

// UsageError reports a command invoked with bad flags or arguments.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

func flagUsageError(_ *cobra.Command, err error) error {
	return &UsageError{Err: err}
}

// markUsageErrors wraps the argument checks of cmd and its subcommands.
func markUsageErrors(cmd *cobra.Command) {
	if check := cmd.Args; check != nil {
		cmd.Args = func(c *cobra.Command, args []string) error {
			if err := check(c, args); err != nil {
				return &UsageError{Err: err}
			}
			return nil
		}
	}
	for _, sub := range cmd.Commands() {
		markUsageErrors(sub)
	}
}
