package cli

import (
	"github.com/fmueller/vaultscribe/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			writeLine(cmd.OutOrStdout(), "vaultscribe v%s", version.Resolve())
			return nil
		},
	}
}
