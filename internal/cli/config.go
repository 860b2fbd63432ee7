package cli

import (
	"fmt"

	"github.com/fmueller/vaultscribe/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change stored settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every setting with its current value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.settingsStore()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(config.Keys()))
			for _, key := range config.Keys() {
				value, err := store.Get(key)
				if err != nil {
					return err
				}
				rows = append(rows, []string{key, value})
			}
			writeLine(cmd.OutOrStdout(), "%s", renderTable([]string{"Key", "Value"}, rows, nil))
			if store.Path() != "" {
				writeLine(cmd.OutOrStdout(), "Settings file: %s", store.Path())
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.settingsStore()
			if err != nil {
				return err
			}
			value, err := store.Get(args[0])
			if err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), "%s", value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Validate and store one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.settingsStore()
			if err != nil {
				return err
			}
			if err := store.Set(args[0], args[1]); err != nil {
				return err
			}
			value, err := store.Get(args[0])
			if err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), "%s = %s", args[0], value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.settingsStore()
			if err != nil {
				return err
			}
			if store.Path() == "" {
				return fmt.Errorf("settings are not backed by a file")
			}
			writeLine(cmd.OutOrStdout(), "%s", store.Path())
			return nil
		},
	})

	return cmd
}
