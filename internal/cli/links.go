package cli

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fmueller/vaultscribe/internal/links"
	"github.com/fmueller/vaultscribe/internal/runner"
	"github.com/spf13/cobra"
)

func newLinksCmd(app *appState) *cobra.Command {
	var (
		o        overrides
		vaultDir string
	)

	cmd := &cobra.Command{
		Use:   "links <note>",
		Short: "List the audio files a transcribe run would pick up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := app.loadSettings(cmd, o)
			if err != nil {
				return err
			}
			host, doc, err := openVault(args[0], vaultDir)
			if err != nil {
				return err
			}

			cfg := settings.Engine()
			refs, err := links.Collect(cmd.Context(), host, doc, cfg.Extensions, links.Options{Debug: cfg.Debug, Logger: app.log()})
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				writeLine(cmd.OutOrStdout(), "No audio links in %s", doc)
				return nil
			}

			rows := make([][]string, 0, len(refs))
			for i, ref := range refs {
				rows = append(rows, linkRow(i+1, host.Root(), ref))
			}
			writeLine(cmd.OutOrStdout(), "%s", renderTable(
				[]string{"#", "Link", "File", "Ext", "Size", "Transcript"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	bindVaultFlag(cmd, &vaultDir)
	bindOverrideFlags(cmd, &o, false)
	return cmd
}

func linkRow(n int, root string, ref links.AudioReference) []string {
	file := ref.Path
	if rel, err := filepath.Rel(root, ref.Path); err == nil {
		file = filepath.ToSlash(rel)
	}

	size := "?"
	if info, err := os.Stat(ref.Path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}

	transcript := "-"
	if info, err := os.Stat(runner.SidecarPath(ref)); err == nil {
		transcript = humanize.Time(info.ModTime())
	}

	return []string{strconv.Itoa(n), ref.Link.Target, file, ref.Extension, size, transcript}
}
