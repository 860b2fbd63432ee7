package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fmueller/vaultscribe/internal/download"
	"github.com/fmueller/vaultscribe/internal/platform"
	"github.com/fmueller/vaultscribe/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(app *appState) *cobra.Command {
	var model, modelDir string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Download and verify the speech model used by the local backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.settingsStore()
			if err != nil {
				return err
			}
			settings, err := store.Settings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("model") {
				settings.Model = model
			}
			if cmd.Flags().Changed("model-dir") {
				settings.ModelDir = modelDir
			}

			dir, err := platform.ResolveModelDir(settings.ModelDir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create model directory %s: %w", dir, err)
			}

			loc, err := whisper.Locate(settings.Model, dir)
			if err != nil {
				return err
			}
			if loc.Custom() {
				writeLine(cmd.OutOrStdout(), "Using custom model file %s; nothing to download", loc.Path)
				return nil
			}

			if loc.Present {
				err := download.Verify(loc.Path, loc.Model.SHA256)
				if err == nil {
					app.log().Info("model already present", zap.String("model", loc.Model.Name), zap.String("path", loc.Path))
					writeLine(cmd.OutOrStdout(), "Model %s already present at %s", loc.Model.Name, loc.Path)
					return nil
				}
				var mismatch *download.ChecksumError
				if !errors.As(err, &mismatch) {
					return err
				}
				app.log().Warn("model checksum mismatch; downloading a fresh copy", zap.String("model", loc.Model.Name), zap.Error(err))
			}

			fetcher := download.NewFetcher(download.Options{
				Logger:     app.log(),
				Progress:   cmd.ErrOrStderr(),
				NoProgress: !app.progressEnabled(),
			})
			app.log().Info("downloading model", zap.String("model", loc.Model.Name), zap.String("path", loc.Path))
			if err := fetcher.Fetch(cmd.Context(), download.Request{
				URL:         loc.Model.URL,
				Destination: loc.Path,
				SHA256:      loc.Model.SHA256,
				Label:       "ggml " + loc.Model.Name,
			}); err != nil {
				return fmt.Errorf("download model %s: %w", loc.Model.Name, err)
			}

			writeLine(cmd.OutOrStdout(), "Model %s installed at %s", loc.Model.Name, loc.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Model name or model file path (default: the model setting)")
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "Directory where models are stored (default: the modelDir setting)")
	return cmd
}
