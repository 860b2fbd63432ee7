package cli

import (
	"github.com/fmueller/vaultscribe/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// overrides are per-invocation flag values that win over stored settings
// when the flag was given explicitly.
type overrides struct {
	debug      bool
	timestamps bool
	extensions string
	endpoint   string
	backend    string
}

func bindOverrideFlags(cmd *cobra.Command, o *overrides, full bool) {
	cmd.Flags().BoolVar(&o.debug, "debug", false, "Include error details in notifications and log skipped links")
	cmd.Flags().StringVar(&o.extensions, "extensions", "", "Comma separated audio extensions to pick up, e.g. mp3,wav,webm")
	if !full {
		return
	}
	cmd.Flags().BoolVar(&o.timestamps, "timestamps", false, "Prefix each transcript line with its start time")
	cmd.Flags().StringVar(&o.endpoint, "endpoint", "", "Base URL of the whisper-asr service")
	cmd.Flags().StringVar(&o.backend, "backend", "", "Transcription backend: whisper-asr|local")
}

func (o overrides) apply(cmd *cobra.Command, s config.Settings) config.Settings {
	flags := cmd.Flags()
	if flags.Changed("debug") {
		s.Debug = o.debug
	}
	if flags.Changed("extensions") {
		s.TranscribeFileExtensions = o.extensions
	}
	if flags.Lookup("timestamps") != nil && flags.Changed("timestamps") {
		s.Timestamps = o.timestamps
	}
	if flags.Lookup("endpoint") != nil && flags.Changed("endpoint") {
		s.WhisperASRURL = o.endpoint
	}
	if flags.Lookup("backend") != nil && flags.Changed("backend") {
		s.Backend = o.backend
	}
	return s
}

// loadSettings reads stored settings, applies command flags and validates
// the result. Debug mode raises the log level for the rest of the command.
func (a *appState) loadSettings(cmd *cobra.Command, o overrides) (config.Settings, error) {
	store, err := a.settingsStore()
	if err != nil {
		return config.Settings{}, err
	}

	settings, err := store.Settings()
	if err != nil {
		return config.Settings{}, err
	}

	settings = o.apply(cmd, settings)
	if err := config.Validate(settings); err != nil {
		return config.Settings{}, err
	}

	if settings.Debug && !a.verbose {
		if err := a.initLogger(true); err != nil {
			return config.Settings{}, err
		}
	}
	a.log().Debug("effective settings",
		zap.String("backend", settings.Backend),
		zap.String("endpoint", settings.WhisperASRURL),
		zap.Strings("extensions", config.ParseExtensions(settings.TranscribeFileExtensions).Sorted()),
		zap.Bool("timestamps", settings.Timestamps),
	)
	return settings, nil
}
