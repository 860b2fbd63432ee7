package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fmueller/vaultscribe/internal/asr"
	"github.com/fmueller/vaultscribe/internal/config"
	"github.com/fmueller/vaultscribe/internal/logging"
	"github.com/fmueller/vaultscribe/internal/platform"
	"github.com/fmueller/vaultscribe/internal/procreg"
	"github.com/fmueller/vaultscribe/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type appState struct {
	verbose    bool
	jsonLogs   bool
	noProgress bool
	configPath string

	logger    *zap.Logger
	store     *config.Store
	processes *procreg.Registry
	now       func() time.Time

	configPathFn  func() (string, error)
	transcriberFn func(ctx context.Context, settings config.Settings) (asr.Transcriber, error)
	progressFn    func() bool
}

func NewRootCmd() *cobra.Command {
	app := &appState{now: time.Now}
	app.configPathFn = defaultConfigPath
	app.transcriberFn = app.buildTranscriber
	app.progressFn = app.stderrIsTerminal
	return newRootCmd(app)
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vaultscribe",
		Short:         "Transcribe audio linked from Markdown notes and write the text back into the note",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve().String(),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return app.initLogger(false)
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	cmd.SetFlagErrorFunc(flagUsageError)

	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", false, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", false, "Enable JSON logging")
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", false, "Disable progress indicators")
	cmd.PersistentFlags().StringVar(&app.configPath, "config", "", "Settings file (default: config.toml in the user config directory)")

	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newLinksCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd())
	markUsageErrors(cmd)

	return cmd
}

// initLogger is called once before every command and again when the debug
// setting turns out to be on.
func (a *appState) initLogger(debug bool) error {
	logger, err := logging.New(logging.Options{Verbose: a.verbose, Debug: debug, JSON: a.jsonLogs})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

// settingsStore opens the settings file on first use.
func (a *appState) settingsStore() (*config.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	path := a.configPath
	if path == "" {
		pathFn := a.configPathFn
		if pathFn == nil {
			pathFn = defaultConfigPath
		}
		resolved, err := pathFn()
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	store, err := config.Open(path)
	if err != nil {
		return nil, err
	}
	a.log().Debug("settings loaded", zap.String("path", store.Path()))
	a.store = store
	return store, nil
}

func (a *appState) processRegistry() *procreg.Registry {
	if a.processes == nil {
		a.processes = procreg.New(a.log())
	}
	return a.processes
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	if a.progressFn == nil {
		return false
	}
	return a.progressFn()
}

func (a *appState) stderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

func defaultConfigPath() (string, error) {
	env, err := platform.CurrentEnv()
	if err != nil {
		return "", err
	}
	return env.ConfigFile()
}

func writeLine(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
