package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fmueller/vaultscribe/internal/asr"
	"github.com/fmueller/vaultscribe/internal/asr/whisperasr"
	"github.com/fmueller/vaultscribe/internal/config"
	"github.com/fmueller/vaultscribe/internal/notify"
	"github.com/fmueller/vaultscribe/internal/platform"
	"github.com/fmueller/vaultscribe/internal/procreg"
	"github.com/fmueller/vaultscribe/internal/runner"
	"github.com/fmueller/vaultscribe/internal/vault"
	"github.com/fmueller/vaultscribe/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrSomeFailed is returned by transcribe when at least one audio file
// could not be transcribed or written back.
var ErrSomeFailed = errors.New("some transcriptions failed")

func newTranscribeCmd(app *appState) *cobra.Command {
	var (
		o         overrides
		vaultDir  string
		serialize bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <note>",
		Short: "Transcribe every audio file linked from a note",
		Long: "Transcribe every audio file linked from a note. Each transcript is inserted\n" +
			"right after its link and saved as <name>.json next to the audio file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runTranscribe(cmd, args[0], vaultDir, serialize, o)
		},
	}

	bindVaultFlag(cmd, &vaultDir)
	bindOverrideFlags(cmd, &o, true)
	cmd.Flags().BoolVar(&serialize, "serialize-edits", true, "Lock the note while each transcript is inserted")
	return cmd
}

func bindVaultFlag(cmd *cobra.Command, dir *string) {
	cmd.Flags().StringVar(dir, "vault", "", "Vault root used to resolve links (default: the note's directory)")
}

func (a *appState) runTranscribe(cmd *cobra.Command, notePath, vaultDir string, serialize bool, o overrides) error {
	settings, err := a.loadSettings(cmd, o)
	if err != nil {
		return err
	}

	host, doc, err := openVault(notePath, vaultDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transcriberFn := a.transcriberFn
	if transcriberFn == nil {
		transcriberFn = a.buildTranscriber
	}
	defer a.stopHelpers()
	transcriber, err := transcriberFn(ctx, settings)
	if err != nil {
		return err
	}

	progress := newFanoutProgress(a.progressEnabled(), cmd.ErrOrStderr())
	opts := runner.Options{
		Host:        host,
		Transcriber: transcriber,
		Notifier:    a.notifier(cmd, settings, progress),
		Logger:      a.log(),
		OnComplete:  progress.complete,
	}
	if serialize {
		opts.Locker = host
	}

	r, err := runner.New(opts)
	if err != nil {
		return err
	}

	started := a.clock()
	run, err := r.Start(ctx, doc, settings.Engine())
	if err != nil {
		return err
	}
	if len(run.Candidates) == 0 {
		writeLine(cmd.OutOrStdout(), "No audio links in %s", doc)
		return nil
	}
	progress.start(len(run.Candidates))

	// An interrupt stops helper processes while tasks are still waiting
	// on them.
	cancelShutdown := context.AfterFunc(ctx, a.stopHelpers)
	defer cancelShutdown()

	summary := run.Wait()
	progress.finish()

	a.log().Info("transcription run finished",
		zap.String("run_id", run.ID),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", a.clock().Sub(started)),
	)
	printSummary(cmd, doc, summary, settings.Debug)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transcription interrupted: %w", err)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrSomeFailed, summary.Failed, summary.Total)
	}
	return nil
}

func printSummary(cmd *cobra.Command, doc string, summary runner.Summary, debug bool) {
	out := cmd.OutOrStdout()
	writeLine(out, "Transcribed %d of %d audio files in %s", summary.Succeeded, summary.Total, doc)
	for _, o := range summary.Outcomes {
		target := o.Reference.Link.Target
		switch {
		case o.Err != nil && debug:
			writeLine(out, "  failed  %s: %v", target, o.Err)
		case o.Err != nil:
			writeLine(out, "  failed  %s", target)
		case isBlankTranscript(o.Text):
			writeLine(out, "  ok      %s (%s)", target, noSpeechHint())
		default:
			writeLine(out, "  ok      %s -> %s", target, filepath.Base(o.Sidecar))
		}
	}
}

// stopHelpers terminates helper processes of the local backend. Later
// process starts fail with procreg.ErrClosed.
func (a *appState) stopHelpers() {
	if a.processes == nil {
		return
	}
	if err := a.processes.Shutdown(context.Background(), procreg.DefaultGrace); err != nil {
		a.log().Warn("failed to stop helper processes", zap.Error(err))
	}
}

// openVault opens the vault for notePath and returns the note's identity
// inside it.
func openVault(notePath, vaultDir string) (*vault.FS, string, error) {
	abs, err := filepath.Abs(notePath)
	if err != nil {
		return nil, "", fmt.Errorf("resolve note path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, "", fmt.Errorf("note not found: %w", err)
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("note %s is a directory", notePath)
	}

	if strings.TrimSpace(vaultDir) == "" {
		vaultDir = filepath.Dir(abs)
	}
	host, err := vault.NewFS(vaultDir)
	if err != nil {
		return nil, "", err
	}

	rel, err := filepath.Rel(host.Root(), abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, "", fmt.Errorf("note %s is outside vault %s", notePath, host.Root())
	}
	return host, filepath.ToSlash(rel), nil
}

// notifier sends console messages through the progress bar, which shares
// stderr with them.
func (a *appState) notifier(cmd *cobra.Command, settings config.Settings, progress *fanoutProgress) notify.Notifier {
	sinks := notify.Multi{progress.around(notify.NewConsole(cmd.ErrOrStderr()))}
	if topic := strings.TrimSpace(settings.NtfyTopic); topic != "" {
		sinks = append(sinks, notify.NewNtfy(topic, 0))
	}
	return sinks
}

// buildTranscriber registers the available backends and picks the
// configured one.
func (a *appState) buildTranscriber(_ context.Context, settings config.Settings) (asr.Transcriber, error) {
	backends := asr.NewRegistry()
	backends.Register(whisperasr.Name, whisperasr.New(whisperasr.Options{Timeout: settings.RequestTimeout, Logger: a.log()}))

	if settings.Backend == config.BackendLocal {
		engine, err := a.localEngine(settings)
		if err != nil {
			return nil, err
		}
		backends.Register(whisper.Name, engine)
	}

	return backends.Select(settings.Backend)
}

func (a *appState) localEngine(settings config.Settings) (*whisper.Engine, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve vaultscribe executable path: %w", err)
	}
	executable, err := whisper.FindExecutable(self)
	if err != nil {
		return nil, err
	}

	modelDir, err := platform.ResolveModelDir(settings.ModelDir)
	if err != nil {
		return nil, err
	}
	model, err := whisper.Locate(settings.Model, modelDir)
	if err != nil {
		return nil, err
	}
	if !model.Present {
		return nil, fmt.Errorf("model %q is missing at %s; run `vaultscribe setup`", model.Model.Name, model.Path)
	}

	return whisper.New(whisper.Options{
		Executable: executable,
		ModelPath:  model.Path,
		Processes:  a.processRegistry(),
		Logger:     a.log(),
	})
}
