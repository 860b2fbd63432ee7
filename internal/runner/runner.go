// Package runner transcribes every audio file linked from a note
// concurrently and folds each result back into the note and a sidecar file.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fmueller/vaultscribe/internal/asr"
	"github.com/fmueller/vaultscribe/internal/config"
	"github.com/fmueller/vaultscribe/internal/links"
	"github.com/fmueller/vaultscribe/internal/notify"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrCitationMissing = errors.New("link no longer present in note")

// Host is the note host used by a run.
type Host interface {
	links.Host
	ReadDocument(ctx context.Context, doc string) (string, error)
	WriteDocument(ctx context.Context, doc, text string) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
}

// DocumentLocker serializes read-modify-write cycles on one note. Without
// it concurrent completions on the same note are last-write-wins.
type DocumentLocker interface {
	LockDocument(ctx context.Context, doc string) (unlock func() error, err error)
}

// DocumentWriteError reports a failed write of the note or of a sidecar.
type DocumentWriteError struct {
	Path string
	Err  error
}

func (e *DocumentWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *DocumentWriteError) Unwrap() error {
	return e.Err
}

// Outcome is the result for one audio reference. Err joins every failure
// of that reference.
type Outcome struct {
	Reference links.AudioReference
	// Text is the rendered transcript, empty when transcription failed.
	Text     string
	Sidecar  string
	Inserted bool
	Err      error
}

type Options struct {
	Host        Host
	Transcriber asr.Transcriber
	Notifier    notify.Notifier
	Locker      DocumentLocker
	Logger      *zap.Logger
	// OnComplete is called once per reference from the worker goroutine.
	OnComplete func(Outcome)
}

type Runner struct {
	host        Host
	transcriber asr.Transcriber
	notifier    notify.Notifier
	locker      DocumentLocker
	logger      *zap.Logger
	onComplete  func(Outcome)
}

func New(opts Options) (*Runner, error) {
	if opts.Host == nil {
		return nil, errors.New("runner requires a host")
	}
	if opts.Transcriber == nil {
		return nil, errors.New("runner requires a transcriber")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		host:        opts.Host,
		transcriber: opts.Transcriber,
		notifier:    opts.Notifier,
		locker:      opts.Locker,
		logger:      opts.Logger,
		onComplete:  opts.OnComplete,
	}, nil
}

// Run tracks the tasks started for one note.
type Run struct {
	ID         string
	Document   string
	Candidates []links.AudioReference

	group    errgroup.Group
	mu       sync.Mutex
	outcomes []Outcome
}

// Summary is the state of a finished run. Outcomes are in completion order.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Outcomes  []Outcome
}

// Start collects the audio references of doc and launches one task per
// reference. It returns without waiting; use Wait to observe completion.
func (r *Runner) Start(ctx context.Context, doc string, cfg config.EngineConfig) (*Run, error) {
	refs, err := links.Collect(ctx, r.host, doc, cfg.Extensions, links.Options{Debug: cfg.Debug, Logger: r.logger})
	if err != nil {
		return nil, err
	}

	run := &Run{ID: uuid.NewString(), Document: doc, Candidates: refs}
	logger := r.logger.With(zap.String("run_id", run.ID), zap.String("note", doc))
	logger.Info("transcription run started", zap.Int("candidates", len(refs)), zap.String("backend", r.transcriber.Name()))

	for _, ref := range refs {
		ref := ref
		run.group.Go(func() error {
			outcome := r.process(ctx, logger, cfg, ref)
			run.record(outcome)
			if r.onComplete != nil {
				r.onComplete(outcome)
			}
			return nil
		})
	}

	return run, nil
}

// Wait blocks until every task of the run has finished.
func (run *Run) Wait() Summary {
	_ = run.group.Wait()

	run.mu.Lock()
	defer run.mu.Unlock()

	summary := Summary{Total: len(run.Candidates), Outcomes: append([]Outcome(nil), run.outcomes...)}
	for _, o := range run.outcomes {
		if o.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	return summary
}

func (run *Run) record(o Outcome) {
	run.mu.Lock()
	defer run.mu.Unlock()
	run.outcomes = append(run.outcomes, o)
}

func (r *Runner) process(ctx context.Context, logger *zap.Logger, cfg config.EngineConfig, ref links.AudioReference) Outcome {
	outcome := Outcome{Reference: ref}
	logger = logger.With(zap.String("audio", ref.Path))
	started := time.Now()

	audio, err := r.host.ReadFile(ctx, ref.Path)
	if err != nil {
		outcome.Err = fmt.Errorf("read audio: %w", err)
		r.report(ctx, logger, cfg, ref, outcome.Err)
		return outcome
	}

	result, err := r.transcriber.Transcribe(ctx, audio, cfg)
	if err != nil {
		outcome.Err = err
		r.report(ctx, logger, cfg, ref, err)
		return outcome
	}
	logger.Info("transcription finished", zap.Int("segments", len(result.Segments)), zap.Duration("elapsed", time.Since(started)))
	outcome.Text = Render(result, cfg.Timestamps)

	var errs []error
	if err := r.integrate(ctx, ref, outcome.Text); err != nil {
		errs = append(errs, err)
		r.report(ctx, logger, cfg, ref, err)
	} else {
		outcome.Inserted = true
	}

	sidecar, err := r.writeSidecar(ctx, ref, result)
	if err != nil {
		errs = append(errs, err)
		r.report(ctx, logger, cfg, ref, err)
	} else {
		outcome.Sidecar = sidecar
		logger.Debug("sidecar written", zap.String("path", sidecar))
	}

	outcome.Err = errors.Join(errs...)
	return outcome
}

// integrate re-reads the note at completion time so edits made while the
// transcription was in flight are kept.
func (r *Runner) integrate(ctx context.Context, ref links.AudioReference, text string) error {
	if r.locker != nil {
		unlock, err := r.locker.LockDocument(ctx, ref.Document)
		if err != nil {
			return &DocumentWriteError{Path: ref.Document, Err: err}
		}
		defer func() {
			if err := unlock(); err != nil {
				r.logger.Warn("failed to release note lock", zap.String("note", ref.Document), zap.Error(err))
			}
		}()
	}

	current, err := r.host.ReadDocument(ctx, ref.Document)
	if err != nil {
		return &DocumentWriteError{Path: ref.Document, Err: err}
	}

	updated, ok := Splice(current, ref.Citation(), text)
	if !ok {
		return &DocumentWriteError{Path: ref.Document, Err: ErrCitationMissing}
	}

	if err := r.host.WriteDocument(ctx, ref.Document, updated); err != nil {
		return &DocumentWriteError{Path: ref.Document, Err: err}
	}
	return nil
}

// SidecarPath is where the JSON copy of a transcript for ref is written.
func SidecarPath(ref links.AudioReference) string {
	return filepath.Join(filepath.Dir(ref.Path), ref.Stem()+".json")
}

func (r *Runner) writeSidecar(ctx context.Context, ref links.AudioReference, result asr.TranscriptResult) (string, error) {
	path := SidecarPath(ref)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode sidecar: %w", err)
	}
	if err := r.host.WriteFile(ctx, path, data); err != nil {
		return "", &DocumentWriteError{Path: path, Err: err}
	}
	return path, nil
}

func (r *Runner) report(ctx context.Context, logger *zap.Logger, cfg config.EngineConfig, ref links.AudioReference, err error) {
	logger.Warn("transcription step failed", zap.Error(err))
	if nerr := r.notifier.Notify(ctx, FailureMessage(ref, err, cfg.Debug)); nerr != nil {
		logger.Warn("failed to deliver notification", zap.Error(nerr))
	}
}

// FailureMessage names the file; the error text is included only in debug
// mode.
func FailureMessage(ref links.AudioReference, err error, debug bool) notify.Message {
	body := fmt.Sprintf("Error transcribing %s. Enable debug mode for more details.", ref.Link.Target)
	if debug {
		body = fmt.Sprintf("Error transcribing %s: %v", ref.Link.Target, err)
	}
	return notify.Message{Level: notify.LevelError, Title: "vaultscribe", Body: body}
}
