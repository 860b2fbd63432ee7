// Package whisper is the local transcription backend. It runs whisper-cli
// from whisper.cpp once per audio file.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/vaultscribe/internal/asr"
	"github.com/fmueller/vaultscribe/internal/config"
	"github.com/fmueller/vaultscribe/internal/procreg"
	"go.uber.org/zap"
)

const Name = config.BackendLocal

var lookPath = exec.LookPath

type Options struct {
	Executable string
	ModelPath  string
	Processes  *procreg.Registry
	Logger     *zap.Logger
	// TempDir holds the per-file scratch directories. Defaults to os.TempDir.
	TempDir string
}

type Engine struct {
	executable string
	modelPath  string
	processes  *procreg.Registry
	logger     *zap.Logger
	tempDir    string
}

func New(opts Options) (*Engine, error) {
	if strings.TrimSpace(opts.Executable) == "" {
		return nil, errors.New("whisper-cli path is required")
	}
	if strings.TrimSpace(opts.ModelPath) == "" {
		return nil, errors.New("model path is required")
	}
	if opts.Processes == nil {
		opts.Processes = procreg.New(opts.Logger)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		executable: opts.Executable,
		modelPath:  opts.ModelPath,
		processes:  opts.Processes,
		logger:     opts.Logger,
		tempDir:    opts.TempDir,
	}, nil
}

func (e *Engine) Name() string {
	return Name
}

// Transcribe writes audio to a scratch directory, runs whisper-cli with
// JSON output and reads the result back.
func (e *Engine) Transcribe(ctx context.Context, audio []byte, _ config.EngineConfig) (asr.TranscriptResult, error) {
	if err := checkExecutable(e.executable); err != nil {
		return asr.TranscriptResult{}, &asr.ServiceError{Backend: Name, Err: err}
	}

	scratch, err := os.MkdirTemp(e.tempDir, "vaultscribe-whisper-")
	if err != nil {
		return asr.TranscriptResult{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	input := filepath.Join(scratch, "input")
	if err := os.WriteFile(input, audio, 0o600); err != nil {
		return asr.TranscriptResult{}, fmt.Errorf("write audio: %w", err)
	}
	outBase := filepath.Join(scratch, "output")

	args := []string{"-m", e.modelPath, "-f", input, "-oj", "-of", outBase, "-l", "en", "-np"}
	cmd := exec.CommandContext(ctx, e.executable, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = procreg.DefaultGrace

	e.logger.Debug("running whisper-cli", zap.String("executable", e.executable), zap.Strings("args", args))
	started := time.Now()

	release, err := e.processes.Start(cmd)
	if err != nil {
		return asr.TranscriptResult{}, &asr.ServiceError{Backend: Name, Err: fmt.Errorf("start whisper-cli: %w", err)}
	}
	err = cmd.Wait()
	release()

	if err != nil {
		if ctx.Err() != nil {
			return asr.TranscriptResult{}, ctx.Err()
		}
		errText := strings.TrimSpace(stderr.String())
		if hint := describeFailure(errText); hint != "" {
			return asr.TranscriptResult{}, &asr.ServiceError{Backend: Name, Err: errors.New(hint), Body: truncate(errText)}
		}
		return asr.TranscriptResult{}, &asr.ServiceError{Backend: Name, Err: err, Body: truncate(errText)}
	}
	e.logger.Debug("whisper-cli finished", zap.Duration("elapsed", time.Since(started)))

	data, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return asr.TranscriptResult{}, &asr.ServiceError{Backend: Name, Err: fmt.Errorf("read whisper-cli output: %w", err)}
	}
	return decodeOutput(data)
}

type cliOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription *[]struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// decodeOutput converts the -oj document. Offsets are milliseconds.
func decodeOutput(data []byte) (asr.TranscriptResult, error) {
	var out cliOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return asr.TranscriptResult{}, &asr.ServiceError{Backend: Name, Err: fmt.Errorf("decode whisper-cli output: %w", err)}
	}
	if out.Transcription == nil {
		return asr.TranscriptResult{}, &asr.ServiceError{Backend: Name, Err: errors.New("whisper-cli output has no transcription")}
	}

	result := asr.TranscriptResult{Language: out.Result.Language, Segments: []asr.TranscriptSegment{}}
	var text strings.Builder
	for i, item := range *out.Transcription {
		result.Segments = append(result.Segments, asr.TranscriptSegment{
			ID:    i,
			Start: float64(item.Offsets.From) / 1000,
			End:   float64(item.Offsets.To) / 1000,
			Text:  item.Text,
		})
		text.WriteString(item.Text)
	}
	result.Text = text.String()
	return result, nil
}

func truncate(s string) string {
	const limit = 200
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
