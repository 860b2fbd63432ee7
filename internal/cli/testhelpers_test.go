package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fmueller/vaultscribe/internal/asr"
	"github.com/fmueller/vaultscribe/internal/config"
	"github.com/stretchr/testify/require"
)

// testApp returns an appState whose settings live in a temp file and whose
// backend is the given fake.
func testApp(t *testing.T, transcriber asr.Transcriber) *appState {
	t.Helper()

	configFile := filepath.Join(t.TempDir(), "config.toml")
	return &appState{
		now:          time.Now,
		configPathFn: func() (string, error) { return configFile, nil },
		transcriberFn: func(context.Context, config.Settings) (asr.Transcriber, error) {
			if transcriber == nil {
				t.Fatal("unexpected transcription backend request")
			}
			return transcriber, nil
		},
		progressFn: func() bool { return false },
	}
}

func runApp(t *testing.T, app *appState, args ...string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func runCommand(t *testing.T, args ...string) (stdout string, stderr string, err error) {
	t.Helper()
	return runApp(t, testApp(t, nil), args...)
}

// writeVault lays out files relative to a fresh vault root.
func writeVault(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

type stubTranscriber struct {
	mu      sync.Mutex
	results map[string]asr.TranscriptResult
	errs    map[string]error
	seen    []string
}

func (s *stubTranscriber) Name() string { return "stub" }

func (s *stubTranscriber) Transcribe(_ context.Context, audio []byte, _ config.EngineConfig) (asr.TranscriptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(audio)
	s.seen = append(s.seen, key)
	if err, ok := s.errs[key]; ok {
		return asr.TranscriptResult{}, err
	}
	return s.results[key], nil
}

func oneSegment(text string) asr.TranscriptResult {
	return asr.TranscriptResult{
		Text:     text,
		Language: "en",
		Segments: []asr.TranscriptSegment{{ID: 0, Start: 0, End: 1, Text: text}},
	}
}
