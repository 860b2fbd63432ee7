package runner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fmueller/vaultscribe/internal/asr"
	"github.com/fmueller/vaultscribe/internal/config"
	"github.com/fmueller/vaultscribe/internal/notify"
	"github.com/fmueller/vaultscribe/internal/vault"
	"github.com/stretchr/testify/require"
)

type memHost struct {
	mu      sync.Mutex
	docs    map[string]string
	files   map[string][]byte
	writeOK bool
}

func newMemHost(doc, text string, audio ...string) *memHost {
	h := &memHost{docs: map[string]string{doc: text}, files: map[string][]byte{}, writeOK: true}
	for _, name := range audio {
		h.files["/vault/"+name] = []byte("audio:" + name)
	}
	return h
}

func (h *memHost) Links(_ context.Context, doc string) ([]vault.Link, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return vault.ParseLinks(h.docs[doc]), nil
}

func (h *memHost) Resolve(_ context.Context, target, _ string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	path := "/vault/" + target
	if _, ok := h.files[path]; !ok {
		return "", vault.ErrNotFound
	}
	return path, nil
}

func (h *memHost) ReadDocument(_ context.Context, doc string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.docs[doc], nil
}

func (h *memHost) WriteDocument(_ context.Context, doc, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.writeOK {
		return errors.New("read-only vault")
	}
	h.docs[doc] = text
	return nil
}

func (h *memHost) ReadFile(_ context.Context, path string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (h *memHost) WriteFile(_ context.Context, path string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[path] = data
	return nil
}

func (h *memHost) doc(name string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.docs[name]
}

func (h *memHost) file(path string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.files[path]
	return data, ok
}

type fakeTranscriber struct {
	results map[string]asr.TranscriptResult
	errs    map[string]error
	gate    chan struct{}
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, _ config.EngineConfig) (asr.TranscriptResult, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return asr.TranscriptResult{}, ctx.Err()
		}
	}
	key := string(audio)
	if err, ok := f.errs[key]; ok {
		return asr.TranscriptResult{}, err
	}
	return f.results[key], nil
}

type memLocker struct{ mu sync.Mutex }

func (l *memLocker) LockDocument(context.Context, string) (func() error, error) {
	l.mu.Lock()
	return func() error { l.mu.Unlock(); return nil }, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) bodies() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.messages))
	for _, m := range n.messages {
		out = append(out, m.Body)
	}
	return out
}

func segments(texts ...string) asr.TranscriptResult {
	result := asr.TranscriptResult{Language: "en"}
	for i, text := range texts {
		result.Text += text
		result.Segments = append(result.Segments, asr.TranscriptSegment{ID: i, Start: float64(i), End: float64(i + 1), Text: text, Tokens: []int{i}})
	}
	return result
}

func engine(debug bool) config.EngineConfig {
	cfg := config.Defaults().Engine()
	cfg.Debug = debug
	return cfg
}

func TestRunInsertsTranscriptAndWritesSidecar(t *testing.T) {
	t.Parallel()

	host := newMemHost("note.md", "Meeting ![[rec/memo.mp3]]\nEnd", "rec/memo.mp3")
	want := segments("Hello", " world ")
	transcriber := &fakeTranscriber{results: map[string]asr.TranscriptResult{"audio:rec/memo.mp3": want}}

	r, err := New(Options{Host: host, Transcriber: transcriber})
	require.NoError(t, err)

	run, err := r.Start(context.Background(), "note.md", engine(false))
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	require.Len(t, run.Candidates, 1)

	summary := run.Wait()
	require.Equal(t, Summary{Total: 1, Succeeded: 1, Outcomes: summary.Outcomes}, summary)
	require.Equal(t, "Meeting ![[rec/memo.mp3]]Hello\nworld\nEnd", host.doc("note.md"))

	data, ok := host.file("/vault/rec/memo.json")
	require.True(t, ok)
	require.Equal(t, "/vault/rec/memo.json", summary.Outcomes[0].Sidecar)

	var roundTrip asr.TranscriptResult
	require.NoError(t, json.Unmarshal(data, &roundTrip))
	require.Equal(t, want, roundTrip)
}

func TestRunFailureDoesNotBlockSiblings(t *testing.T) {
	t.Parallel()

	host := newMemHost("note.md", "F ![[f.mp3]]\nG ![[g.mp3]]\n", "f.mp3", "g.mp3")
	transcriber := &fakeTranscriber{
		results: map[string]asr.TranscriptResult{"audio:g.mp3": segments("from g")},
		errs:    map[string]error{"audio:f.mp3": &asr.ServiceError{Backend: "fake", StatusCode: 500, Body: "boom"}},
	}
	notifier := &recordingNotifier{}

	r, err := New(Options{Host: host, Transcriber: transcriber, Notifier: notifier})
	require.NoError(t, err)

	run, err := r.Start(context.Background(), "note.md", engine(false))
	require.NoError(t, err)
	summary := run.Wait()

	require.Equal(t, 2, summary.Total)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, "F ![[f.mp3]]\nG ![[g.mp3]]from g\n", host.doc("note.md"))

	_, ok := host.file("/vault/g.json")
	require.True(t, ok)
	_, ok = host.file("/vault/f.json")
	require.False(t, ok)

	require.Equal(t, []string{"Error transcribing f.mp3. Enable debug mode for more details."}, notifier.bodies())
}

func TestRunDebugNotificationIncludesDetail(t *testing.T) {
	t.Parallel()

	host := newMemHost("note.md", "![[f.mp3]]", "f.mp3")
	transcriber := &fakeTranscriber{errs: map[string]error{"audio:f.mp3": &asr.NetworkError{Backend: "fake", Err: errors.New("connection refused")}}}
	notifier := &recordingNotifier{}

	r, err := New(Options{Host: host, Transcriber: transcriber, Notifier: notifier})
	require.NoError(t, err)
	run, err := r.Start(context.Background(), "note.md", engine(true))
	require.NoError(t, err)
	summary := run.Wait()

	require.Equal(t, 1, summary.Failed)
	var netErr *asr.NetworkError
	require.True(t, errors.As(summary.Outcomes[0].Err, &netErr))
	require.Equal(t, []string{"Error transcribing f.mp3: fake: network failure: connection refused"}, notifier.bodies())
}

func TestStartReturnsBeforeTasksComplete(t *testing.T) {
	t.Parallel()

	host := newMemHost("note.md", "![[a.mp3]] ![[b.wav]]", "a.mp3", "b.wav")
	gate := make(chan struct{})
	transcriber := &fakeTranscriber{
		results: map[string]asr.TranscriptResult{"audio:a.mp3": segments("A"), "audio:b.wav": segments("B")},
		gate:    gate,
	}

	var mu sync.Mutex
	var completed []string
	r, err := New(Options{Host: host, Transcriber: transcriber, OnComplete: func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, o.Reference.Link.Target)
	}})
	require.NoError(t, err)

	run, err := r.Start(context.Background(), "note.md", engine(false))
	require.NoError(t, err)
	require.Len(t, run.Candidates, 2)

	mu.Lock()
	require.Empty(t, completed)
	mu.Unlock()

	close(gate)
	summary := run.Wait()
	require.Equal(t, 2, summary.Succeeded)
	require.ElementsMatch(t, []string{"a.mp3", "b.wav"}, completed)
}

func TestRunMissingCitationLeavesNoteAndStillWritesSidecar(t *testing.T) {
	t.Parallel()

	host := newMemHost("note.md", "![[a.mp3]]", "a.mp3")
	gate := make(chan struct{})
	transcriber := &fakeTranscriber{results: map[string]asr.TranscriptResult{"audio:a.mp3": segments("A")}, gate: gate}
	notifier := &recordingNotifier{}

	r, err := New(Options{Host: host, Transcriber: transcriber, Notifier: notifier})
	require.NoError(t, err)
	run, err := r.Start(context.Background(), "note.md", engine(true))
	require.NoError(t, err)

	require.NoError(t, host.WriteDocument(context.Background(), "note.md", "user removed the link"))
	close(gate)
	summary := run.Wait()

	require.Equal(t, 1, summary.Failed)
	require.False(t, summary.Outcomes[0].Inserted)
	require.ErrorIs(t, summary.Outcomes[0].Err, ErrCitationMissing)
	require.Equal(t, "user removed the link", host.doc("note.md"))
	_, ok := host.file("/vault/a.json")
	require.True(t, ok)
	require.Len(t, notifier.bodies(), 1)
}

func TestRunDocumentWriteFailureIsReported(t *testing.T) {
	t.Parallel()

	host := newMemHost("note.md", "![[a.mp3]]", "a.mp3")
	host.writeOK = false
	transcriber := &fakeTranscriber{results: map[string]asr.TranscriptResult{"audio:a.mp3": segments("A")}}
	notifier := &recordingNotifier{}

	r, err := New(Options{Host: host, Transcriber: transcriber, Notifier: notifier})
	require.NoError(t, err)
	run, err := r.Start(context.Background(), "note.md", engine(false))
	require.NoError(t, err)
	summary := run.Wait()

	var writeErr *DocumentWriteError
	require.True(t, errors.As(summary.Outcomes[0].Err, &writeErr))
	require.Equal(t, "note.md", writeErr.Path)
	require.Equal(t, []string{"Error transcribing a.mp3. Enable debug mode for more details."}, notifier.bodies())
}

func TestRunWithoutCandidates(t *testing.T) {
	t.Parallel()

	host := newMemHost("note.md", "Just [[another note]] and ![[missing.mp3]]")
	r, err := New(Options{Host: host, Transcriber: &fakeTranscriber{}})
	require.NoError(t, err)

	run, err := r.Start(context.Background(), "note.md", engine(false))
	require.NoError(t, err)
	require.Empty(t, run.Candidates)
	require.Equal(t, Summary{}, run.Wait())
}

func TestRunDuplicateLinksTranscribeEachOccurrence(t *testing.T) {
	t.Parallel()

	host := newMemHost("note.md", "one ![[a.mp3]] two ![[a.mp3]]", "a.mp3")
	transcriber := &fakeTranscriber{results: map[string]asr.TranscriptResult{"audio:a.mp3": segments("A")}}

	r, err := New(Options{Host: host, Transcriber: transcriber, Locker: &memLocker{}})
	require.NoError(t, err)
	run, err := r.Start(context.Background(), "note.md", engine(false))
	require.NoError(t, err)
	summary := run.Wait()

	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, "one ![[a.mp3]] two ![[a.mp3]]AA", host.doc("note.md"))
}

func TestRunOnVaultWithLockKeepsEveryInsertion(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	v, err := vault.NewFS(root)
	require.NoError(t, err)

	names := []string{"a.mp3", "b.mp3", "c.mp3", "d.mp3", "e.mp3", "f.mp3"}
	note := ""
	results := map[string]asr.TranscriptResult{}
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("audio:"+name), 0o644))
		note += "![[" + name + "]]\n"
		results["audio:"+name] = segments(" said " + name)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte(note), 0o644))

	r, err := New(Options{Host: v, Locker: v, Transcriber: &fakeTranscriber{results: results}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	run, err := r.Start(ctx, "note.md", engine(false))
	require.NoError(t, err)
	summary := run.Wait()
	require.Equal(t, len(names), summary.Succeeded)

	text, err := v.ReadDocument(ctx, "note.md")
	require.NoError(t, err)
	for _, name := range names {
		require.Contains(t, text, "![["+name+"]]said "+name+"\n")
		require.FileExists(t, filepath.Join(root, name[:1]+".json"))
	}
}
