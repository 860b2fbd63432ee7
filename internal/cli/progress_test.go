package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fmueller/vaultscribe/internal/notify"
	"github.com/fmueller/vaultscribe/internal/runner"
	"github.com/stretchr/testify/require"
)

func TestFanoutProgressCountsEarlyCompletions(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	p := newFanoutProgress(true, out)

	p.complete(runner.Outcome{})
	p.start(3)
	p.complete(runner.Outcome{Err: errors.New("boom")})
	p.complete(runner.Outcome{})
	p.finish()

	finished, failed := p.counts()
	require.Equal(t, 3, finished)
	require.Equal(t, 1, failed)
}

func TestFanoutProgressDisabled(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	p := newFanoutProgress(false, out)
	p.start(2)
	p.complete(runner.Outcome{})
	p.finish()

	require.Empty(t, out.String())
	finished, _ := p.counts()
	require.Equal(t, 1, finished)
}

func TestFanoutProgressClearsBarBeforeMessages(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	p := newFanoutProgress(true, out)
	sink := p.around(notify.NewConsole(out))

	require.NoError(t, sink.Notify(context.Background(), notify.Message{Level: notify.LevelError, Body: "before start"}))
	p.start(3)
	p.complete(runner.Outcome{})
	require.Contains(t, out.String(), "Transcribing")

	require.NoError(t, sink.Notify(context.Background(), notify.Message{Level: notify.LevelError, Body: "Error transcribing a.mp3."}))
	p.finish()

	text := out.String()
	require.True(t, strings.HasPrefix(text, "error: before start\n"))
	require.Contains(t, text, "\rerror: Error transcribing a.mp3.\n")
}

func TestFanoutProgressDisabledPassesMessagesThrough(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	p := newFanoutProgress(false, out)
	p.start(1)

	require.NoError(t, p.around(notify.NewConsole(out)).Notify(context.Background(), notify.Message{Body: "plain"}))
	require.Equal(t, "plain\n", out.String())
}
