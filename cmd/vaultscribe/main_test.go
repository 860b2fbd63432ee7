package main

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/fmueller/vaultscribe/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestIsUsageError(t *testing.T) {
	t.Parallel()

	require.True(t, isUsageError(errors.New("unknown command \"bad\" for \"vaultscribe\"")))
	require.True(t, isUsageError(fmt.Errorf("run: %w", &cli.UsageError{Err: errors.New("unknown flag: --oops")})))
	require.False(t, isUsageError(errors.New("accepts 1 arg(s), received 0")))
	require.False(t, isUsageError(fmt.Errorf("lock note: %w", syscall.EINVAL)))
	require.False(t, isUsageError(errors.New("open vault: invalid argument")))
	require.False(t, isUsageError(fmt.Errorf("%w: 1 of 2", cli.ErrSomeFailed)))
	require.False(t, isUsageError(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "vaultscribe", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "vaultscribe", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "vaultscribe transcribe", helpHintTarget(root, []string{"transcribe"}))
	require.Equal(t, "vaultscribe config set", helpHintTarget(root, []string{"config", "set", "debug"}))
	require.Equal(t, "vaultscribe", helpHintTarget(nil, nil))
}

func TestRunExitCodes(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	require.Equal(t, exitOK, run(cli.NewRootCmd(), []string{"--help"}, &stderr))

	stderr.Reset()
	require.Equal(t, exitUsage, run(cli.NewRootCmd(), []string{"transcribe"}, &stderr))
	require.Contains(t, stderr.String(), "Run 'vaultscribe transcribe --help' for usage.")

	stderr.Reset()
	require.Equal(t, exitUsage, run(cli.NewRootCmd(), []string{"transcribe", "--bogus", "note.md"}, &stderr))
	require.Contains(t, stderr.String(), "unknown flag: --bogus")

	stderr.Reset()
	require.Equal(t, exitUsage, run(cli.NewRootCmd(), []string{"links", "--debug=maybe", "note.md"}, &stderr))
	require.Contains(t, stderr.String(), "invalid argument")

	stderr.Reset()
	require.Equal(t, exitUsage, run(cli.NewRootCmd(), []string{"nosuchcommand"}, &stderr))
	require.Contains(t, stderr.String(), "Run 'vaultscribe --help' for usage.")

	stderr.Reset()
	configFile := filepath.Join(t.TempDir(), "config.toml")
	require.Equal(t, exitUsage, run(cli.NewRootCmd(), []string{"--config", configFile, "config", "set", "backend", "cloud"}, &stderr))
	require.Contains(t, stderr.String(), "config list")

	stderr.Reset()
	require.Equal(t, exitFailure, run(cli.NewRootCmd(), []string{"--config", configFile, "links", "/no/such/note.md"}, &stderr))
	require.Contains(t, stderr.String(), "vaultscribe: note not found")
}
