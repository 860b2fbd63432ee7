package whisper

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fmueller/vaultscribe/internal/platform"
)

// ExecutableEnv overrides the whisper-cli binary used by the local backend.
const ExecutableEnv = "VAULTSCRIBE_WHISPER_PATH"

// FindExecutable locates whisper-cli: the override variable first, then
// the install layouts next to self, then PATH.
func FindExecutable(self string) (string, error) {
	if override := strings.TrimSpace(os.Getenv(ExecutableEnv)); override != "" {
		if err := checkExecutable(override); err != nil {
			return "", fmt.Errorf("%s: %w", ExecutableEnv, err)
		}
		return override, nil
	}

	for _, candidate := range executableCandidates(self) {
		if checkExecutable(candidate) == nil {
			return candidate, nil
		}
	}

	if path, err := lookPath(executableName()); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%s not found near %s or on PATH; install whisper.cpp or set %s", executableName(), self, ExecutableEnv)
}

func executableCandidates(self string) []string {
	dir := filepath.Dir(self)
	name := executableName()
	rt := platform.CurrentRuntime()

	return []string{
		filepath.Join(dir, "..", "libexec", "whisper", name),
		filepath.Join(dir, "libexec", "whisper", name),
		filepath.Join(dir, "packaging", "whisper", rt.OS+"_"+rt.Arch, name),
		filepath.Join(dir, name),
	}
}

func executableName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

// describeFailure turns whisper-cli stderr into a hint when the cause is
// recognisable.
func describeFailure(stderr string) string {
	text := strings.ToLower(stderr)
	switch {
	case strings.Contains(text, "error while loading shared libraries"),
		strings.Contains(text, "cannot open shared object file"),
		strings.Contains(text, "dyld: library not loaded"):
		return "whisper-cli is missing shared libraries; rebuild it with BUILD_SHARED_LIBS=OFF or set " + ExecutableEnv
	case strings.Contains(text, "illegal instruction"):
		return "whisper-cli uses CPU instructions this machine lacks; set " + ExecutableEnv + " to a compatible build"
	case strings.Contains(text, "failed to load model"):
		return "whisper-cli could not load the model; run `vaultscribe setup`"
	default:
		return ""
	}
}
