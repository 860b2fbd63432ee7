// Package platform knows where vaultscribe keeps its files on each OS.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "vaultscribe"

type Runtime struct {
	OS   string
	Arch string
}

func CurrentRuntime() Runtime {
	return Runtime{OS: runtime.GOOS, Arch: normalizeArch(runtime.GOARCH)}
}

func normalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// Env is the part of the process environment the directory layout depends
// on.
type Env struct {
	OS            string
	Home          string
	XDGConfigHome string
	XDGDataHome   string
}

func CurrentEnv() (Env, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("resolve user home: %w", err)
	}
	return Env{
		OS:            runtime.GOOS,
		Home:          home,
		XDGConfigHome: os.Getenv("XDG_CONFIG_HOME"),
		XDGDataHome:   os.Getenv("XDG_DATA_HOME"),
	}, nil
}

// ConfigDir holds config.toml.
func (e Env) ConfigDir() (string, error) {
	if e.Home == "" {
		return "", errors.New("home directory is empty")
	}
	switch e.OS {
	case "linux":
		if e.XDGConfigHome != "" {
			return filepath.Join(e.XDGConfigHome, appName), nil
		}
		return filepath.Join(e.Home, ".config", appName), nil
	case "darwin":
		return filepath.Join(e.Home, "Library", "Application Support", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", e.OS)
	}
}

// ConfigFile is the default settings file.
func (e Env) ConfigFile() (string, error) {
	dir, err := e.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ModelDir is where `setup` stores ggml models.
func (e Env) ModelDir() (string, error) {
	if e.Home == "" {
		return "", errors.New("home directory is empty")
	}
	switch e.OS {
	case "linux":
		if e.XDGDataHome != "" {
			return filepath.Join(e.XDGDataHome, appName, "models"), nil
		}
		return filepath.Join(e.Home, ".local", "share", appName, "models"), nil
	case "darwin":
		return filepath.Join(e.Home, "Library", "Application Support", appName, "models"), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", e.OS)
	}
}

// ResolveModelDir prefers a configured directory over the OS default.
func ResolveModelDir(configured string) (string, error) {
	if configured != "" {
		return filepath.Clean(configured), nil
	}
	env, err := CurrentEnv()
	if err != nil {
		return "", err
	}
	return env.ModelDir()
}
