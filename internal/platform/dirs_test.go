package platform

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigFile(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		env  Env
		want string
	}{
		{"linux xdg", Env{OS: "linux", Home: "/home/dev", XDGConfigHome: "/tmp/xdg"}, "/tmp/xdg/vaultscribe/config.toml"},
		{"linux default", Env{OS: "linux", Home: "/home/dev"}, "/home/dev/.config/vaultscribe/config.toml"},
		{"macos", Env{OS: "darwin", Home: "/Users/dev", XDGConfigHome: "/ignored"}, "/Users/dev/Library/Application Support/vaultscribe/config.toml"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.env.ConfigFile()
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestModelDir(t *testing.T) {
	t.Parallel()

	dir, err := Env{OS: "linux", Home: "/home/dev", XDGDataHome: "/tmp/data"}.ModelDir()
	require.NoError(t, err)
	require.Equal(t, "/tmp/data/vaultscribe/models", dir)

	dir, err = Env{OS: "linux", Home: "/home/dev"}.ModelDir()
	require.NoError(t, err)
	require.Equal(t, "/home/dev/.local/share/vaultscribe/models", dir)

	dir, err = Env{OS: "darwin", Home: "/Users/dev"}.ModelDir()
	require.NoError(t, err)
	require.Equal(t, "/Users/dev/Library/Application Support/vaultscribe/models", dir)
}

func TestUnsupportedOrHomeless(t *testing.T) {
	t.Parallel()

	_, err := Env{OS: "windows", Home: `C:\Users\dev`}.ConfigDir()
	require.Error(t, err)
	_, err = Env{OS: "linux"}.ModelDir()
	require.Error(t, err)
}

func TestResolveModelDirPrefersConfigured(t *testing.T) {
	t.Parallel()

	dir, err := ResolveModelDir("/srv/models/../models")
	require.NoError(t, err)
	require.Equal(t, filepath.Clean("/srv/models"), dir)
}

func TestNormalizeArch(t *testing.T) {
	t.Parallel()

	require.Equal(t, "amd64", normalizeArch("x86_64"))
	require.Equal(t, "arm64", normalizeArch("aarch64"))
	require.Equal(t, "riscv64", normalizeArch("riscv64"))
}
