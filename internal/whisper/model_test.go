package whisper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocateDefaultModel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	loc, err := Locate("", dir)
	require.NoError(t, err)
	require.Equal(t, DefaultModel, loc.Model.Name)
	require.Equal(t, filepath.Join(dir, "ggml-small.bin"), loc.Path)
	require.False(t, loc.Present)
	require.False(t, loc.Custom())
}

func TestLocateDownloadedModel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "ggml-tiny.bin")
	require.NoError(t, os.WriteFile(path, []byte("ggml"), 0o644))

	loc, err := Locate("tiny", dir)
	require.NoError(t, err)
	require.Equal(t, path, loc.Path)
	require.True(t, loc.Present)
}

func TestLocateNamedModelNeedsDirectory(t *testing.T) {
	t.Parallel()

	_, err := Locate("base", " ")
	require.Error(t, err)
}

func TestLocateCustomFile(t *testing.T) {
	t.Parallel()

	custom := filepath.Join(t.TempDir(), "my-model.bin")
	require.NoError(t, os.WriteFile(custom, []byte("x"), 0o644))

	loc, err := Locate(custom, "")
	require.NoError(t, err)
	require.True(t, loc.Custom())
	require.True(t, loc.Present)
	require.Equal(t, custom, loc.Path)

	_, err = Locate(filepath.Join(t.TempDir(), "gone.bin"), "")
	require.ErrorContains(t, err, "does not exist")
}

func TestLocateUnknownName(t *testing.T) {
	t.Parallel()

	_, err := Locate("enormous", t.TempDir())
	require.ErrorContains(t, err, "known models: tiny, base, small, medium, large-v3")
}

func TestCatalogueIsPinned(t *testing.T) {
	t.Parallel()

	for _, m := range Catalogue() {
		require.Lenf(t, m.SHA256, 64, "model %s needs a pinned sha256", m.Name)
		require.Equal(t, modelBaseURL+m.File, m.URL)
	}
}
