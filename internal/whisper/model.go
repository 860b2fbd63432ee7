package whisper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const DefaultModel = "small"

// Model is a ggml model published for whisper.cpp.
type Model struct {
	Name   string
	File   string
	URL    string
	SHA256 string
}

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Ordered by size.
var catalogue = []Model{
	{Name: "tiny", File: "ggml-tiny.bin", SHA256: "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21"},
	{Name: "base", File: "ggml-base.bin", SHA256: "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe"},
	{Name: "small", File: "ggml-small.bin", SHA256: "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b"},
	{Name: "medium", File: "ggml-medium.bin", SHA256: "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208"},
	{Name: "large-v3", File: "ggml-large-v3.bin", SHA256: "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2"},
}

func init() {
	for i := range catalogue {
		catalogue[i].URL = modelBaseURL + catalogue[i].File
	}
}

// Catalogue returns the known models, smallest first.
func Catalogue() []Model {
	return append([]Model(nil), catalogue...)
}

func CatalogueNames() []string {
	names := make([]string, 0, len(catalogue))
	for _, m := range catalogue {
		names = append(names, m.Name)
	}
	return names
}

func Lookup(name string) (Model, bool) {
	for _, m := range catalogue {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

// ModelLocation is where a configured model lives on disk. Model is zero
// for a custom file path.
type ModelLocation struct {
	Model   Model
	Path    string
	Present bool
}

func (l ModelLocation) Custom() bool {
	return l.Model.Name == ""
}

// Locate maps the model setting to a file. A catalogue name resolves
// inside dir; anything that looks like a path must already exist.
func Locate(ref, dir string) (ModelLocation, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = DefaultModel
	}

	if model, ok := Lookup(ref); ok {
		if strings.TrimSpace(dir) == "" {
			return ModelLocation{}, errors.New("model directory is not set")
		}
		path := filepath.Join(dir, model.File)
		present, err := exists(path)
		if err != nil {
			return ModelLocation{}, err
		}
		return ModelLocation{Model: model, Path: path, Present: present}, nil
	}

	if !isModelPath(ref) {
		return ModelLocation{}, fmt.Errorf("unknown model %q (known models: %s)", ref, strings.Join(CatalogueNames(), ", "))
	}

	path := filepath.Clean(ref)
	present, err := exists(path)
	if err != nil {
		return ModelLocation{}, err
	}
	if !present {
		return ModelLocation{}, fmt.Errorf("model file does not exist: %s", path)
	}
	return ModelLocation{Path: path, Present: true}, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat model: %w", err)
	}
}

func isModelPath(ref string) bool {
	return strings.ContainsRune(ref, os.PathSeparator) || strings.EqualFold(filepath.Ext(ref), ".bin")
}
