// Package vault implements the note host on a plain directory of Markdown
// files: link discovery, link resolution and document I/O.
package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

var ErrNotFound = errors.New("link target not found")

// FS is a vault rooted at a directory. Document identities are paths
// relative to Root (absolute paths inside Root are accepted too).
type FS struct {
	root      string
	lockDir   string
	lockRetry time.Duration
}

func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open vault %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", abs)
	}
	return &FS{root: abs, lockDir: os.TempDir(), lockRetry: 25 * time.Millisecond}, nil
}

func (v *FS) Root() string {
	return v.root
}

// Links returns the links of doc in discovery order.
func (v *FS) Links(ctx context.Context, doc string) ([]Link, error) {
	text, err := v.ReadDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	return ParseLinks(text), nil
}

// Resolve maps a link target to a file path. Lookup order: relative to the
// note, relative to the vault root, then the shortest vault path with the
// same file name when the target is a bare name.
func (v *FS) Resolve(ctx context.Context, target, doc string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	docPath, err := v.documentPath(doc)
	if err != nil {
		return "", err
	}

	clean := filepath.FromSlash(target)
	for _, candidate := range []string{
		filepath.Join(filepath.Dir(docPath), clean),
		filepath.Join(v.root, clean),
	} {
		if v.isVaultFile(candidate) {
			return candidate, nil
		}
	}

	if !strings.ContainsAny(target, `/\`) {
		if found, ok := v.findByName(target); ok {
			return found, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, target)
}

func (v *FS) ReadDocument(ctx context.Context, doc string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := v.documentPath(doc)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read note %s: %w", doc, err)
	}
	return string(data), nil
}

func (v *FS) WriteDocument(ctx context.Context, doc, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := v.documentPath(doc)
	if err != nil {
		return err
	}
	if err := atomicWrite(path, []byte(text)); err != nil {
		return fmt.Errorf("write note %s: %w", doc, err)
	}
	return nil
}

func (v *FS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// WriteFile replaces path atomically.
func (v *FS) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// LockDocument takes an advisory lock for doc that serializes
// read-modify-write cycles across goroutines and processes. The lock file
// lives outside the vault.
func (v *FS) LockDocument(ctx context.Context, doc string) (func() error, error) {
	path, err := v.documentPath(doc)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(path))
	lock := flock.New(filepath.Join(v.lockDir, "vaultscribe-"+hex.EncodeToString(sum[:8])+".lock"))

	ok, err := lock.TryLockContext(ctx, v.lockRetry)
	if err != nil {
		return nil, fmt.Errorf("lock note %s: %w", doc, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock note %s: not acquired", doc)
	}
	return lock.Unlock, nil
}

func (v *FS) documentPath(doc string) (string, error) {
	path := doc
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, filepath.FromSlash(doc))
	}
	path = filepath.Clean(path)
	if !v.inside(path) {
		return "", fmt.Errorf("note %s is outside vault %s", doc, v.root)
	}
	return path, nil
}

func (v *FS) inside(path string) bool {
	rel, err := filepath.Rel(v.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (v *FS) isVaultFile(path string) bool {
	if !v.inside(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (v *FS) findByName(name string) (string, bool) {
	var found []string
	_ = filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != v.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == name && d.Type().IsRegular() {
			found = append(found, path)
		}
		return nil
	})
	if len(found) == 0 {
		return "", false
	}
	sort.Slice(found, func(i, j int) bool {
		di, dj := strings.Count(found[i], string(filepath.Separator)), strings.Count(found[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return found[i] < found[j]
	})
	return found[0], true
}

// atomicWrite writes data to path through a temp file and rename, keeping
// the mode of an existing file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, ".vaultscribe-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}
