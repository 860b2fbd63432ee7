// Package links discovers the audio files a note links to.
package links

import (
	"context"
	"fmt"
	"strings"

	"github.com/fmueller/vaultscribe/internal/config"
	"github.com/fmueller/vaultscribe/internal/vault"
	"go.uber.org/zap"
)

// Host is the part of the note host the collector needs.
type Host interface {
	Links(ctx context.Context, doc string) ([]vault.Link, error)
	Resolve(ctx context.Context, target, doc string) (string, error)
}

// AudioReference points at one resolved audio file linked from Document.
type AudioReference struct {
	Link      vault.Link
	Path      string
	Extension string
	Document  string
}

// Citation is the literal text of the link inside the note.
func (r AudioReference) Citation() string {
	return r.Link.Original
}

// Stem is the last segment of the link target without its extension.
func (r AudioReference) Stem() string {
	name := r.Link.Target
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "."+r.Extension)
}

// ResolutionError reports a link whose target could not be found.
type ResolutionError struct {
	Target string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve link %q: %v", e.Target, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

type Options struct {
	Debug  bool
	Logger *zap.Logger
}

// Extension returns the text after the last '.' of target. ok is false
// when there is no extension.
func Extension(target string) (ext string, ok bool) {
	i := strings.LastIndexByte(target, '.')
	if i < 0 || i == len(target)-1 {
		return "", false
	}
	return target[i+1:], true
}

// Collect returns the links of doc whose extension is in allowed, resolved
// to files. Order and duplicates are kept. Links that do not resolve are
// dropped; they are logged only in debug mode.
func Collect(ctx context.Context, host Host, doc string, allowed config.ExtensionSet, opts Options) ([]AudioReference, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	found, err := host.Links(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("list links of %s: %w", doc, err)
	}

	refs := make([]AudioReference, 0, len(found))
	for _, link := range found {
		ext, ok := Extension(link.Target)
		if !ok || !allowed.Contains(ext) {
			continue
		}

		path, err := host.Resolve(ctx, link.Target, doc)
		if err != nil {
			if opts.Debug {
				rerr := &ResolutionError{Target: link.Target, Err: err}
				logger.Debug("skipping unresolved link", zap.String("note", doc), zap.Error(rerr))
			}
			continue
		}

		refs = append(refs, AudioReference{
			Link:      link,
			Path:      path,
			Extension: ext,
			Document:  doc,
		})
	}

	return refs, nil
}
