// Package download fetches large files over HTTP and verifies them against
// a pinned sha256.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const userAgent = "vaultscribe/1"

// ChecksumError reports content that does not hash to the expected value.
type ChecksumError struct {
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// StatusError reports a non-200 answer from the download server.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

type Options struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
	Retries    int
	RetryDelay time.Duration
	// Progress receives the progress bar. When nil a bar is drawn on
	// stderr only if stderr is a terminal.
	Progress   io.Writer
	NoProgress bool
}

type Fetcher struct {
	client     *http.Client
	logger     *zap.Logger
	retries    int
	retryDelay time.Duration
	progress   io.Writer
}

func NewFetcher(opts Options) *Fetcher {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Minute}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 300 * time.Millisecond
	}
	switch {
	case opts.NoProgress:
		opts.Progress = nil
	case opts.Progress == nil && term.IsTerminal(int(os.Stderr.Fd())):
		opts.Progress = os.Stderr
	}
	return &Fetcher{
		client:     opts.HTTPClient,
		logger:     opts.Logger,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		progress:   opts.Progress,
	}
}

// Request describes one file to fetch. An empty SHA256 skips verification.
type Request struct {
	URL         string
	Destination string
	SHA256      string
	Label       string
}

// Fetch downloads req.URL into req.Destination. The file only appears at
// its destination once it has been fully written and verified.
func (f *Fetcher) Fetch(ctx context.Context, req Request) error {
	if req.URL == "" {
		return errors.New("download URL is required")
	}
	if req.Destination == "" {
		return errors.New("destination path is required")
	}
	if err := os.MkdirAll(filepath.Dir(req.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	var err error
	for attempt := 1; attempt <= f.retries; attempt++ {
		if attempt > 1 {
			f.logger.Warn("retrying download", zap.Int("attempt", attempt), zap.Int("max", f.retries), zap.String("url", req.URL), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * f.retryDelay):
			}
		}

		err = f.fetchOnce(ctx, req)
		if err == nil || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (f *Fetcher) fetchOnce(ctx context.Context, req Request) (err error) {
	partial := req.Destination + ".part"
	out, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}
	defer func() {
		_ = out.Close()
		if err != nil {
			_ = os.Remove(partial)
		}
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: req.URL, StatusCode: resp.StatusCode}
	}

	hash := sha256.New()
	sink := io.MultiWriter(out, hash)

	var bar *progressbar.ProgressBar
	if f.progress != nil && resp.ContentLength > 0 {
		label := req.Label
		if label == "" {
			label = filepath.Base(req.Destination)
		}
		bar = progressbar.NewOptions64(
			resp.ContentLength,
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWidth(20),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionSetWriter(f.progress),
			progressbar.OptionClearOnFinish(),
		)
		sink = io.MultiWriter(out, hash, bar)
	}

	if _, err := io.Copy(sink, resp.Body); err != nil {
		return fmt.Errorf("download body: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if err := checkSum(hex.EncodeToString(hash.Sum(nil)), req.SHA256); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync partial file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close partial file: %w", err)
	}
	if err := os.Rename(partial, req.Destination); err != nil {
		return fmt.Errorf("move download into place: %w", err)
	}
	return nil
}

// Verify hashes the file at path and compares it with expected.
func Verify(path, expected string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file for checksum: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return fmt.Errorf("hash file: %w", err)
	}
	return checkSum(hex.EncodeToString(hash.Sum(nil)), expected)
}

func checkSum(actual, expected string) error {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if expected == "" || actual == expected {
		return nil
	}
	return &ChecksumError{Expected: expected, Actual: actual}
}
