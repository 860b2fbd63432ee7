// Package whisperasr talks to a whisper-asr-webservice compatible endpoint.
package whisperasr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fmueller/vaultscribe/internal/asr"
	"github.com/fmueller/vaultscribe/internal/config"
	"go.uber.org/zap"
)

const (
	Name = "whisper-asr"

	// The recognition language is fixed; it is not derived from the note.
	requestQuery = "/asr?task=transcribe&language=en&output=json"

	maxErrorBody = 200
)

type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Client is an asr.Transcriber that uploads audio as multipart/form-data.
type Client struct {
	http        *http.Client
	logger      *zap.Logger
	newBoundary func() (string, error)
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:        httpClient,
		logger:      logger,
		newBoundary: randomBoundary,
	}
}

func (c *Client) Name() string {
	return Name
}

// Transcribe posts audio to cfg.Endpoint and decodes the JSON reply.
func (c *Client) Transcribe(ctx context.Context, audio []byte, cfg config.EngineConfig) (asr.TranscriptResult, error) {
	token, err := c.newBoundary()
	if err != nil {
		return asr.TranscriptResult{}, fmt.Errorf("build multipart body: %w", err)
	}
	payload := encodeAudio(token, audio)

	target := strings.TrimSuffix(cfg.Endpoint, "/") + requestQuery
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload.Body))
	if err != nil {
		return asr.TranscriptResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", payload.ContentType)

	c.logger.Debug("sending audio to recognition service", zap.String("url", target), zap.Int("bytes", len(audio)))
	started := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return asr.TranscriptResult{}, &asr.NetworkError{Backend: Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return asr.TranscriptResult{}, &asr.NetworkError{Backend: Name, Err: fmt.Errorf("read response body: %w", err)}
	}

	c.logger.Debug("recognition service replied",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return asr.TranscriptResult{}, &asr.ServiceError{Backend: Name, StatusCode: resp.StatusCode, Body: truncate(body, maxErrorBody)}
	}

	result, err := decodeResult(body)
	if err != nil {
		return asr.TranscriptResult{}, &asr.ServiceError{Backend: Name, StatusCode: resp.StatusCode, Body: truncate(body, maxErrorBody), Err: err}
	}
	return result, nil
}

type wireResult struct {
	Text     *string                 `json:"text"`
	Segments []asr.TranscriptSegment `json:"segments"`
	Language string                  `json:"language"`
}

func decodeResult(body []byte) (asr.TranscriptResult, error) {
	var parsed wireResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return asr.TranscriptResult{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Text == nil {
		return asr.TranscriptResult{}, errors.New("decode response: missing text")
	}
	if parsed.Segments == nil {
		return asr.TranscriptResult{}, errors.New("decode response: missing segments")
	}
	return asr.TranscriptResult{
		Text:     *parsed.Text,
		Segments: parsed.Segments,
		Language: parsed.Language,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
