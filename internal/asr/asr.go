// Package asr defines the transcript types shared by every speech
// recognition backend and the capability those backends implement.
package asr

import (
	"context"

	"github.com/fmueller/vaultscribe/internal/config"
)

// TranscriptSegment is one timed span of a transcription. Only Start and
// Text are interpreted; the rest is carried through to the sidecar.
type TranscriptSegment struct {
	ID               int     `json:"id"`
	Seek             int     `json:"seek"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	Tokens           []int   `json:"tokens"`
	Temperature      float64 `json:"temperature"`
	AvgLogprob       float64 `json:"avg_logprob"`
	CompressionRatio float64 `json:"compression_ratio"`
	NoSpeechProb     float64 `json:"no_speech_prob"`
}

// TranscriptResult is the complete answer for one audio file. Segments keep
// the order the backend delivered them in.
type TranscriptResult struct {
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
	Language string              `json:"language"`
}

// Transcriber turns audio bytes into a transcript. Implementations resolve
// exactly once per call and never retry.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, cfg config.EngineConfig) (TranscriptResult, error)
}
