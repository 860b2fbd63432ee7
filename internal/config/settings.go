package config

import (
	"sort"
	"strings"
	"time"
)

const (
	BackendWhisperASR = "whisper-asr"
	BackendLocal      = "local"
)

const (
	KeyTimestamps               = "timestamps"
	KeyTranscribeFileExtensions = "transcribeFileExtensions"
	KeyWhisperASRURL            = "whisperASRUrl"
	KeyDebug                    = "debug"
	KeyBackend                  = "backend"
	KeyModel                    = "model"
	KeyModelDir                 = "modelDir"
	KeyRequestTimeout           = "requestTimeout"
	KeyNtfyTopic                = "ntfyTopic"
)

// Settings is the persisted key/value configuration.
type Settings struct {
	Timestamps               bool          `mapstructure:"timestamps"`
	TranscribeFileExtensions string        `mapstructure:"transcribeFileExtensions" validate:"required"`
	WhisperASRURL            string        `mapstructure:"whisperASRUrl" validate:"required,url"`
	Debug                    bool          `mapstructure:"debug"`
	Backend                  string        `mapstructure:"backend" validate:"oneof=whisper-asr local"`
	Model                    string        `mapstructure:"model"`
	ModelDir                 string        `mapstructure:"modelDir"`
	RequestTimeout           time.Duration `mapstructure:"requestTimeout" validate:"gte=0"`
	NtfyTopic                string        `mapstructure:"ntfyTopic" validate:"omitempty,url"`
}

type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindDuration
)

type keySpec struct {
	name string
	kind keyKind
}

var keys = []keySpec{
	{name: KeyTimestamps, kind: kindBool},
	{name: KeyTranscribeFileExtensions, kind: kindString},
	{name: KeyWhisperASRURL, kind: kindString},
	{name: KeyDebug, kind: kindBool},
	{name: KeyBackend, kind: kindString},
	{name: KeyModel, kind: kindString},
	{name: KeyModelDir, kind: kindString},
	{name: KeyRequestTimeout, kind: kindDuration},
	{name: KeyNtfyTopic, kind: kindString},
}

// Keys returns every known setting name in display order.
func Keys() []string {
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.name)
	}
	return names
}

func lookupKey(name string) (keySpec, bool) {
	for _, k := range keys {
		if strings.EqualFold(k.name, name) {
			return k, true
		}
	}
	return keySpec{}, false
}

// Defaults returns Settings populated with the built-in defaults.
func Defaults() Settings {
	return Settings{
		TranscribeFileExtensions: "mp3,wav,webm",
		WhisperASRURL:            "http://localhost:9000",
		Backend:                  BackendWhisperASR,
		Model:                    "small",
		RequestTimeout:           10 * time.Minute,
	}
}

func (s Settings) values() map[string]any {
	return map[string]any{
		KeyTimestamps:               s.Timestamps,
		KeyTranscribeFileExtensions: s.TranscribeFileExtensions,
		KeyWhisperASRURL:            s.WhisperASRURL,
		KeyDebug:                    s.Debug,
		KeyBackend:                  s.Backend,
		KeyModel:                    s.Model,
		KeyModelDir:                 s.ModelDir,
		KeyRequestTimeout:           s.RequestTimeout.String(),
		KeyNtfyTopic:                s.NtfyTopic,
	}
}

// ExtensionSet holds allowed file extensions. Membership is case-sensitive.
type ExtensionSet map[string]struct{}

// ParseExtensions splits a comma separated list. Entries are not trimmed, so
// "mp3, wav" allows "mp3" and " wav". Empty entries are ignored.
func ParseExtensions(list string) ExtensionSet {
	set := make(ExtensionSet)
	for _, ext := range strings.Split(list, ",") {
		if ext == "" {
			continue
		}
		set[ext] = struct{}{}
	}
	return set
}

func (s ExtensionSet) Contains(ext string) bool {
	_, ok := s[ext]
	return ok
}

// Sorted returns the members in lexical order.
func (s ExtensionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for ext := range s {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// EngineConfig is the read-only view of Settings used for one run.
type EngineConfig struct {
	Timestamps bool
	Extensions ExtensionSet
	Endpoint   string
	Debug      bool
}

// Engine derives the per-run engine configuration.
func (s Settings) Engine() EngineConfig {
	return EngineConfig{
		Timestamps: s.Timestamps,
		Extensions: ParseExtensions(s.TranscribeFileExtensions),
		Endpoint:   s.WhisperASRURL,
		Debug:      s.Debug,
	}
}
