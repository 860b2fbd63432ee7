package cli

import "strings"

// whisper emits this marker for silent input.
const blankAudioToken = "[BLANK_AUDIO]"

func isBlankTranscript(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return true
	}
	return strings.EqualFold(trimmed, blankAudioToken)
}

func noSpeechHint() string {
	return "no speech detected"
}
