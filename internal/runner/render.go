package runner

import (
	"fmt"
	"strings"

	"github.com/fmueller/vaultscribe/internal/asr"
)

// Render turns segments into note text: one trimmed line per segment. With
// timestamps each line starts with the segment start as [HH:MM:SS].
func Render(result asr.TranscriptResult, timestamps bool) string {
	lines := make([]string, 0, len(result.Segments))
	for _, seg := range result.Segments {
		line := strings.TrimSpace(seg.Text)
		if timestamps {
			line = fmt.Sprintf("[%s] %s", formatTimestamp(seg.Start), line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Splice inserts text right after the last occurrence of citation. ok is
// false when the citation is not present.
func Splice(doc, citation, text string) (updated string, ok bool) {
	if citation == "" {
		return doc, false
	}
	i := strings.LastIndex(doc, citation)
	if i < 0 {
		return doc, false
	}
	at := i + len(citation)
	return doc[:at] + text + doc[at:], true
}

func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}
