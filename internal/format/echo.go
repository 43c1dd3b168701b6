package format

import (
	"strings"
	"unicode/utf8"
)

// EchoStats is the analysis shown in an echo reply.
type EchoStats struct {
	Words    int  // whitespace-delimited tokens
	Chars    int  // Unicode scalar values, not bytes
	NonASCII bool // any code point above 127
}

// Analyze computes EchoStats for text.
func Analyze(text string) EchoStats {
	stats := EchoStats{
		Words: len(strings.Fields(text)),
		Chars: utf8.RuneCountInString(text),
	}
	for _, r := range text {
		if r > 127 {
			stats.NonASCII = true
			break
		}
	}
	return stats
}

// preview cuts text to at most limit runes, marking the cut with an ellipsis.
func preview(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "…"
}
