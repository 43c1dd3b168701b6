package bot

import (
	"strings"

	"github.com/keepmind9/featurebot/pkg/constants"
)

// maskSecret masks sensitive information for logging
func maskSecret(s string) string {
	if len(s) <= constants.MinSecretLengthForMasking {
		return "***"
	}
	return s[:constants.SecretMaskPrefixLength] + "***" + s[len(s)-constants.SecretMaskSuffixLength:]
}

// truncateRunes cuts s to at most max runes. It reports whether s was cut.
func truncateRunes(s string, max int) (string, bool) {
	count := 0
	for i := range s {
		if count == max {
			return s[:i], true
		}
		count++
	}
	return s, false
}

// trimDanglingEscape drops a trailing unpaired backslash left behind by truncation
func trimDanglingEscape(s string) string {
	trimmed := strings.TrimRight(s, `\`)
	if (len(s)-len(trimmed))%2 == 1 {
		return s[:len(s)-1]
	}
	return s
}
