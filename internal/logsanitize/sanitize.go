// Package logsanitize cleans provider supplied strings before they are logged.
package logsanitize

import "strings"

// maxLen caps values echoed from redirects and error bodies.
const maxLen = 200

// Sanitize replaces control characters with '_' to reduce the risk of log
// injection (CWE-117), then cuts values longer than maxLen bytes.
//
// Replaced ranges:
//   - C0 controls 0x00-0x1F (except horizontal tab 0x09)
//   - DEL 0x7F and C1 controls 0x80-0x9F
func Sanitize(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' {
			return '_'
		}
		if r >= 0x7f && r <= 0x9f {
			return '_'
		}
		return r
	}, s)

	if len(cleaned) > maxLen {
		cut := maxLen
		for cut > 0 && !isRuneStart(cleaned[cut]) {
			cut--
		}
		return cleaned[:cut] + "..."
	}
	return cleaned
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
