package util

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultErrorBodyLen bounds how much of a platform error body is kept on a post.
const DefaultErrorBodyLen = 300

// Truncate shortens s to at most maxLen bytes without splitting a UTF-8
// sequence, and notes the original size. Whitespace runs are collapsed so
// multi-line JSON error bodies fit on one line.
func Truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBytes is Truncate for response bodies, using DefaultErrorBodyLen.
func TruncateBytes(b []byte) string {
	return Truncate(string(b), DefaultErrorBodyLen)
}
