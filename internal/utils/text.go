package utils

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TruncateRunes returns at most n runes of s. It never splits a multi-byte
// character. n <= 0 yields "".
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// CleanText NFC-normalizes s, drops invalid UTF-8 and trims surrounding
// whitespace.
func CleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.TrimSpace(norm.NFC.String(s))
}
