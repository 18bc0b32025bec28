package util

import (
	"strings"
	"unicode/utf8"
)

// Preview returns at most n runes of s.
func Preview(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// MaskKey keeps the first n runes of a secret and hides the rest.
func MaskKey(key string, n int) string {
	if key == "" {
		return "none"
	}
	if utf8.RuneCountInString(key) <= n {
		return strings.Repeat("*", utf8.RuneCountInString(key))
	}
	return Preview(key, n) + "..."
}

// FirstNonEmpty returns the first argument that is not blank.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
