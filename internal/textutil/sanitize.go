// Package textutil cleans assistant answers for terminal display.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Sanitize applies NFKC normalization and removes control and format
// characters that corrupt rendering. Newlines, carriage returns, and tabs
// survive.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	normalized := norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.Is(unicode.Cc, r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
