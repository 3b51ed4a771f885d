package normalize

import (
	"strings"
	"unicode"
)

const maxFieldLength = 512

// sanitizeText cleans free-form feed text before it enters a candidate:
// control characters are dropped, runs of whitespace collapse to a single
// space, and the result is clamped. Feed sources embed newlines and tabs
// freely; the identity hash must not vary with that noise.
func sanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := false
	runes := 0
	for _, r := range s {
		if runes >= maxFieldLength {
			break
		}
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
				runes++
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
		runes++
	}

	return strings.TrimRight(b.String(), " ")
}
