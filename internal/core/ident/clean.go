package ident

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CleanText prepares captured source text (filter expressions, annotation
// values) for storage and display: invalid UTF-8 and control runes are
// dropped, whitespace runs flatten to a single space, and the result is
// truncated to max runes with a trailing ellipsis. max <= 0 means no cap
func CleanText(s string, max int) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, "")

	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			continue
		}
		if unicode.IsControl(r) || r == 0x7F {
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}

	out := b.String()
	if max > 0 && utf8.RuneCountInString(out) > max {
		rs := []rune(out)
		out = strings.TrimSpace(string(rs[:max])) + "..."
	}
	return out
}
