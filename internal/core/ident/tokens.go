package ident

import (
	"strings"
	"unicode"
)

// Tokens splits an identifier into lower-case word tokens. camelCase and
// PascalCase humps, acronym tails (HTTPServer -> http server), snake_case,
// kebab-case and dotted paths all split; digit runs stay attached to the
// preceding word (addr2line stays one token)
func Tokens(s string) []string {
	if s == "" {
		return nil
	}
	rs := []rune(s)
	n := len(rs)

	var toks []string
	start := -1
	flush := func(end int) {
		if start >= 0 && end > start {
			toks = append(toks, strings.ToLower(string(rs[start:end])))
		}
		start = -1
	}

	for i := 0; i < n; i++ {
		r := rs[i]
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := rs[i-1]
		// hump: lower or digit followed by upper
		if unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			flush(i)
			start = i
			continue
		}
		// acronym tail: the last upper of an upper run starts the next word
		if unicode.IsLower(r) && unicode.IsUpper(prev) && i-2 >= start && unicode.IsUpper(rs[i-2]) {
			flush(i - 1)
			start = i - 1
		}
	}
	flush(n)
	return toks
}

// Pluralize lower-cases a type symbol and applies naive English
// pluralization, enough for a naming-convention guess
// (Customer -> customers, Category -> categories, Address -> addresses)
func Pluralize(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if s == "" {
		return s
	}
	switch {
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "z"),
		strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	case strings.HasSuffix(s, "y") && len(s) > 1 && !isVowel(rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	default:
		return s + "s"
	}
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
