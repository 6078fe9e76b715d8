package pii

import (
	"strings"

	"datalens/internal/core/ident"
)

// Matcher flags field paths whose folded name tokens contain a known term.
// Safe for concurrent use once constructed
type Matcher struct {
	t      *trie
	terms  []NameRule
	folder *ident.Folder
}

// NewMatcher compiles the pack's name rules. Construct after the last Extend
func NewMatcher(p *Pack) *Matcher {
	m := &Matcher{t: newTrie(), terms: p.Names, folder: ident.New()}
	for i, n := range p.Names {
		m.t.add(n.Term, i)
	}
	m.t.compile()
	return m
}

// Classify reports the category of a field path. The path is folded and
// tokenized first ("Customer.HomeEmail" scans as "customer home email") and
// terms match whole tokens only, so "pin" never fires inside "shipping".
// When several terms match, the longest wins
func (m *Matcher) Classify(path string) (string, bool) {
	text := m.fold(path)
	if text == "" {
		return "", false
	}

	best, bestLen := -1, 0
	m.t.scan(text, func(end, id int) bool {
		n := len(m.terms[id].Term)
		if !wholeToken(text, end-n, end) {
			return true
		}
		if n > bestLen {
			best, bestLen = id, n
		}
		return true
	})
	if best < 0 {
		return "", false
	}
	return m.terms[best].Category, true
}

// fold projects a path into the space the trie was built over: tokenized
// first so camel humps survive, then each token folded, single-space joined
func (m *Matcher) fold(path string) string {
	toks := ident.Tokens(path)
	for i, tok := range toks {
		toks[i] = m.folder.Fold(tok)
	}
	return strings.Join(toks, " ")
}

// wholeToken reports whether [start,end) sits on token boundaries; tokens
// are single-space separated by construction
func wholeToken(s string, start, end int) bool {
	if start > 0 && s[start-1] != ' ' {
		return false
	}
	if end < len(s) && s[end] != ' ' {
		return false
	}
	return true
}
