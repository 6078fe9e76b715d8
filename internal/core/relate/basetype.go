package relate

import (
	"strings"
	"unicode"
)

var wrappers = []struct{ open, close string }{
	{"Optional[", "]"},
	{"List[", "]"},
	{"Set[", "]"},
	{"Array<", ">"},
	{"Promise<", ">"},
	{"Nullable<", ">"},
}

// baseType strips nullability and container decoration from a declared type
// so field references can match record symbols: *Order, []Order, Order|null,
// Optional[Order], Array<Order> and model.Order all reduce to Order. Types
// that do not reduce to a plain identifier return ""
func baseType(t string) string {
	s := strings.TrimSpace(t)
	for {
		prev := s
		s = strings.TrimPrefix(s, "*")
		s = strings.TrimPrefix(s, "[]")
		if strings.ContainsRune(s, '|') {
			s = pickUnion(s)
		}
		for _, w := range wrappers {
			if strings.HasPrefix(s, w.open) && strings.HasSuffix(s, w.close) {
				s = strings.TrimSpace(s[len(w.open) : len(s)-len(w.close)])
			}
		}
		if s == prev {
			break
		}
	}
	if !identLike(s) {
		return ""
	}
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// pickUnion keeps the first alternative of a union type that is not a
// null-ish marker
func pickUnion(s string) string {
	for _, part := range strings.Split(s, "|") {
		p := strings.TrimSpace(part)
		switch p {
		case "", "null", "undefined", "None", "nil":
			continue
		}
		return p
	}
	return ""
}

func identLike(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' {
			continue
		}
		return false
	}
	return true
}
