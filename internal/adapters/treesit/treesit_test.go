package treesit

import (
	"context"
	"testing"

	"datalens/internal/core/lang"
	"datalens/internal/core/parse"
)

func parseOne(t *testing.T, p *Parser, path, content string) *parse.Result {
	t.Helper()
	res, err := p.Parse(context.Background(), parse.File{
		Path:     path,
		Language: lang.Detect(path),
		Content:  []byte(content),
	})
	if err != nil {
		t.Fatalf("Parse(%s): %v", path, err)
	}
	return res
}

func declBySymbol(t *testing.T, res *parse.Result, symbol string) parse.Decl {
	t.Helper()
	for _, d := range res.Decls {
		if d.Symbol == symbol {
			return d
		}
	}
	t.Fatalf("no decl %q, have %+v", symbol, res.Decls)
	return parse.Decl{}
}

func callByMethod(t *testing.T, res *parse.Result, method string) parse.Call {
	t.Helper()
	for _, c := range res.Calls {
		if c.Method == method {
			return c
		}
	}
	t.Fatalf("no call %q, have %+v", method, res.Calls)
	return parse.Call{}
}

func fieldByName(t *testing.T, d parse.Decl, name string) parse.FieldDecl {
	t.Helper()
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("decl %q has no field %q: %+v", d.Symbol, name, d.Fields)
	return parse.FieldDecl{}
}

func TestParserLanguages(t *testing.T) {
	p := New()
	langs := p.Languages()
	if len(langs) != 4 {
		t.Fatalf("Languages() = %v, want 4 entries", langs)
	}
}

func TestParseUnknownLanguage(t *testing.T) {
	p := New()
	_, err := p.Parse(context.Background(), parse.File{Path: "README.md", Content: []byte("# hi")})
	if err == nil {
		t.Fatalf("Parse of unknown language should fail")
	}
}

func TestParseCachesByContent(t *testing.T) {
	p := New()
	src := "package x\n\ntype T struct {\n\tA string\n}\n"

	first := parseOne(t, p, "a.go", src)
	second := parseOne(t, p, "a.go", src)
	if first != second {
		t.Fatalf("identical content should hit the cache")
	}

	third := parseOne(t, p, "a.go", src+"\n// trailing\n")
	if third == first {
		t.Fatalf("changed content must re-parse")
	}
}
