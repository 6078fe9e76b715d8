// Package treesit is the tree-sitter front-end behind parse.Parser. One
// Parser handles Go, JavaScript, TypeScript and Python sources; results are
// cached by content hash so unchanged files skip the syntax tree entirely
package treesit

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/tree-sitter/go-tree-sitter"
	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"datalens/internal/core/lang"
	"datalens/internal/core/parse"
	"datalens/internal/core/schema"
)

// cacheSize bounds the per-process result cache. Entries are whole extraction
// results, small next to the trees they replace
const cacheSize = 512

type cacheKey struct {
	path string
	hash uint64
}

// Parser implements parse.Parser over the bundled grammars. Safe for
// concurrent use; each Parse call owns its own syntax tree
type Parser struct {
	langs map[lang.Language]*sitter.Language
	tsx   *sitter.Language
	cache *lru.Cache[cacheKey, *parse.Result]
}

// New builds a parser with every bundled grammar registered
func New() *Parser {
	cache, _ := lru.New[cacheKey, *parse.Result](cacheSize)
	return &Parser{
		langs: map[lang.Language]*sitter.Language{
			lang.Go:         sitter.NewLanguage(golang.Language()),
			lang.JavaScript: sitter.NewLanguage(javascript.Language()),
			lang.TypeScript: sitter.NewLanguage(typescript.LanguageTypescript()),
			lang.Python:     sitter.NewLanguage(python.Language()),
		},
		tsx:   sitter.NewLanguage(typescript.LanguageTSX()),
		cache: cache,
	}
}

// Languages lists the grammars this parser carries
func (p *Parser) Languages() []lang.Language {
	return []lang.Language{lang.Go, lang.JavaScript, lang.TypeScript, lang.Python}
}

// Parse extracts declarations, call sites and scopes from one file. Files
// whose tree is unusable end-to-end return an error; localized syntax errors
// degrade to whatever the tree still exposes
func (p *Parser) Parse(ctx context.Context, f parse.File) (*parse.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grammar := p.grammarFor(f)
	if grammar == nil {
		return nil, fmt.Errorf("treesit: no grammar for %q", f.Language)
	}

	key := cacheKey{path: f.Path, hash: schema.ContentHash(f.Content)}
	if res, ok := p.cache.Get(key); ok {
		return res, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree := parser.Parse(f.Content, nil)
	if tree == nil {
		return nil, fmt.Errorf("treesit: parse %s: no tree", f.Path)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || (root.HasError() && root.NamedChildCount() == 0) {
		return nil, fmt.Errorf("treesit: parse %s: unusable tree", f.Path)
	}

	var res *parse.Result
	switch f.Language {
	case lang.Go:
		res = extractGo(root, f.Content)
	case lang.JavaScript, lang.TypeScript:
		res = extractScript(root, f.Content, f.Language == lang.TypeScript)
	case lang.Python:
		res = extractPython(root, f.Content)
	default:
		return nil, fmt.Errorf("treesit: no extractor for %q", f.Language)
	}

	p.cache.Add(key, res)
	return res, nil
}

func (p *Parser) grammarFor(f parse.File) *sitter.Language {
	if f.Language == lang.TypeScript && strings.HasSuffix(strings.ToLower(f.Path), ".tsx") {
		return p.tsx
	}
	return p.langs[f.Language]
}

// nodeText returns the source text under n
func nodeText(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(src)
}

func startLine(n *sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

func endLine(n *sitter.Node) int {
	return int(n.EndPosition().Row) + 1
}

// foldName lowercases a call name and strips separators so spelling variants
// across drivers compare equal
func foldName(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "_", "")
}

// dataVerbs gates which method calls count as data access. Folded spelling,
// so find_one and FindOne land on the same entry
var dataVerbs = map[string]bool{
	"find": true, "findone": true, "findmany": true, "findall": true,
	"count": true, "countdocuments": true, "estimateddocumentcount": true,
	"distinct": true,
	"insert":  true, "insertone": true, "insertmany": true, "create": true, "save": true,
	"update": true, "updateone": true, "updatemany": true, "replaceone": true,
	"findoneandupdate": true, "findoneandreplace": true, "findoneanddelete": true,
	"delete": true, "deleteone": true, "deletemany": true,
	"aggregate": true, "watch": true, "bulkwrite": true,
}

// collectionCalls name the factory methods that wrap a collection name
var collectionCalls = map[string]bool{
	"collection": true, "getcollection": true,
}

// configBases name receivers whose member access reads configuration
var configBases = map[string]bool{
	"cfg": true, "config": true, "conf": true, "settings": true,
	"viper": true, "env": true, "environ": true,
}

// directiveRe matches the in-comment annotation binding a type to its
// collection, e.g. "datalens:collection=orders"
var directiveRe = regexp.MustCompile(`datalens:collection=([A-Za-z0-9_.$-]+)`)

// directiveIn scans preceding sibling comments of n for a collection
// directive, hopping through export and decorator wrappers whose comments
// sit on the wrapper node
func directiveIn(n *sitter.Node, src []byte) string {
	for cur := n; cur != nil; {
		for prev := cur.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
			if prev.Kind() != "comment" {
				break
			}
			if m := directiveRe.FindStringSubmatch(nodeText(prev, src)); m != nil {
				return m[1]
			}
		}
		parent := cur.Parent()
		if parent == nil {
			break
		}
		switch parent.Kind() {
		case "export_statement", "decorated_definition", "ambient_declaration":
			cur = parent
		default:
			return ""
		}
	}
	return ""
}

// scopeSet accumulates per-symbol assignment chains in source order
type scopeSet struct {
	order []string
	byKey map[string]*parse.Scope
}

func newScopeSet() *scopeSet {
	return &scopeSet{byKey: make(map[string]*parse.Scope)}
}

func (ss *scopeSet) add(symbol string, a parse.Assign) {
	sc, ok := ss.byKey[symbol]
	if !ok {
		sc = &parse.Scope{Symbol: symbol}
		ss.byKey[symbol] = sc
		ss.order = append(ss.order, symbol)
	}
	sc.Assigns = append(sc.Assigns, a)
}

func (ss *scopeSet) list() []parse.Scope {
	out := make([]parse.Scope, 0, len(ss.order))
	for _, sym := range ss.order {
		out = append(out, *ss.byKey[sym])
	}
	return out
}

// eachChild invokes fn over every direct child of n
func eachChild(n *sitter.Node, fn func(*sitter.Node)) {
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil {
			fn(c)
		}
	}
}

// eachNamedChild invokes fn over every named direct child of n
func eachNamedChild(n *sitter.Node, fn func(*sitter.Node)) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c != nil {
			fn(c)
		}
	}
}
