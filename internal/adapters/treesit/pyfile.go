package treesit

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"datalens/internal/core/parse"
	"datalens/internal/core/schema"
)

// extractPython walks a Python module. Annotated class attributes become
// record fields, dunder __collection__ and class decorators carry the
// collection annotation, and attribute-style database access like db.orders
// reads the collection name off the attribute itself
func extractPython(root *sitter.Node, src []byte) *parse.Result {
	p := &pyFile{
		src:        src,
		scopes:     newScopeSet(),
		classNames: make(map[string]bool),
	}
	p.prepass(root)
	eachNamedChild(root, func(n *sitter.Node) { p.walk(n, "") })
	return &parse.Result{Decls: p.decls, Calls: p.calls, Scopes: p.scopes.list()}
}

type pyFile struct {
	src        []byte
	decls      []parse.Decl
	calls      []parse.Call
	scopes     *scopeSet
	classNames map[string]bool
}

// prepass collects class names so document-model calls like Order.find()
// bind the record regardless of declaration order
func (p *pyFile) prepass(n *sitter.Node) {
	if n.Kind() == "class_definition" {
		if name := nodeText(n.ChildByFieldName("name"), p.src); name != "" {
			p.classNames[name] = true
		}
	}
	eachNamedChild(n, p.prepass)
}

func (p *pyFile) walk(n *sitter.Node, enclosing string) {
	switch n.Kind() {
	case "decorated_definition":
		def := n.ChildByFieldName("definition")
		if def == nil {
			return
		}
		if def.Kind() == "class_definition" {
			annotation := directiveIn(n, p.src)
			if annotation == "" {
				annotation = p.decoratorAnnotation(n)
			}
			p.classDef(def, annotation)
			return
		}
		p.walk(def, enclosing)
		return

	case "class_definition":
		p.classDef(n, directiveIn(n, p.src))
		return

	case "function_definition":
		name := nodeText(n.ChildByFieldName("name"), p.src)
		if body := n.ChildByFieldName("body"); body != nil {
			eachNamedChild(body, func(c *sitter.Node) { p.walk(c, name) })
		}
		return

	case "assignment":
		p.assign(n, enclosing)

	case "call":
		p.maybeCall(n, enclosing)
	}

	eachNamedChild(n, func(c *sitter.Node) { p.walk(c, enclosing) })
}

func (p *pyFile) assign(n *sitter.Node, enclosing string) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil {
		return
	}
	kind := left.Kind()
	if kind != "identifier" && kind != "attribute" {
		return
	}
	expr := p.source(right)
	p.scopes.add(enclosing, parse.Assign{
		Var:  nodeText(left, p.src),
		RHS:  expr,
		Line: startLine(left),
	})
}

func (p *pyFile) classDef(n *sitter.Node, annotation string) {
	name := nodeText(n.ChildByFieldName("name"), p.src)
	if name == "" {
		return
	}

	var fields []parse.FieldDecl
	var methods []string

	body := n.ChildByFieldName("body")
	if body != nil {
		eachNamedChild(body, func(stmt *sitter.Node) {
			switch stmt.Kind() {
			case "expression_statement":
				a := stmt.NamedChild(0)
				if a == nil || a.Kind() != "assignment" {
					return
				}
				left := nodeText(a.ChildByFieldName("left"), p.src)
				if typeNode := a.ChildByFieldName("type"); typeNode != nil {
					declared := nodeText(typeNode, p.src)
					fields = append(fields, parse.FieldDecl{
						Name:         left,
						DeclaredType: declared,
						Nullable:     pyNullable(declared),
					})
					return
				}
				if left == "__collection__" {
					if lit, ok := p.stringValue(a.ChildByFieldName("right")); ok {
						annotation = lit
					}
				}

			case "function_definition", "decorated_definition":
				def := stmt
				if def.Kind() == "decorated_definition" {
					def = def.ChildByFieldName("definition")
					if def == nil || def.Kind() != "function_definition" {
						return
					}
				}
				mname := nodeText(def.ChildByFieldName("name"), p.src)
				if mname == "" {
					return
				}
				if !isDunder(mname) {
					methods = append(methods, mname)
				}
				if mbody := def.ChildByFieldName("body"); mbody != nil {
					sym := name + "." + mname
					eachNamedChild(mbody, func(c *sitter.Node) { p.walk(c, sym) })
				}
			}
		})
	}

	p.decls = append(p.decls, parse.Decl{
		Symbol:     name,
		Fields:     fields,
		Methods:    methods,
		Annotation: annotation,
		StartLine:  startLine(n),
		EndLine:    endLine(n),
	})
}

func isDunder(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

func pyNullable(declared string) bool {
	return strings.Contains(declared, "Optional[") || strings.Contains(declared, "None")
}

// decoratorAnnotation reads @collection("name") off a decorated class
func (p *pyFile) decoratorAnnotation(decorated *sitter.Node) string {
	out := ""
	eachNamedChild(decorated, func(c *sitter.Node) {
		if out != "" || c.Kind() != "decorator" {
			return
		}
		call := c.NamedChild(0)
		if call == nil || call.Kind() != "call" {
			return
		}
		fn := call.ChildByFieldName("function")
		if fn == nil || foldName(nodeText(fn, p.src)) != "collection" {
			return
		}
		if args := call.ChildByFieldName("arguments"); args != nil {
			eachNamedChild(args, func(a *sitter.Node) {
				if out == "" {
					if lit, ok := p.stringValue(a); ok {
						out = lit
					}
				}
			})
		}
	})
	return out
}

// pyBare lists verbs that collide with list and string methods. Their bare
// spelling needs a receiver that is plainly a collection; suffixed forms
// like insert_one carry their own evidence
var pyBare = map[string]bool{
	"insert": true, "update": true, "delete": true, "count": true,
	"save": true, "create": true, "watch": true,
}

func (p *pyFile) maybeCall(call *sitter.Node, enclosing string) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "attribute" {
		return
	}
	method := nodeText(fn.ChildByFieldName("attribute"), p.src)
	folded := foldName(method)
	if !dataVerbs[folded] {
		return
	}
	recv := fn.ChildByFieldName("object")
	if recv == nil {
		return
	}

	collExpr := p.source(recv)
	bound := ""
	if recv.Kind() == "identifier" && p.classNames[nodeText(recv, p.src)] {
		bound = nodeText(recv, p.src)
	}
	if pyBare[folded] && bound == "" && collExpr.Kind != schema.ExprLiteral {
		return
	}

	filter := ""
	done := false
	if args := call.ChildByFieldName("arguments"); args != nil {
		eachNamedChild(args, func(a *sitter.Node) {
			if done || filter != "" || a.Kind() == "keyword_argument" {
				return
			}
			if t := nodeText(a, p.src); t == "None" {
				done = true
			} else {
				filter = t
			}
		})
	}

	p.calls = append(p.calls, parse.Call{
		Enclosing:  enclosing,
		Method:     method,
		Collection: collExpr,
		BoundType:  bound,
		FilterText: filter,
		StartLine:  startLine(call),
		EndLine:    endLine(call),
	})
}

// source reduces an expression to how a collection name appears there
func (p *pyFile) source(n *sitter.Node) schema.Expr {
	switch n.Kind() {
	case "call":
		return p.callSource(n)

	case "identifier":
		return schema.Expr{Kind: schema.ExprVar, Text: nodeText(n, p.src)}

	case "attribute":
		obj := n.ChildByFieldName("object")
		attr := nodeText(n.ChildByFieldName("attribute"), p.src)
		objText := nodeText(obj, p.src)
		if configBases[foldName(strings.TrimPrefix(objText, "self."))] {
			return schema.Expr{Kind: schema.ExprConfig, Text: attr}
		}
		if dbLike(objText) {
			return schema.Expr{Kind: schema.ExprLiteral, Text: attr}
		}
		return schema.Expr{Kind: schema.ExprVar, Text: nodeText(n, p.src)}

	case "subscript":
		value := n.ChildByFieldName("value")
		sub := n.ChildByFieldName("subscript")
		if sub == nil {
			break
		}
		valueText := nodeText(value, p.src)
		if lit, ok := p.stringValue(sub); ok {
			if valueText == "os.environ" || configBases[foldName(strings.TrimPrefix(valueText, "self."))] {
				return schema.Expr{Kind: schema.ExprConfig, Text: lit}
			}
			return schema.Expr{Kind: schema.ExprLiteral, Text: lit}
		}
		if sub.Kind() == "identifier" {
			return schema.Expr{Kind: schema.ExprVar, Text: nodeText(sub, p.src)}
		}

	case "string":
		if lit, ok := p.stringValue(n); ok {
			return schema.Expr{Kind: schema.ExprLiteral, Text: lit}
		}
	}
	return schema.Expr{Kind: schema.ExprComputed, Text: nodeText(n, p.src)}
}

func (p *pyFile) callSource(call *sitter.Node) schema.Expr {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return schema.Expr{Kind: schema.ExprComputed, Text: nodeText(call, p.src)}
	}

	name, baseText := "", ""
	switch fn.Kind() {
	case "attribute":
		name = nodeText(fn.ChildByFieldName("attribute"), p.src)
		baseText = nodeText(fn.ChildByFieldName("object"), p.src)
	case "identifier":
		name = nodeText(fn, p.src)
	}
	folded := foldName(name)

	switch {
	case collectionCalls[folded]:
		return p.nameArg(call.ChildByFieldName("arguments"))

	case baseText == "os.environ" && folded == "get",
		baseText == "os" && folded == "getenv",
		configBases[foldName(strings.TrimPrefix(baseText, "self."))] && strings.HasPrefix(folded, "get"):
		if args := call.ChildByFieldName("arguments"); args != nil {
			key := ""
			eachNamedChild(args, func(a *sitter.Node) {
				if key == "" {
					if lit, ok := p.stringValue(a); ok {
						key = lit
					}
				}
			})
			if key != "" {
				return schema.Expr{Kind: schema.ExprConfig, Text: key}
			}
		}
	}
	return schema.Expr{Kind: schema.ExprComputed, Text: nodeText(call, p.src)}
}

// nameArg classifies the collection-name argument of a factory call
func (p *pyFile) nameArg(args *sitter.Node) schema.Expr {
	if args == nil {
		return schema.Expr{Kind: schema.ExprComputed}
	}
	var nodes []*sitter.Node
	eachNamedChild(args, func(a *sitter.Node) {
		if a.Kind() != "keyword_argument" {
			nodes = append(nodes, a)
		}
	})

	for _, a := range nodes {
		if lit, ok := p.stringValue(a); ok {
			return schema.Expr{Kind: schema.ExprLiteral, Text: lit}
		}
	}
	for _, a := range nodes {
		if expr := p.source(a); expr.Kind == schema.ExprConfig {
			return expr
		}
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].Kind() == "identifier" {
			return schema.Expr{Kind: schema.ExprVar, Text: nodeText(nodes[i], p.src)}
		}
	}
	return schema.Expr{Kind: schema.ExprComputed}
}

// stringValue unwraps a plain string literal; f-strings with interpolation
// do not qualify
func (p *pyFile) stringValue(n *sitter.Node) (string, bool) {
	if n == nil || n.Kind() != "string" {
		return "", false
	}
	interpolated := false
	eachNamedChild(n, func(c *sitter.Node) {
		if c.Kind() == "interpolation" {
			interpolated = true
		}
	})
	if interpolated {
		return "", false
	}
	text := nodeText(n, p.src)
	if i := strings.IndexAny(text, `'"`); i > 0 {
		text = text[i:] // drop f/r/b prefixes
	}
	return strings.Trim(text, `'"`), true
}

// dbLike reports whether an expression names a database handle, so that
// attribute access on it reads as a collection name
func dbLike(text string) bool {
	t := foldName(strings.TrimPrefix(text, "self."))
	return t == "db" || t == "database" || strings.HasSuffix(t, "db")
}
