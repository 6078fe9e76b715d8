package treesit

import (
	"reflect"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"datalens/internal/core/parse"
	"datalens/internal/core/schema"
)

// annotationMethod is the accessor whose literal return binds a Go type to
// its collection
const annotationMethod = "CollectionName"

// extractGo walks a Go source file. Struct declarations become record
// candidates, calls through a collection handle become operations, and every
// function body contributes its assignment chain
func extractGo(root *sitter.Node, src []byte) *parse.Result {
	g := &goFile{
		src:     src,
		scopes:  newScopeSet(),
		methods: make(map[string][]string),
		annots:  make(map[string]string),
	}
	eachChild(root, g.topLevel)

	for i := range g.decls {
		d := &g.decls[i]
		d.Methods = g.methods[d.Symbol]
		if d.Annotation == "" {
			d.Annotation = g.annots[d.Symbol]
		}
	}
	return &parse.Result{Decls: g.decls, Calls: g.calls, Scopes: g.scopes.list()}
}

type goFile struct {
	src     []byte
	decls   []parse.Decl
	calls   []parse.Call
	scopes  *scopeSet
	methods map[string][]string // receiver type to declared method names
	annots  map[string]string   // receiver type to annotated collection name
}

func (g *goFile) topLevel(n *sitter.Node) {
	switch n.Kind() {
	case "type_declaration":
		directive := directiveIn(n, g.src)
		eachNamedChild(n, func(spec *sitter.Node) {
			if spec.Kind() == "type_spec" {
				g.typeSpec(spec, directive)
			}
		})

	case "function_declaration":
		name := nodeText(n.ChildByFieldName("name"), g.src)
		generic := n.ChildByFieldName("type_parameters") != nil
		params := g.paramNames(n.ChildByFieldName("parameters"))
		if body := n.ChildByFieldName("body"); body != nil {
			g.walkBody(body, name, params, generic)
		}

	case "method_declaration":
		recv := g.receiverType(n.ChildByFieldName("receiver"))
		name := nodeText(n.ChildByFieldName("name"), g.src)
		if recv != "" && name != "" {
			g.methods[recv] = append(g.methods[recv], name)
			if name == annotationMethod {
				if lit := g.returnLiteral(n.ChildByFieldName("body")); lit != "" {
					g.annots[recv] = lit
				}
			}
		}
		enclosing := name
		if recv != "" {
			enclosing = recv + "." + name
		}
		params := g.paramNames(n.ChildByFieldName("parameters"))
		if body := n.ChildByFieldName("body"); body != nil {
			g.walkBody(body, enclosing, params, false)
		}

	case "var_declaration":
		// package-level bindings land in the module scope
		eachNamedChild(n, func(spec *sitter.Node) {
			if spec.Kind() == "var_spec" {
				g.varSpec(spec, "")
			}
		})
	}
}

func (g *goFile) typeSpec(spec *sitter.Node, directive string) {
	name := nodeText(spec.ChildByFieldName("name"), g.src)
	typeNode := spec.ChildByFieldName("type")
	if name == "" || typeNode == nil || typeNode.Kind() != "struct_type" {
		return
	}
	if own := directiveIn(spec, g.src); own != "" {
		directive = own
	}
	g.decls = append(g.decls, parse.Decl{
		Symbol:     name,
		Fields:     g.structFields(typeNode),
		Annotation: directive,
		StartLine:  startLine(spec),
		EndLine:    endLine(spec),
	})
}

func (g *goFile) structFields(structType *sitter.Node) []parse.FieldDecl {
	var fields []parse.FieldDecl
	eachNamedChild(structType, func(list *sitter.Node) {
		if list.Kind() != "field_declaration_list" {
			return
		}
		eachNamedChild(list, func(fd *sitter.Node) {
			if fd.Kind() != "field_declaration" {
				return
			}
			typeNode := fd.ChildByFieldName("type")
			if typeNode == nil {
				return
			}
			declared := nodeText(typeNode, g.src)
			nullable := typeNode.Kind() == "pointer_type"

			var names []string
			eachNamedChild(fd, func(c *sitter.Node) {
				if c.Kind() == "field_identifier" {
					names = append(names, nodeText(c, g.src))
				}
			})
			if len(names) == 0 {
				return // embedded field
			}

			wire := ""
			if tag := fd.ChildByFieldName("tag"); tag != nil && len(names) == 1 {
				wire = tagName(nodeText(tag, g.src))
			}
			for _, name := range names {
				if wire != "" {
					name = wire
				}
				fields = append(fields, parse.FieldDecl{Name: name, DeclaredType: declared, Nullable: nullable})
			}
		})
	})
	return fields
}

// tagName pulls the wire name out of a struct tag, preferring bson over json
func tagName(raw string) string {
	tag := reflect.StructTag(unquote(raw))
	for _, key := range []string{"bson", "json"} {
		v := tag.Get(key)
		if v == "" {
			continue
		}
		name := strings.Split(v, ",")[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return ""
}

func (g *goFile) receiverType(recv *sitter.Node) string {
	if recv == nil {
		return ""
	}
	var out string
	eachNamedChild(recv, func(pd *sitter.Node) {
		if out != "" || pd.Kind() != "parameter_declaration" {
			return
		}
		typeNode := pd.ChildByFieldName("type")
		if typeNode == nil {
			return
		}
		t := strings.TrimPrefix(nodeText(typeNode, g.src), "*")
		if i := strings.IndexByte(t, '['); i > 0 {
			t = t[:i]
		}
		out = t
	})
	return out
}

func (g *goFile) paramNames(list *sitter.Node) map[string]bool {
	params := make(map[string]bool)
	if list == nil {
		return params
	}
	eachNamedChild(list, func(pd *sitter.Node) {
		if pd.Kind() != "parameter_declaration" && pd.Kind() != "variadic_parameter_declaration" {
			return
		}
		eachNamedChild(pd, func(c *sitter.Node) {
			if c.Kind() == "identifier" {
				params[nodeText(c, g.src)] = true
			}
		})
	})
	return params
}

// returnLiteral finds the first string literal returned from body
func (g *goFile) returnLiteral(body *sitter.Node) string {
	if body == nil {
		return ""
	}
	var lit string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if lit != "" {
			return
		}
		if n.Kind() == "return_statement" {
			if s := firstStringLiteral(n, g.src); s != "" {
				lit = s
				return
			}
		}
		eachNamedChild(n, walk)
	}
	walk(body)
	return lit
}

func firstStringLiteral(n *sitter.Node, src []byte) string {
	if isStringNode(n.Kind()) {
		return unquote(nodeText(n, src))
	}
	var found string
	eachNamedChild(n, func(c *sitter.Node) {
		if found == "" {
			found = firstStringLiteral(c, src)
		}
	})
	return found
}

func isStringNode(kind string) bool {
	return kind == "interpreted_string_literal" || kind == "raw_string_literal"
}

func unquote(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return strings.Trim(s, "`\"'")
}

func (g *goFile) walkBody(n *sitter.Node, enclosing string, params map[string]bool, generic bool) {
	switch n.Kind() {
	case "short_var_declaration", "assignment_statement":
		g.assignPairs(n.ChildByFieldName("left"), n.ChildByFieldName("right"), enclosing)

	case "var_declaration":
		eachNamedChild(n, func(spec *sitter.Node) {
			if spec.Kind() == "var_spec" {
				g.varSpec(spec, enclosing)
			}
		})

	case "call_expression":
		g.maybeCall(n, enclosing, params, generic)
	}

	eachNamedChild(n, func(c *sitter.Node) {
		g.walkBody(c, enclosing, params, generic)
	})
}

func (g *goFile) assignPairs(left, right *sitter.Node, enclosing string) {
	if left == nil || right == nil {
		return
	}
	var lhs, rhs []*sitter.Node
	eachNamedChild(left, func(c *sitter.Node) { lhs = append(lhs, c) })
	eachNamedChild(right, func(c *sitter.Node) { rhs = append(rhs, c) })
	if len(lhs) != len(rhs) {
		return
	}
	for i, l := range lhs {
		kind := l.Kind()
		if kind != "identifier" && kind != "selector_expression" {
			continue
		}
		expr, _, _ := g.source(rhs[i])
		g.scopes.add(enclosing, parse.Assign{
			Var:  nodeText(l, g.src),
			RHS:  expr,
			Line: startLine(l),
		})
	}
}

func (g *goFile) varSpec(spec *sitter.Node, enclosing string) {
	valueList := spec.ChildByFieldName("value")
	if valueList == nil {
		return
	}
	var names []*sitter.Node
	eachNamedChild(spec, func(c *sitter.Node) {
		if c.Kind() == "identifier" {
			names = append(names, c)
		}
	})
	var values []*sitter.Node
	eachNamedChild(valueList, func(c *sitter.Node) { values = append(values, c) })
	if len(names) != len(values) {
		return
	}
	for i, name := range names {
		expr, _, _ := g.source(values[i])
		g.scopes.add(enclosing, parse.Assign{
			Var:  nodeText(name, g.src),
			RHS:  expr,
			Line: startLine(name),
		})
	}
}

func (g *goFile) maybeCall(call *sitter.Node, enclosing string, params map[string]bool, generic bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return
	}

	var typeArgs []string
	if ta := call.ChildByFieldName("type_arguments"); ta != nil {
		typeArgs = typeArgList(ta, g.src)
	}
	if fn.Kind() == "index_expression" {
		if idx := fn.ChildByFieldName("index"); idx != nil {
			typeArgs = append(typeArgs, nodeText(idx, g.src))
		}
		fn = fn.ChildByFieldName("operand")
		if fn == nil {
			return
		}
	}
	if fn.Kind() != "selector_expression" {
		return
	}

	method := nodeText(fn.ChildByFieldName("field"), g.src)
	if !dataVerbs[foldName(method)] {
		return
	}
	recv := fn.ChildByFieldName("operand")
	if recv == nil {
		return
	}

	collExpr, recvArgs, bound := g.source(recv)
	typeArgs = append(typeArgs, recvArgs...)

	deferred := generic && collExpr.Kind == schema.ExprVar && params[collExpr.Text]

	g.calls = append(g.calls, parse.Call{
		Enclosing:  enclosing,
		Method:     method,
		Collection: collExpr,
		TypeArgs:   typeArgs,
		BoundType:  bound,
		FilterText: g.filterText(call.ChildByFieldName("arguments")),
		Deferred:   deferred,
		StartLine:  startLine(call),
		EndLine:    endLine(call),
	})
}

// filterText returns the source text of the first argument after any leading
// context value
func (g *goFile) filterText(args *sitter.Node) string {
	if args == nil {
		return ""
	}
	var out string
	done := false
	eachNamedChild(args, func(a *sitter.Node) {
		if done || out != "" {
			return
		}
		t := nodeText(a, g.src)
		if t == "ctx" || strings.HasPrefix(t, "context.") {
			return
		}
		if t == "nil" {
			done = true // explicit empty filter
			return
		}
		out = t
	})
	return out
}

// source reduces an expression to how a collection name appears there. It
// also serves assignment right-hand sides, so a handle bound through a
// factory call carries the factory's name argument forward
func (g *goFile) source(n *sitter.Node) (schema.Expr, []string, string) {
	switch n.Kind() {
	case "call_expression":
		return g.callSource(n)

	case "identifier":
		return schema.Expr{Kind: schema.ExprVar, Text: nodeText(n, g.src)}, nil, ""

	case "selector_expression":
		if base := baseIdent(n, g.src); configBases[foldName(base)] {
			return schema.Expr{Kind: schema.ExprConfig, Text: nodeText(n.ChildByFieldName("field"), g.src)}, nil, ""
		}
		return schema.Expr{Kind: schema.ExprVar, Text: nodeText(n, g.src)}, nil, ""

	case "interpreted_string_literal", "raw_string_literal":
		return schema.Expr{Kind: schema.ExprLiteral, Text: unquote(nodeText(n, g.src))}, nil, ""

	case "unary_expression":
		if inner := n.ChildByFieldName("operand"); inner != nil {
			return g.source(inner)
		}

	case "parenthesized_expression":
		if inner := n.NamedChild(0); inner != nil {
			return g.source(inner)
		}
	}
	return schema.Expr{Kind: schema.ExprComputed, Text: nodeText(n, g.src)}, nil, ""
}

func (g *goFile) callSource(call *sitter.Node) (schema.Expr, []string, string) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return schema.Expr{Kind: schema.ExprComputed, Text: nodeText(call, g.src)}, nil, ""
	}

	var typeArgs []string
	if ta := call.ChildByFieldName("type_arguments"); ta != nil {
		typeArgs = typeArgList(ta, g.src)
	}
	if fn.Kind() == "index_expression" {
		if idx := fn.ChildByFieldName("index"); idx != nil {
			typeArgs = append(typeArgs, nodeText(idx, g.src))
		}
		fn = fn.ChildByFieldName("operand")
		if fn == nil {
			return schema.Expr{Kind: schema.ExprComputed, Text: nodeText(call, g.src)}, nil, ""
		}
	}

	name, base := "", ""
	switch fn.Kind() {
	case "selector_expression":
		name = nodeText(fn.ChildByFieldName("field"), g.src)
		base = baseIdent(fn, g.src)
	case "identifier":
		name = nodeText(fn, g.src)
	}
	folded := foldName(name)

	switch {
	case collectionCalls[folded]:
		bound := ""
		if len(typeArgs) > 0 {
			bound = typeArgs[0]
		}
		return g.nameArg(call.ChildByFieldName("arguments")), typeArgs, bound

	case base == "os" && folded == "getenv",
		configBases[foldName(base)] && (strings.HasPrefix(folded, "get") || strings.HasPrefix(folded, "must")):
		if key := firstStringLiteral(call, g.src); key != "" {
			return schema.Expr{Kind: schema.ExprConfig, Text: key}, nil, ""
		}
	}
	return schema.Expr{Kind: schema.ExprComputed, Text: nodeText(call, g.src)}, typeArgs, ""
}

// nameArg classifies the collection-name argument of a factory call
func (g *goFile) nameArg(args *sitter.Node) schema.Expr {
	if args == nil {
		return schema.Expr{Kind: schema.ExprComputed}
	}
	var nodes []*sitter.Node
	eachNamedChild(args, func(a *sitter.Node) { nodes = append(nodes, a) })

	for _, a := range nodes {
		if isStringNode(a.Kind()) {
			return schema.Expr{Kind: schema.ExprLiteral, Text: unquote(nodeText(a, g.src))}
		}
	}
	for _, a := range nodes {
		expr, _, _ := g.source(a)
		if expr.Kind == schema.ExprConfig {
			return expr
		}
	}
	// the handle argument comes first in helper signatures, the name last
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].Kind() == "identifier" && i > 0 {
			return schema.Expr{Kind: schema.ExprVar, Text: nodeText(nodes[i], g.src)}
		}
	}
	if len(nodes) == 1 {
		expr, _, _ := g.source(nodes[0])
		return expr
	}
	return schema.Expr{Kind: schema.ExprComputed}
}

func typeArgList(ta *sitter.Node, src []byte) []string {
	var out []string
	eachNamedChild(ta, func(c *sitter.Node) {
		out = append(out, nodeText(c, src))
	})
	return out
}

func baseIdent(n *sitter.Node, src []byte) string {
	for n != nil && n.Kind() == "selector_expression" {
		n = n.ChildByFieldName("operand")
	}
	if n != nil && n.Kind() == "identifier" {
		return nodeText(n, src)
	}
	return ""
}
