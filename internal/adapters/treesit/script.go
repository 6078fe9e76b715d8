package treesit

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"datalens/internal/core/parse"
	"datalens/internal/core/schema"
)

// extractScript walks a JavaScript or TypeScript file. Interfaces and
// classes become record candidates, member calls through collection handles
// become operations. Handles created by mongoose-style model() factories keep
// the model name so the record can be bound later
func extractScript(root *sitter.Node, src []byte, ts bool) *parse.Result {
	s := &scriptFile{
		src:        src,
		ts:         ts,
		scopes:     newScopeSet(),
		modelBound: make(map[string]string),
	}
	s.prepass(root)
	eachNamedChild(root, func(n *sitter.Node) { s.walk(n, "", nil, false) })
	return &parse.Result{Decls: s.decls, Calls: s.calls, Scopes: s.scopes.list()}
}

type scriptFile struct {
	src        []byte
	ts         bool
	decls      []parse.Decl
	calls      []parse.Call
	scopes     *scopeSet
	modelBound map[string]string // handle variable to model type name
}

// prepass records model() bindings before the main walk so handles used
// above their declaration still resolve
func (s *scriptFile) prepass(n *sitter.Node) {
	if n.Kind() == "variable_declarator" {
		name := n.ChildByFieldName("name")
		value := n.ChildByFieldName("value")
		if name != nil && name.Kind() == "identifier" && value != nil {
			if bound, _ := s.modelArgs(value); bound != "" {
				s.modelBound[nodeText(name, s.src)] = bound
			}
		}
	}
	eachNamedChild(n, s.prepass)
}

// modelArgs reports the model name and optional collection literal when n is
// a model() factory call
func (s *scriptFile) modelArgs(n *sitter.Node) (bound, collection string) {
	n = unwrapValue(n)
	if n == nil || n.Kind() != "call_expression" {
		return "", ""
	}
	fn := n.ChildByFieldName("function")
	name := ""
	switch {
	case fn == nil:
		return "", ""
	case fn.Kind() == "member_expression":
		name = nodeText(fn.ChildByFieldName("property"), s.src)
	case fn.Kind() == "identifier":
		name = nodeText(fn, s.src)
	}
	if foldName(name) != "model" {
		return "", ""
	}
	var literals []string
	if args := n.ChildByFieldName("arguments"); args != nil {
		eachNamedChild(args, func(a *sitter.Node) {
			if lit, ok := s.stringValue(a); ok {
				literals = append(literals, lit)
			}
		})
	}
	if len(literals) == 0 {
		return "", ""
	}
	if len(literals) > 1 {
		return literals[0], literals[1]
	}
	return literals[0], ""
}

func (s *scriptFile) walk(n *sitter.Node, enclosing string, params map[string]bool, generic bool) {
	switch n.Kind() {
	case "class_declaration", "class":
		s.classDecl(n, enclosing)
		return

	case "interface_declaration":
		s.interfaceDecl(n)
		return

	case "function_declaration", "generator_function_declaration":
		name := nodeText(n.ChildByFieldName("name"), s.src)
		gen := n.ChildByFieldName("type_parameters") != nil
		p := s.paramNames(n.ChildByFieldName("parameters"))
		if body := n.ChildByFieldName("body"); body != nil {
			s.walkAll(body, name, p, gen)
		}
		return

	case "variable_declarator":
		s.declarator(n, enclosing, params, generic)
		return

	case "assignment_expression":
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")
		if left != nil && right != nil {
			kind := left.Kind()
			if kind == "identifier" || kind == "member_expression" {
				expr, _, _ := s.source(right)
				s.scopes.add(enclosing, parse.Assign{
					Var:  nodeText(left, s.src),
					RHS:  expr,
					Line: startLine(left),
				})
			}
		}

	case "call_expression":
		s.maybeCall(n, enclosing, params, generic)
	}

	eachNamedChild(n, func(c *sitter.Node) { s.walk(c, enclosing, params, generic) })
}

func (s *scriptFile) walkAll(n *sitter.Node, enclosing string, params map[string]bool, generic bool) {
	eachNamedChild(n, func(c *sitter.Node) { s.walk(c, enclosing, params, generic) })
}

// declarator handles const/let/var bindings. Function values promote the
// binding name to an enclosing symbol at module level; everything else joins
// the assignment chain
func (s *scriptFile) declarator(n *sitter.Node, enclosing string, params map[string]bool, generic bool) {
	nameNode := n.ChildByFieldName("name")
	value := n.ChildByFieldName("value")
	if nameNode == nil || value == nil {
		return
	}
	name := nodeText(nameNode, s.src)

	inner := unwrapValue(value)
	if inner != nil && (inner.Kind() == "arrow_function" || inner.Kind() == "function_expression" || inner.Kind() == "function") {
		sym := enclosing
		if sym == "" {
			sym = name
		}
		gen := generic || inner.ChildByFieldName("type_parameters") != nil
		p := s.paramNames(funcParams(inner))
		if body := inner.ChildByFieldName("body"); body != nil {
			s.walkAll(body, sym, p, gen)
		}
		return
	}

	if nameNode.Kind() == "identifier" {
		expr, _, _ := s.source(value)
		s.scopes.add(enclosing, parse.Assign{Var: name, RHS: expr, Line: startLine(nameNode)})
	}
	// a declarator value can still hold operation calls, e.g. const n = coll.count()
	s.walkAll(value, enclosing, params, generic)
}

func funcParams(fn *sitter.Node) *sitter.Node {
	if p := fn.ChildByFieldName("parameters"); p != nil {
		return p
	}
	return fn.ChildByFieldName("parameter")
}

func (s *scriptFile) classDecl(n *sitter.Node, enclosing string) {
	name := nodeText(n.ChildByFieldName("name"), s.src)
	annotation := directiveIn(n, s.src)
	if annotation == "" {
		annotation = s.decoratorAnnotation(n)
	}

	var fields []parse.FieldDecl
	var methods []string

	body := n.ChildByFieldName("body")
	if body != nil {
		eachNamedChild(body, func(m *sitter.Node) {
			switch m.Kind() {
			case "method_definition":
				mname := nodeText(m.ChildByFieldName("name"), s.src)
				if mname != "" && mname != "constructor" {
					methods = append(methods, mname)
				}
				sym := mname
				if name != "" {
					sym = name + "." + mname
				}
				gen := m.ChildByFieldName("type_parameters") != nil
				p := s.paramNames(m.ChildByFieldName("parameters"))
				if mbody := m.ChildByFieldName("body"); mbody != nil {
					s.walkAll(mbody, sym, p, gen)
				}

			case "field_definition", "public_field_definition":
				s.classField(m, name, &fields, &methods, &annotation)
			}
		})
	}

	if name != "" {
		s.decls = append(s.decls, parse.Decl{
			Symbol:     name,
			Fields:     fields,
			Methods:    methods,
			Annotation: annotation,
			StartLine:  startLine(n),
			EndLine:    endLine(n),
		})
	}
}

func (s *scriptFile) classField(m *sitter.Node, class string, fields *[]parse.FieldDecl, methods *[]string, annotation *string) {
	prop := m.ChildByFieldName("property")
	if prop == nil {
		prop = m.ChildByFieldName("name")
	}
	if prop == nil {
		return
	}
	pname := strings.Trim(nodeText(prop, s.src), "'\"")
	value := m.ChildByFieldName("value")

	if hasToken(m, "static") {
		if foldName(pname) == "collection" && value != nil {
			if lit, ok := s.stringValue(value); ok {
				*annotation = lit
			}
		}
		return
	}

	// function-valued properties are behavior, not shape
	if inner := unwrapValue(value); inner != nil &&
		(inner.Kind() == "arrow_function" || inner.Kind() == "function_expression" || inner.Kind() == "function") {
		*methods = append(*methods, pname)
		sym := pname
		if class != "" {
			sym = class + "." + pname
		}
		if body := inner.ChildByFieldName("body"); body != nil {
			s.walkAll(body, sym, s.paramNames(funcParams(inner)), false)
		}
		return
	}

	declared := s.annotatedType(m)
	*fields = append(*fields, parse.FieldDecl{
		Name:         pname,
		DeclaredType: declared,
		Nullable:     hasToken(m, "?") || nullableType(declared),
	})
}

func (s *scriptFile) interfaceDecl(n *sitter.Node) {
	name := nodeText(n.ChildByFieldName("name"), s.src)
	if name == "" {
		return
	}
	annotation := directiveIn(n, s.src)

	var fields []parse.FieldDecl
	var methods []string
	if body := n.ChildByFieldName("body"); body != nil {
		eachNamedChild(body, func(m *sitter.Node) {
			switch m.Kind() {
			case "property_signature":
				pname := strings.Trim(nodeText(m.ChildByFieldName("name"), s.src), "'\"")
				declared := s.annotatedType(m)
				fields = append(fields, parse.FieldDecl{
					Name:         pname,
					DeclaredType: declared,
					Nullable:     hasToken(m, "?") || nullableType(declared),
				})
			case "method_signature":
				if mname := nodeText(m.ChildByFieldName("name"), s.src); mname != "" {
					methods = append(methods, mname)
				}
			}
		})
	}

	s.decls = append(s.decls, parse.Decl{
		Symbol:     name,
		Fields:     fields,
		Methods:    methods,
		Annotation: annotation,
		StartLine:  startLine(n),
		EndLine:    endLine(n),
	})
}

// annotatedType returns the declared type under a node's type annotation
func (s *scriptFile) annotatedType(n *sitter.Node) string {
	ta := n.ChildByFieldName("type")
	if ta == nil {
		return ""
	}
	if ta.Kind() == "type_annotation" {
		if inner := ta.NamedChild(0); inner != nil {
			return nodeText(inner, s.src)
		}
	}
	return nodeText(ta, s.src)
}

func nullableType(t string) bool {
	return strings.Contains(t, "null") || strings.Contains(t, "undefined")
}

// decoratorAnnotation reads @collection('name') off a class
func (s *scriptFile) decoratorAnnotation(class *sitter.Node) string {
	out := ""
	eachNamedChild(class, func(c *sitter.Node) {
		if out != "" || c.Kind() != "decorator" {
			return
		}
		call := c.NamedChild(0)
		if call == nil || call.Kind() != "call_expression" {
			return
		}
		fn := call.ChildByFieldName("function")
		if fn == nil || foldName(nodeText(fn, s.src)) != "collection" {
			return
		}
		if lit := firstScriptString(call, s.src); lit != "" {
			out = lit
		}
	})
	return out
}

func (s *scriptFile) paramNames(list *sitter.Node) map[string]bool {
	params := make(map[string]bool)
	if list == nil {
		return params
	}
	eachNamedChild(list, func(p *sitter.Node) {
		switch p.Kind() {
		case "identifier":
			params[nodeText(p, s.src)] = true
		case "required_parameter", "optional_parameter":
			if pat := p.ChildByFieldName("pattern"); pat != nil && pat.Kind() == "identifier" {
				params[nodeText(pat, s.src)] = true
			}
		}
	})
	return params
}

func (s *scriptFile) maybeCall(call *sitter.Node, enclosing string, params map[string]bool, generic bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "member_expression" {
		return
	}
	method := nodeText(fn.ChildByFieldName("property"), s.src)
	if !dataVerbs[foldName(method)] {
		return
	}
	recv := unwrapValue(fn.ChildByFieldName("object"))
	if recv == nil {
		return
	}

	var typeArgs []string
	if ta := call.ChildByFieldName("type_arguments"); ta != nil {
		typeArgs = typeArgList(ta, s.src)
	}

	collExpr, recvArgs, bound := s.source(recv)
	typeArgs = append(typeArgs, recvArgs...)
	if bound == "" && recv.Kind() == "identifier" {
		bound = s.modelBound[nodeText(recv, s.src)]
	}

	filter := ""
	done := false
	if args := call.ChildByFieldName("arguments"); args != nil {
		eachNamedChild(args, func(a *sitter.Node) {
			if done || filter != "" {
				return
			}
			if t := nodeText(a, s.src); t == "null" || t == "undefined" {
				done = true
			} else {
				filter = t
			}
		})
	}

	deferred := generic && collExpr.Kind == schema.ExprVar && params[collExpr.Text]

	s.calls = append(s.calls, parse.Call{
		Enclosing:  enclosing,
		Method:     method,
		Collection: collExpr,
		TypeArgs:   typeArgs,
		BoundType:  bound,
		FilterText: filter,
		Deferred:   deferred,
		StartLine:  startLine(call),
		EndLine:    endLine(call),
	})
}

// source reduces an expression to how a collection name appears there
func (s *scriptFile) source(n *sitter.Node) (schema.Expr, []string, string) {
	n = unwrapValue(n)
	if n == nil {
		return schema.Expr{Kind: schema.ExprComputed}, nil, ""
	}

	switch n.Kind() {
	case "call_expression":
		return s.callSource(n)

	case "identifier":
		return schema.Expr{Kind: schema.ExprVar, Text: nodeText(n, s.src)}, nil, ""

	case "member_expression":
		obj := n.ChildByFieldName("object")
		prop := nodeText(n.ChildByFieldName("property"), s.src)
		objText := nodeText(obj, s.src)
		if objText == "process.env" {
			return schema.Expr{Kind: schema.ExprConfig, Text: prop}, nil, ""
		}
		if configBases[foldName(objText)] {
			return schema.Expr{Kind: schema.ExprConfig, Text: prop}, nil, ""
		}
		return schema.Expr{Kind: schema.ExprVar, Text: nodeText(n, s.src)}, nil, ""

	case "subscript_expression":
		obj := n.ChildByFieldName("object")
		idx := n.ChildByFieldName("index")
		if idx == nil {
			break
		}
		objText := nodeText(obj, s.src)
		if lit, ok := s.stringValue(idx); ok {
			if objText == "process.env" || configBases[foldName(objText)] {
				return schema.Expr{Kind: schema.ExprConfig, Text: lit}, nil, ""
			}
			return schema.Expr{Kind: schema.ExprLiteral, Text: lit}, nil, ""
		}
		if idx.Kind() == "identifier" {
			return schema.Expr{Kind: schema.ExprVar, Text: nodeText(idx, s.src)}, nil, ""
		}
		expr, _, _ := s.source(idx)
		return expr, nil, ""

	case "string", "template_string":
		if lit, ok := s.stringValue(n); ok {
			return schema.Expr{Kind: schema.ExprLiteral, Text: lit}, nil, ""
		}
	}
	return schema.Expr{Kind: schema.ExprComputed, Text: nodeText(n, s.src)}, nil, ""
}

func (s *scriptFile) callSource(call *sitter.Node) (schema.Expr, []string, string) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return schema.Expr{Kind: schema.ExprComputed, Text: nodeText(call, s.src)}, nil, ""
	}

	var typeArgs []string
	if ta := call.ChildByFieldName("type_arguments"); ta != nil {
		typeArgs = typeArgList(ta, s.src)
	}

	name, base := "", ""
	switch fn.Kind() {
	case "member_expression":
		name = nodeText(fn.ChildByFieldName("property"), s.src)
		base = nodeText(fn.ChildByFieldName("object"), s.src)
	case "identifier":
		name = nodeText(fn, s.src)
	}
	folded := foldName(name)

	switch {
	case folded == "model":
		bound, collection := s.modelArgs(call)
		if collection != "" {
			return schema.Expr{Kind: schema.ExprLiteral, Text: collection}, typeArgs, bound
		}
		return schema.Expr{Kind: schema.ExprComputed, Text: nodeText(call, s.src)}, typeArgs, bound

	case collectionCalls[folded]:
		bound := ""
		if len(typeArgs) > 0 {
			bound = typeArgs[0]
		}
		return s.nameArg(call.ChildByFieldName("arguments")), typeArgs, bound

	case configBases[foldName(base)] && strings.HasPrefix(folded, "get"):
		if key := firstScriptString(call, s.src); key != "" {
			return schema.Expr{Kind: schema.ExprConfig, Text: key}, nil, ""
		}
	}
	return schema.Expr{Kind: schema.ExprComputed, Text: nodeText(call, s.src)}, typeArgs, ""
}

// nameArg classifies the collection-name argument of a factory call
func (s *scriptFile) nameArg(args *sitter.Node) schema.Expr {
	if args == nil {
		return schema.Expr{Kind: schema.ExprComputed}
	}
	var nodes []*sitter.Node
	eachNamedChild(args, func(a *sitter.Node) { nodes = append(nodes, a) })

	for _, a := range nodes {
		if lit, ok := s.stringValue(a); ok {
			return schema.Expr{Kind: schema.ExprLiteral, Text: lit}
		}
	}
	for _, a := range nodes {
		expr, _, _ := s.source(a)
		if expr.Kind == schema.ExprConfig {
			return expr
		}
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].Kind() == "identifier" {
			return schema.Expr{Kind: schema.ExprVar, Text: nodeText(nodes[i], s.src)}
		}
	}
	return schema.Expr{Kind: schema.ExprComputed}
}

// stringValue unwraps a plain string or substitution-free template literal
func (s *scriptFile) stringValue(n *sitter.Node) (string, bool) {
	n = unwrapValue(n)
	if n == nil {
		return "", false
	}
	switch n.Kind() {
	case "string":
		return strings.Trim(nodeText(n, s.src), "'\"`"), true
	case "template_string":
		plain := true
		eachNamedChild(n, func(c *sitter.Node) {
			if c.Kind() == "template_substitution" {
				plain = false
			}
		})
		if plain {
			return strings.Trim(nodeText(n, s.src), "`"), true
		}
	}
	return "", false
}

func firstScriptString(n *sitter.Node, src []byte) string {
	if n.Kind() == "string" {
		return strings.Trim(nodeText(n, src), "'\"")
	}
	var found string
	eachNamedChild(n, func(c *sitter.Node) {
		if found == "" {
			found = firstScriptString(c, src)
		}
	})
	return found
}

// unwrapValue strips await and parentheses
func unwrapValue(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Kind() {
		case "await_expression", "parenthesized_expression":
			n = n.NamedChild(0)
		default:
			return n
		}
	}
	return nil
}

// hasToken reports whether n carries the given anonymous token, such as the
// static modifier or an optional marker
func hasToken(n *sitter.Node, token string) bool {
	found := false
	eachChild(n, func(c *sitter.Node) {
		if !c.IsNamed() && c.Kind() == token {
			found = true
		}
	})
	return found
}
