// Package parse defines the capability contract between the scanner and a
// language front-end. An adapter turns one file's content into declarations,
// call sites and local symbol bindings; everything downstream consumes this
// neutral form and never touches a syntax tree
package parse

import (
	"context"

	"datalens/internal/core/lang"
	"datalens/internal/core/schema"
)

// File is one unit of front-end work
type File struct {
	Path     string
	Language lang.Language
	Content  []byte
}

// FieldDecl is one declared field on a type declaration, in source order
type FieldDecl struct {
	Name         string
	DeclaredType string
	Nullable     bool
}

// Decl is a type declaration that may qualify as a record shape
type Decl struct {
	Symbol     string
	Fields     []FieldDecl
	Methods    []string // method names declared on the type
	Annotation string   // collection-name annotation, "" when absent
	StartLine  int
	EndLine    int
}

// Call is a call site recognized on a collection handle. Collection is the
// reduced collection-name expression; Deferred marks calls inside a generic
// declaration whose receiver type is still a type parameter, which produce
// facts only at instantiation sites
type Call struct {
	Enclosing  string      // enclosing function or method symbol
	Method     string      // raw method name at the call site
	Collection schema.Expr // how the collection name appeared
	TypeArgs   []string    // generic type arguments, outermost first
	BoundType  string      // record symbol bound to the handle, "" when unknown
	FilterText string      // source text of the filter argument, "" when absent
	Deferred   bool
	StartLine  int
	EndLine    int
}

// Assign is one local variable assignment inside a function body
type Assign struct {
	Var  string
	RHS  schema.Expr
	Line int
}

// Scope is the assignment chain of one enclosing symbol, in source order.
// The resolver walks it backward to trace variable-bound collection names
type Scope struct {
	Symbol  string
	Assigns []Assign
}

// Last returns the latest assignment to name at or before line; line 0 means
// anywhere in the body
func (s Scope) Last(name string, line int) (Assign, bool) {
	for i := len(s.Assigns) - 1; i >= 0; i-- {
		a := s.Assigns[i]
		if a.Var != name {
			continue
		}
		if line > 0 && a.Line > line {
			continue
		}
		return a, true
	}
	return Assign{}, false
}

// Result is everything the front-end extracted from one file
type Result struct {
	Decls  []Decl
	Calls  []Call
	Scopes []Scope
}

// ScopeFor returns the assignment chain of the named symbol, empty when the
// front-end recorded none
func (r *Result) ScopeFor(symbol string) Scope {
	for _, s := range r.Scopes {
		if s.Symbol == symbol {
			return s
		}
	}
	return Scope{Symbol: symbol}
}

// Parser is the front-end capability. Implementations must be safe for
// concurrent use by the extraction worker pool
type Parser interface {
	Parse(ctx context.Context, f File) (*Result, error)
	Languages() []lang.Language
}
