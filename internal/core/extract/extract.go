// Package extract turns parsed files into knowledge-base facts: record
// shapes for plain-data declarations and operation facts for recognized
// persistence call sites. Unrecognized constructs are ignored, never fatal
package extract

import (
	"strconv"
	"strings"
	"time"

	"datalens/internal/core/ident"
	"datalens/internal/core/parse"
	"datalens/internal/core/schema"
)

// maxFilterText bounds stored filter expression text
const maxFilterText = 500

// annotationMethod is the one method a record shape may carry and still
// count as plain data
const annotationMethod = "CollectionName"

// Meta pins the provenance shared by every fact extracted from one file
type Meta struct {
	Repository string
	FilePath   string
	CommitSHA  string
	CapturedAt time.Time
}

// Extraction is the fact set produced from one file. Scopes carries the
// assignment chain per enclosing symbol so the resolver can trace
// variable-bound collection names; Deferred counts call sites skipped inside
// generic declarations
type Extraction struct {
	Records  []schema.RecordShape
	Ops      []schema.Operation
	Scopes   map[string]parse.Scope
	Deferred int
}

// Facts converts one parsed file into facts. Call ordinals count call sites
// of the same kind inside one enclosing symbol in source order, so operation
// identities survive unrelated line drift
func Facts(res *parse.Result, m Meta) Extraction {
	out := Extraction{Scopes: make(map[string]parse.Scope, len(res.Scopes))}

	for _, d := range res.Decls {
		if !recordCandidate(d) {
			continue
		}
		prov := schema.Provenance{
			Repository: m.Repository,
			FilePath:   m.FilePath,
			SymbolName: d.Symbol,
			CommitSHA:  m.CommitSHA,
			StartLine:  d.StartLine,
			EndLine:    d.EndLine,
			CapturedAt: m.CapturedAt,
		}
		rec := schema.RecordShape{
			ID:         prov.Identity(schema.KindRecordShape),
			SymbolName: d.Symbol,
			Fields:     fields(d),
			Annotation: strings.TrimSpace(d.Annotation),
			Provenance: prov,
		}
		out.Records = append(out.Records, rec)
	}

	ordinals := make(map[string]int)
	for _, c := range res.Calls {
		if c.Deferred {
			out.Deferred++
			continue
		}
		kind := kindOf(c.Method)
		enclosing := c.Enclosing
		if enclosing == "" {
			enclosing = "<module>"
		}

		key := enclosing + "\x00" + string(kind)
		ord := ordinals[key]
		ordinals[key]++
		symbol := enclosing + "#" + string(kind) + "#" + strconv.Itoa(ord)

		prov := schema.Provenance{
			Repository: m.Repository,
			FilePath:   m.FilePath,
			SymbolName: symbol,
			CommitSHA:  m.CommitSHA,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			CapturedAt: m.CapturedAt,
		}
		op := schema.Operation{
			ID:              prov.Identity(kind),
			Kind:            kind,
			BoundTypeSymbol: boundSymbol(c),
			Collection:      c.Collection,
			FilterText:      ident.CleanText(c.FilterText, maxFilterText),
			Provenance:      prov,
		}
		out.Ops = append(out.Ops, op)

		if _, ok := out.Scopes[enclosing]; !ok {
			out.Scopes[enclosing] = res.ScopeFor(c.Enclosing)
		}
	}

	return out
}

// recordCandidate keeps declarations that are plain data: at least one typed
// field and no methods beyond an optional CollectionName annotation
func recordCandidate(d parse.Decl) bool {
	if len(d.Fields) == 0 {
		return false
	}
	for _, m := range d.Methods {
		if m != annotationMethod {
			return false
		}
	}
	return true
}

func fields(d parse.Decl) []schema.Field {
	fs := make([]schema.Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		fs = append(fs, schema.Field{
			Name:         f.Name,
			DeclaredType: f.DeclaredType,
			Nullable:     f.Nullable,
		})
	}
	return fs
}

// boundSymbol prefers an explicit type argument over the handle's element
// type; instantiation sites carry the argument, plain handles carry the type
func boundSymbol(c parse.Call) string {
	if len(c.TypeArgs) > 0 {
		return c.TypeArgs[0]
	}
	return c.BoundType
}

// kindByCall maps folded method names (lower-cased, underscores removed) to
// operation kinds, covering the Go, JS/TS and Python driver spellings at once
var kindByCall = map[string]schema.FactKind{
	"find":              schema.KindFind,
	"findone":           schema.KindFind,
	"countdocuments":    schema.KindFind,
	"count":             schema.KindFind,
	"distinct":          schema.KindFind,
	"insert":            schema.KindInsert,
	"insertone":         schema.KindInsert,
	"insertmany":        schema.KindInsert,
	"create":            schema.KindInsert,
	"update":            schema.KindUpdate,
	"updateone":         schema.KindUpdate,
	"updatemany":        schema.KindUpdate,
	"replaceone":        schema.KindUpdate,
	"findoneandupdate":  schema.KindUpdate,
	"findoneandreplace": schema.KindUpdate,
	"delete":            schema.KindDelete,
	"deleteone":         schema.KindDelete,
	"deletemany":        schema.KindDelete,
	"findoneanddelete":  schema.KindDelete,
	"aggregate":         schema.KindAggregate,
}

// kindOf classifies a call-site method name; anything recognized on a handle
// but not in the table is Other (Watch, BulkWrite, index admin and friends)
func kindOf(method string) schema.FactKind {
	key := strings.ToLower(strings.ReplaceAll(method, "_", ""))
	if k, ok := kindByCall[key]; ok {
		return k
	}
	return schema.KindOther
}
