// Package schema defines the knowledge-base data model shared by the
// extraction, resolution, inference, sampling and storage layers: facts and
// their provenance, resolutions, relationship edges, samples and scan runs.
package schema

import (
	"fmt"
	"strings"
	"time"
)

// FactKind discriminates fact identities. Record shapes are one kind; every
// operation kind is its own so the identity key
// (repository, file, symbol, kind) stays unique per call-site role
type FactKind string

const (
	KindRecordShape FactKind = "record_shape"
	KindFind        FactKind = "find"
	KindInsert      FactKind = "insert"
	KindUpdate      FactKind = "update"
	KindDelete      FactKind = "delete"
	KindAggregate   FactKind = "aggregate"
	KindOther       FactKind = "other"
)

// OperationKinds lists the call-site kinds in display order
var OperationKinds = []FactKind{KindFind, KindInsert, KindUpdate, KindDelete, KindAggregate, KindOther}

// Valid reports whether k is a known fact kind
func (k FactKind) Valid() bool {
	switch k {
	case KindRecordShape, KindFind, KindInsert, KindUpdate, KindDelete, KindAggregate, KindOther:
		return true
	}
	return false
}

// Operation reports whether k describes a call site rather than a record shape
func (k FactKind) Operation() bool { return k.Valid() && k != KindRecordShape }

// Provenance pins a fact to its origin. Immutable once attached; no fact may
// exist without one
type Provenance struct {
	Repository string    `json:"repository"`
	FilePath   string    `json:"file_path"`
	SymbolName string    `json:"symbol_name"`
	CommitSHA  string    `json:"commit_sha"`
	StartLine  int       `json:"start_line"`
	EndLine    int       `json:"end_line"`
	CapturedAt time.Time `json:"captured_at"`
}

// Validate rejects provenance with any missing component
func (p Provenance) Validate() error {
	switch {
	case p.Repository == "":
		return fmt.Errorf("schema: provenance missing repository")
	case p.FilePath == "":
		return fmt.Errorf("schema: provenance missing file path")
	case p.SymbolName == "":
		return fmt.Errorf("schema: provenance missing symbol name")
	case p.CommitSHA == "":
		return fmt.Errorf("schema: provenance missing commit sha")
	case p.StartLine <= 0 || p.EndLine < p.StartLine:
		return fmt.Errorf("schema: provenance has bad line range %d-%d", p.StartLine, p.EndLine)
	case p.CapturedAt.IsZero():
		return fmt.Errorf("schema: provenance missing capture time")
	}
	return nil
}

// Identity derives the fact id for this provenance under kind
func (p Provenance) Identity(kind FactKind) FactID {
	return Identity(p.Repository, p.FilePath, p.SymbolName, kind)
}

// Field is one declared field of a record shape, in declaration order
type Field struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declared_type"`
	Nullable     bool   `json:"nullable,omitempty"`
}

// RecordShape describes a plain data type: its declared fields and where the
// declaration lives. Annotation carries a collection-name annotation when the
// declaration has one (a CollectionName() literal, a static collection
// member, or a directive comment)
type RecordShape struct {
	ID         FactID     `json:"id"`
	SymbolName string     `json:"symbol_name"`
	Fields     []Field    `json:"fields"`
	Annotation string     `json:"annotation,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// ExprKind classifies a reduced source expression
type ExprKind string

const (
	ExprLiteral  ExprKind = "literal"  // quoted string literal
	ExprVar      ExprKind = "var"      // simple identifier reference
	ExprConfig   ExprKind = "config"   // configuration key lookup; Text is the key
	ExprComputed ExprKind = "computed" // anything the front-end could not reduce
)

// Expr is the reduced form of a source expression the resolver can reason
// about. Text holds the literal value, the variable name or the config key
// depending on Kind; computed expressions keep their source text for display
// only and are never traced
type Expr struct {
	Kind ExprKind `json:"kind"`
	Text string   `json:"text,omitempty"`
}

// Operation describes one persistence call site. BoundTypeSymbol is the
// record symbol seen at the call (type argument or handle element type);
// BoundRecordID is filled once inference finds exactly one matching shape
type Operation struct {
	ID              FactID     `json:"id"`
	Kind            FactKind   `json:"kind"`
	BoundRecordID   FactID     `json:"bound_record_id,omitempty"`
	BoundTypeSymbol string     `json:"bound_type_symbol,omitempty"`
	Collection      Expr       `json:"collection"`
	FilterText      string     `json:"filter_text,omitempty"`
	Provenance      Provenance `json:"provenance"`
}

// LiteralHint returns the collection name when it appeared as a literal at
// the call site, else ""
func (o Operation) LiteralHint() string {
	if o.Collection.Kind == ExprLiteral {
		return o.Collection.Text
	}
	return ""
}

// Enclosing returns the symbol the call site lives in. Operation symbols are
// "<enclosing>#<kind>#<ordinal>"
func (o Operation) Enclosing() string {
	sym := o.Provenance.SymbolName
	if i := strings.Index(sym, "#"); i >= 0 {
		return sym[:i]
	}
	return sym
}

// Batch carries everything produced from one file. The store applies a batch
// atomically so a file is never half-represented
type Batch struct {
	Repository  string        `json:"repository"`
	FilePath    string        `json:"file_path"`
	CommitSHA   string        `json:"commit_sha"`
	Records     []RecordShape `json:"records,omitempty"`
	Ops         []Operation   `json:"ops,omitempty"`
	Resolutions []Resolution  `json:"resolutions,omitempty"`
	Edges       []Edge        `json:"edges,omitempty"`
}

// Facts counts the facts in the batch
func (b Batch) Facts() int { return len(b.Records) + len(b.Ops) }

// Empty reports whether the batch carries nothing worth committing
func (b Batch) Empty() bool { return b.Facts() == 0 && len(b.Edges) == 0 }
