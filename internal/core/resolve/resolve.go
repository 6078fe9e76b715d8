// Package resolve infers the target collection of an operation fact. Every
// applicable method contributes a candidate; the strongest becomes the
// binding and the rest stay visible for curation
package resolve

import (
	"sort"
	"strings"

	"datalens/internal/core/ident"
	"datalens/internal/core/parse"
	"datalens/internal/core/schema"
)

const (
	// DefaultMaxHops bounds variable-binding traces through a function body
	DefaultMaxHops = 5
	// hopPenalty is deducted per traced assignment hop
	hopPenalty = 0.15
	// annotationConfidence scores a collection-name annotation on the bound record
	annotationConfidence = 0.9
	// conventionConfidence scores the pluralized-symbol fallback
	conventionConfidence = 0.4
)

// Resolver scores collection bindings for operation facts
type Resolver struct {
	maxHops int
}

// New constructs a Resolver; maxHops <= 0 selects the default
func New(maxHops int) *Resolver {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	return &Resolver{maxHops: maxHops}
}

// Resolve scores every applicable method for one operation and picks the
// primary candidate. sc is the assignment chain of the call's enclosing
// symbol; rec is the record shape bound to the operation, nil when unknown.
// No method applying is not an error: the operation stays at confidence 0,
// flagged unresolved
func (r *Resolver) Resolve(op schema.Operation, sc parse.Scope, rec *schema.RecordShape) schema.Resolution {
	cands := r.candidates(op, sc, rec)
	sortCandidates(cands)
	cands = dedupe(cands)

	res := schema.Resolution{OperationID: op.ID, Method: schema.MethodUnresolved}
	if len(cands) > 0 {
		res.Collection = cands[0].Name
		res.Confidence = cands[0].Confidence
		res.Method = cands[0].Method
		res.Candidates = cands
	}
	return res
}

func (r *Resolver) candidates(op schema.Operation, sc parse.Scope, rec *schema.RecordShape) []schema.Candidate {
	var cands []schema.Candidate
	add := func(name string, conf float64, m schema.Method) {
		if name == "" {
			return
		}
		if conf < 0 {
			conf = 0
		}
		cands = append(cands, schema.Candidate{Name: name, Confidence: conf, Method: m})
	}

	switch op.Collection.Kind {
	case schema.ExprLiteral:
		add(op.Collection.Text, 1.0, schema.MethodLiteral)
	case schema.ExprVar:
		if name, hop, ok := r.trace(sc, op.Collection.Text, op.Provenance.StartLine); ok {
			add(name, 1.0-hopPenalty*float64(hop), schema.MethodBinding)
		}
	case schema.ExprConfig:
		// a config key used directly at the call reads like a one-hop binding
		add(lastSegment(op.Collection.Text), 1.0-hopPenalty, schema.MethodBinding)
	}

	if rec != nil {
		if rec.Annotation != "" {
			add(rec.Annotation, annotationConfidence, schema.MethodAnnotation)
		}
		add(ident.Pluralize(rec.SymbolName), conventionConfidence, schema.MethodConvention)
	}
	return cands
}

// trace walks local assignments backward from the call site. It stops at a
// literal or config key, follows variable references up to the hop limit and
// gives up on cycles or computed expressions
func (r *Resolver) trace(sc parse.Scope, name string, line int) (string, int, bool) {
	seen := make(map[string]bool, 4)
	cur, curLine := name, line
	for hop := 1; hop <= r.maxHops; hop++ {
		if seen[cur] {
			return "", 0, false
		}
		seen[cur] = true

		a, ok := sc.Last(cur, curLine)
		if !ok {
			return "", 0, false
		}
		switch a.RHS.Kind {
		case schema.ExprLiteral:
			return a.RHS.Text, hop, true
		case schema.ExprConfig:
			return lastSegment(a.RHS.Text), hop, true
		case schema.ExprVar:
			cur, curLine = a.RHS.Text, a.Line
		default:
			return "", 0, false
		}
	}
	return "", 0, false
}

// lastSegment maps a config key to a usable collection name:
// "app.orders.collection" gives "collection", "ORDERS_COLLECTION" gives itself
func lastSegment(key string) string {
	key = strings.TrimSpace(key)
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return key[i+1:]
	}
	return key
}

// sortCandidates orders by confidence descending, then method precedence,
// then name, so the primary pick and the stored candidate order are stable
func sortCandidates(cands []schema.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if pa, pb := a.Method.Precedence(), b.Method.Precedence(); pa != pb {
			return pa < pb
		}
		return a.Name < b.Name
	})
}

// dedupe keeps the strongest candidate per name; input must be sorted
func dedupe(cands []schema.Candidate) []schema.Candidate {
	seen := make(map[string]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return out
}
