// Package relate builds the fact graph: an arena of facts addressed by id
// plus a flat edge list, so mutually referencing record types need no owning
// pointers. The arena is seeded with the run's facts and the repository's
// already-known shapes, then queried per file
package relate

import (
	"sort"

	"datalens/internal/core/schema"
)

// MinConfidence is the floor below which an edge is reported, never created
const MinConfidence = 0.2

// Arena indexes facts for edge inference. Not safe for concurrent mutation;
// seed it first, then Infer freely
type Arena struct {
	records map[schema.FactID]schema.RecordShape
	ops     map[schema.FactID]schema.Operation
	res     map[schema.FactID]schema.Resolution

	bySymbol map[string][]schema.FactID // record ids by symbol name
	byRef    map[string][]schema.FactID // record ids referencing a symbol via a field type
	byColl   map[string][]schema.FactID // resolved op ids by collection name
	byBound  map[string][]schema.FactID // op ids by bound type symbol
}

// NewArena constructs an empty arena
func NewArena() *Arena {
	return &Arena{
		records:  make(map[schema.FactID]schema.RecordShape),
		ops:      make(map[schema.FactID]schema.Operation),
		res:      make(map[schema.FactID]schema.Resolution),
		bySymbol: make(map[string][]schema.FactID),
		byRef:    make(map[string][]schema.FactID),
		byColl:   make(map[string][]schema.FactID),
		byBound:  make(map[string][]schema.FactID),
	}
}

// AddRecord indexes a record shape. Re-adding the same identity replaces the
// stored fact without duplicating index entries
func (a *Arena) AddRecord(r schema.RecordShape) {
	if _, ok := a.records[r.ID]; ok {
		a.records[r.ID] = r
		return
	}
	a.records[r.ID] = r
	a.bySymbol[r.SymbolName] = append(a.bySymbol[r.SymbolName], r.ID)
	for _, f := range r.Fields {
		if base := baseType(f.DeclaredType); base != "" {
			a.byRef[base] = append(a.byRef[base], r.ID)
		}
	}
}

// AddOp indexes an operation fact with its resolution
func (a *Arena) AddOp(op schema.Operation, res schema.Resolution) {
	if _, ok := a.ops[op.ID]; ok {
		a.ops[op.ID] = op
		a.res[op.ID] = res
		return
	}
	a.ops[op.ID] = op
	a.res[op.ID] = res
	if op.BoundTypeSymbol != "" {
		a.byBound[op.BoundTypeSymbol] = append(a.byBound[op.BoundTypeSymbol], op.ID)
	}
	if res.Resolved() {
		a.byColl[res.Collection] = append(a.byColl[res.Collection], op.ID)
	}
}

// Record returns an indexed record shape
func (a *Arena) Record(id schema.FactID) (schema.RecordShape, bool) {
	r, ok := a.records[id]
	return r, ok
}

// Size reports indexed fact counts for logging
func (a *Arena) Size() (records, ops int) {
	return len(a.records), len(a.ops)
}

// Result is one inference pass. Edges met the confidence floor; Low were
// computed but fell under it and are only reported. Bound maps operation ids
// to the single record shape their bound symbol matched
type Result struct {
	Edges []schema.Edge
	Low   []schema.Edge
	Bound map[schema.FactID]schema.FactID
}

// Infer emits every edge touching the given facts, deduplicated and in
// deterministic order. Edge confidence is the product of the endpoint fact
// confidences: record shapes count 1.0, operations their resolution
// confidence. Ambiguous symbol matches (two records sharing a symbol) bind
// nothing rather than guessing
func (a *Arena) Infer(ids []schema.FactID) Result {
	out := Result{Bound: make(map[schema.FactID]schema.FactID)}
	seen := make(map[schema.Edge]bool)

	emit := func(e schema.Edge) {
		if seen[e] {
			return
		}
		seen[e] = true
		if e.Confidence >= MinConfidence {
			out.Edges = append(out.Edges, e)
		} else {
			out.Low = append(out.Low, e)
		}
	}

	for _, id := range ids {
		if op, ok := a.ops[id]; ok {
			a.inferOp(op, emit, out.Bound)
		}
		if rec, ok := a.records[id]; ok {
			a.inferRecord(rec, emit, out.Bound)
		}
	}

	sortEdges(out.Edges)
	sortEdges(out.Low)
	return out
}

func (a *Arena) inferOp(op schema.Operation, emit func(schema.Edge), bound map[schema.FactID]schema.FactID) {
	if rid, ok := a.uniqueRecord(op.BoundTypeSymbol); ok {
		bound[op.ID] = rid
		emit(schema.Edge{
			From:       op.ID,
			To:         rid,
			Kind:       schema.EdgeUsesRecord,
			Confidence: a.conf(op.ID),
		})
	}

	if res := a.res[op.ID]; res.Resolved() {
		for _, other := range a.byColl[res.Collection] {
			if other == op.ID {
				continue
			}
			from, to := op.ID, other
			if to < from {
				from, to = to, from
			}
			emit(schema.Edge{
				From:       from,
				To:         to,
				Kind:       schema.EdgeSameCollection,
				Confidence: a.conf(op.ID) * a.conf(other),
			})
		}
	}
}

func (a *Arena) inferRecord(rec schema.RecordShape, emit func(schema.Edge), bound map[schema.FactID]schema.FactID) {
	// fields of this record naming other records
	for _, f := range rec.Fields {
		base := baseType(f.DeclaredType)
		if base == "" {
			continue
		}
		if rid, ok := a.uniqueRecord(base); ok {
			emit(schema.Edge{From: rec.ID, To: rid, Kind: schema.EdgeReferencesRecord, Confidence: 1.0})
		}
	}

	// known records whose fields name this one, and operations bound to it;
	// both only when this symbol is unambiguous
	if _, ok := a.uniqueRecord(rec.SymbolName); !ok {
		return
	}
	for _, rid := range a.byRef[rec.SymbolName] {
		if rid == rec.ID {
			continue
		}
		emit(schema.Edge{From: rid, To: rec.ID, Kind: schema.EdgeReferencesRecord, Confidence: 1.0})
	}
	for _, oid := range a.byBound[rec.SymbolName] {
		bound[oid] = rec.ID
		emit(schema.Edge{
			From:       oid,
			To:         rec.ID,
			Kind:       schema.EdgeUsesRecord,
			Confidence: a.conf(oid),
		})
	}
}

// uniqueRecord resolves a symbol to a record id only when exactly one record
// carries it
func (a *Arena) uniqueRecord(symbol string) (schema.FactID, bool) {
	if symbol == "" {
		return 0, false
	}
	ids := a.bySymbol[symbol]
	if len(ids) != 1 {
		return 0, false
	}
	return ids[0], true
}

// conf is the fact confidence used in edge products: operations carry their
// resolution confidence, everything else counts 1.0
func (a *Arena) conf(id schema.FactID) float64 {
	if _, ok := a.ops[id]; ok {
		return a.res[id].Confidence
	}
	return 1.0
}

func sortEdges(edges []schema.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Kind < b.Kind
	})
}
