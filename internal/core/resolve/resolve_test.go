package resolve

import (
	"math"
	"testing"

	"datalens/internal/core/parse"
	"datalens/internal/core/schema"
)

func opWith(e schema.Expr, line int) schema.Operation {
	prov := schema.Provenance{
		Repository: "github.com/acme/orders",
		FilePath:   "orders.src",
		SymbolName: "loadOrders#find#0",
		CommitSHA:  "abc123",
		StartLine:  line,
		EndLine:    line,
	}
	return schema.Operation{
		ID:         prov.Identity(schema.KindFind),
		Kind:       schema.KindFind,
		Collection: e,
		Provenance: prov,
	}
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestResolve_LiteralString(t *testing.T) {
	r := New(0)
	op := opWith(schema.Expr{Kind: schema.ExprLiteral, Text: "orders"}, 42)

	got := r.Resolve(op, parse.Scope{}, nil)
	if got.Collection != "orders" || !almost(got.Confidence, 1.0) || got.Method != schema.MethodLiteral {
		t.Fatalf("got %+v, want orders at 1.0 via literal_string", got)
	}
	if got.OperationID != op.ID {
		t.Fatalf("resolution lost its operation id")
	}
}

func TestResolve_VariableBindingHops(t *testing.T) {
	r := New(0)

	// chain: a -> b -> c -> "orders"; call uses a at increasing depth
	sc := parse.Scope{
		Symbol: "loadOrders",
		Assigns: []parse.Assign{
			{Var: "c", RHS: schema.Expr{Kind: schema.ExprLiteral, Text: "orders"}, Line: 2},
			{Var: "b", RHS: schema.Expr{Kind: schema.ExprVar, Text: "c"}, Line: 3},
			{Var: "a", RHS: schema.Expr{Kind: schema.ExprVar, Text: "b"}, Line: 4},
		},
	}

	tests := []struct {
		use  string
		conf float64
	}{
		{"c", 0.85}, // one hop
		{"b", 0.70},
		{"a", 0.55},
	}
	prev := 1.0
	for _, tc := range tests {
		got := r.Resolve(opWith(schema.Expr{Kind: schema.ExprVar, Text: tc.use}, 9), sc, nil)
		if got.Collection != "orders" || got.Method != schema.MethodBinding {
			t.Fatalf("via %q: got %+v", tc.use, got)
		}
		if !almost(got.Confidence, tc.conf) {
			t.Fatalf("via %q: confidence = %v, want %v", tc.use, got.Confidence, tc.conf)
		}
		if got.Confidence > prev {
			t.Fatalf("confidence increased with hop count")
		}
		prev = got.Confidence
	}
}

func TestResolve_BindingUsesLatestAssignmentBeforeCall(t *testing.T) {
	r := New(0)
	sc := parse.Scope{
		Symbol: "sync",
		Assigns: []parse.Assign{
			{Var: "coll", RHS: schema.Expr{Kind: schema.ExprLiteral, Text: "orders_v1"}, Line: 3},
			{Var: "coll", RHS: schema.Expr{Kind: schema.ExprLiteral, Text: "orders_v2"}, Line: 20},
		},
	}

	got := r.Resolve(opWith(schema.Expr{Kind: schema.ExprVar, Text: "coll"}, 10), sc, nil)
	if got.Collection != "orders_v1" {
		t.Fatalf("call at line 10 should see the line 3 assignment, got %q", got.Collection)
	}
}

func TestResolve_ConfigKeyNames(t *testing.T) {
	r := New(0)

	// direct config argument
	got := r.Resolve(opWith(schema.Expr{Kind: schema.ExprConfig, Text: "app.orders.collection"}, 5), parse.Scope{}, nil)
	if got.Collection != "collection" || !almost(got.Confidence, 0.85) || got.Method != schema.MethodBinding {
		t.Fatalf("direct config: %+v", got)
	}

	// config key behind one variable hop
	sc := parse.Scope{
		Symbol: "boot",
		Assigns: []parse.Assign{
			{Var: "name", RHS: schema.Expr{Kind: schema.ExprConfig, Text: "ORDERS_COLLECTION"}, Line: 2},
		},
	}
	got = r.Resolve(opWith(schema.Expr{Kind: schema.ExprVar, Text: "name"}, 8), sc, nil)
	if got.Collection != "ORDERS_COLLECTION" || !almost(got.Confidence, 0.85) {
		t.Fatalf("config via binding: %+v", got)
	}
}

func TestResolve_AnnotationAndConvention(t *testing.T) {
	r := New(0)
	rec := &schema.RecordShape{SymbolName: "Customer", Annotation: "crm_customers"}

	got := r.Resolve(opWith(schema.Expr{Kind: schema.ExprComputed, Text: "buildName()"}, 7), parse.Scope{}, rec)
	if got.Collection != "crm_customers" || !almost(got.Confidence, 0.9) || got.Method != schema.MethodAnnotation {
		t.Fatalf("annotation should win: %+v", got)
	}
	if len(got.Candidates) != 2 {
		t.Fatalf("convention candidate should be kept too: %+v", got.Candidates)
	}
	if c := got.Candidates[1]; c.Name != "customers" || !almost(c.Confidence, 0.4) || c.Method != schema.MethodConvention {
		t.Fatalf("secondary candidate = %+v", c)
	}

	// no annotation: convention fallback alone
	got = r.Resolve(opWith(schema.Expr{Kind: schema.ExprComputed}, 7), parse.Scope{}, &schema.RecordShape{SymbolName: "Customer"})
	if got.Collection != "customers" || !almost(got.Confidence, 0.4) || got.Method != schema.MethodConvention {
		t.Fatalf("convention fallback: %+v", got)
	}
}

func TestResolve_Unresolved(t *testing.T) {
	r := New(0)

	got := r.Resolve(opWith(schema.Expr{Kind: schema.ExprComputed, Text: `"orders_" + suffix`}, 11), parse.Scope{}, nil)
	if got.Resolved() {
		t.Fatalf("computed name without record should stay unresolved: %+v", got)
	}
	if got.Confidence != 0 || got.Method != schema.MethodUnresolved || got.Collection != "" {
		t.Fatalf("unresolved shape wrong: %+v", got)
	}
	if len(got.Candidates) != 0 {
		t.Fatalf("unresolved keeps no candidates: %+v", got.Candidates)
	}
}

func TestResolve_HopLimitAndCycles(t *testing.T) {
	r := New(3)

	deep := parse.Scope{
		Symbol: "deep",
		Assigns: []parse.Assign{
			{Var: "d", RHS: schema.Expr{Kind: schema.ExprLiteral, Text: "orders"}, Line: 1},
			{Var: "c", RHS: schema.Expr{Kind: schema.ExprVar, Text: "d"}, Line: 2},
			{Var: "b", RHS: schema.Expr{Kind: schema.ExprVar, Text: "c"}, Line: 3},
			{Var: "a", RHS: schema.Expr{Kind: schema.ExprVar, Text: "b"}, Line: 4},
		},
	}
	// a needs 4 hops but the limit is 3; the record still rescues via convention
	got := r.Resolve(opWith(schema.Expr{Kind: schema.ExprVar, Text: "a"}, 9), deep, &schema.RecordShape{SymbolName: "Order"})
	if got.Method != schema.MethodConvention || got.Collection != "orders" {
		t.Fatalf("past the hop limit only convention should apply: %+v", got)
	}

	loop := parse.Scope{
		Symbol: "loop",
		Assigns: []parse.Assign{
			{Var: "x", RHS: schema.Expr{Kind: schema.ExprVar, Text: "y"}, Line: 2},
			{Var: "y", RHS: schema.Expr{Kind: schema.ExprVar, Text: "x"}, Line: 3},
		},
	}
	got = r.Resolve(opWith(schema.Expr{Kind: schema.ExprVar, Text: "x"}, 9), loop, nil)
	if got.Resolved() {
		t.Fatalf("assignment cycle should stay unresolved: %+v", got)
	}
}

func TestResolve_CandidateOrdering(t *testing.T) {
	r := New(0)

	// annotation (0.9) must outrank a two-hop binding (0.7) and convention (0.4)
	sc := parse.Scope{
		Symbol: "mixed",
		Assigns: []parse.Assign{
			{Var: "raw", RHS: schema.Expr{Kind: schema.ExprLiteral, Text: "orders_raw"}, Line: 2},
			{Var: "coll", RHS: schema.Expr{Kind: schema.ExprVar, Text: "raw"}, Line: 3},
		},
	}
	rec := &schema.RecordShape{SymbolName: "Order", Annotation: "orders_main"}

	got := r.Resolve(opWith(schema.Expr{Kind: schema.ExprVar, Text: "coll"}, 9), sc, rec)
	if got.Collection != "orders_main" || got.Method != schema.MethodAnnotation {
		t.Fatalf("primary = %+v", got)
	}
	want := []string{"orders_main", "orders_raw", "orders"}
	if len(got.Candidates) != len(want) {
		t.Fatalf("candidates = %+v", got.Candidates)
	}
	for i, name := range want {
		if got.Candidates[i].Name != name {
			t.Fatalf("candidate %d = %+v, want %q", i, got.Candidates[i], name)
		}
	}
	for i := 1; i < len(got.Candidates); i++ {
		if got.Candidates[i].Confidence > got.Candidates[i-1].Confidence {
			t.Fatalf("candidates not sorted: %+v", got.Candidates)
		}
	}
}

func TestSortCandidates_TieBreaks(t *testing.T) {
	cands := []schema.Candidate{
		{Name: "b_same", Confidence: 0.4, Method: schema.MethodConvention},
		{Name: "a_same", Confidence: 0.4, Method: schema.MethodConvention},
		{Name: "annotated", Confidence: 0.4, Method: schema.MethodAnnotation},
	}
	sortCandidates(cands)

	// equal confidence: stronger method first, then lexicographic
	want := []string{"annotated", "a_same", "b_same"}
	for i, name := range want {
		if cands[i].Name != name {
			t.Fatalf("position %d = %+v, want %q", i, cands[i], name)
		}
	}
}

func TestResolve_DuplicateNamesCollapse(t *testing.T) {
	r := New(0)

	// annotation and convention produce the same name; only the stronger survives
	rec := &schema.RecordShape{SymbolName: "Customer", Annotation: "customers"}
	got := r.Resolve(opWith(schema.Expr{Kind: schema.ExprComputed}, 4), parse.Scope{}, rec)
	if len(got.Candidates) != 1 {
		t.Fatalf("duplicate names should collapse: %+v", got.Candidates)
	}
	if got.Method != schema.MethodAnnotation || !almost(got.Confidence, 0.9) {
		t.Fatalf("kept the weaker duplicate: %+v", got)
	}
}
