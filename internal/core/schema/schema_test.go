package schema

import (
	"testing"
	"time"
)

func validProv() Provenance {
	return Provenance{
		Repository: "github.com/acme/orders",
		FilePath:   "internal/orders.go",
		SymbolName: "Order",
		CommitSHA:  "abc123",
		StartLine:  10,
		EndLine:    24,
		CapturedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestProvenance_Validate(t *testing.T) {
	if err := validProv().Validate(); err != nil {
		t.Fatalf("valid provenance rejected: %v", err)
	}

	tests := []struct {
		name string
		mut  func(*Provenance)
	}{
		{"missing repository", func(p *Provenance) { p.Repository = "" }},
		{"missing file path", func(p *Provenance) { p.FilePath = "" }},
		{"missing symbol", func(p *Provenance) { p.SymbolName = "" }},
		{"missing commit", func(p *Provenance) { p.CommitSHA = "" }},
		{"zero start line", func(p *Provenance) { p.StartLine = 0 }},
		{"inverted range", func(p *Provenance) { p.EndLine = p.StartLine - 1 }},
		{"missing capture time", func(p *Provenance) { p.CapturedAt = time.Time{} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := validProv()
			tc.mut(&p)
			if err := p.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestFactKind_Sets(t *testing.T) {
	if !KindRecordShape.Valid() || KindRecordShape.Operation() {
		t.Fatalf("record_shape misclassified")
	}
	for _, k := range OperationKinds {
		if !k.Valid() || !k.Operation() {
			t.Fatalf("%q should be a valid operation kind", k)
		}
	}
	if FactKind("drop_table").Valid() {
		t.Fatalf("unknown kind accepted")
	}
}

func TestOperation_LiteralHint(t *testing.T) {
	op := Operation{Collection: Expr{Kind: ExprLiteral, Text: "orders"}}
	if got := op.LiteralHint(); got != "orders" {
		t.Fatalf("LiteralHint = %q, want %q", got, "orders")
	}
	op.Collection = Expr{Kind: ExprVar, Text: "collName"}
	if got := op.LiteralHint(); got != "" {
		t.Fatalf("var expression should carry no hint, got %q", got)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want ScanMode
		ok   bool
	}{
		{"incremental", ModeIncremental, true},
		{"FULL", ModeFull, true},
		{" integrity ", ModeIntegrity, true},
		{"partial", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, err := ParseMode(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseMode(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseMode(%q) should fail", tc.in)
		}
	}
}

func TestScanRun_ExitCode(t *testing.T) {
	tests := []struct {
		name string
		run  ScanRun
		want int
	}{
		{"clean", ScanRun{Status: RunDone}, 0},
		{"skipped files", ScanRun{Status: RunDone, FilesSkipped: 2}, 1},
		{"unresolved facts", ScanRun{Status: RunDone, Unresolved: 1}, 1},
		{"drift", ScanRun{Status: RunDone, Drifted: 3}, 1},
		{"failed", ScanRun{Status: RunFailed, FailedStage: StageCommitting}, 2},
	}
	for _, tc := range tests {
		if got := tc.run.ExitCode(); got != tc.want {
			t.Fatalf("%s: ExitCode = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestMethod_Precedence(t *testing.T) {
	order := []Method{MethodLiteral, MethodBinding, MethodAnnotation, MethodConvention, MethodUnresolved}
	for i := 1; i < len(order); i++ {
		if order[i-1].Precedence() >= order[i].Precedence() {
			t.Fatalf("%q should bind stronger than %q", order[i-1], order[i])
		}
	}
}

func TestBatch_Counters(t *testing.T) {
	b := Batch{}
	if !b.Empty() || b.Facts() != 0 {
		t.Fatalf("zero batch should be empty")
	}
	b.Records = []RecordShape{{SymbolName: "Order"}}
	b.Ops = []Operation{{Kind: KindFind}, {Kind: KindInsert}}
	if b.Empty() || b.Facts() != 3 {
		t.Fatalf("Facts = %d, want 3", b.Facts())
	}
}
