package ch

import (
	"context"
	"errors"
	"testing"
)

func TestOpen_BadDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{URL: "://bad"})
	if err == nil {
		t.Fatalf("expected DSN parse error, got nil")
	}
}

func TestOpen_ValidDSN_NoDial(t *testing.T) {
	t.Parallel()

	// the driver pool dials lazily, Open must succeed without a server
	c, err := Open(context.Background(), Config{
		URL:        "clickhouse://localhost:9000/datalens",
		ClientName: "datalens",
		ClientTag:  "test",
	})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if c == nil {
		t.Fatalf("Open returned nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

func TestNilSafety(t *testing.T) {
	t.Parallel()

	var c *CH
	if err := c.Close(); err != nil {
		t.Fatalf("nil Close should be a no-op, got %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("nil Ping should error")
	}
	if _, err := c.Query(context.Background(), "SELECT 1"); err == nil {
		t.Fatalf("nil Query should error")
	}
	// empty inserts short-circuit before touching the connection
	if err := c.Insert(context.Background(), "field_samples", nil); err != nil {
		t.Fatalf("empty Insert should be a no-op, got %v", err)
	}
}

// fakeDriverRows implements the rowsSource subset
type fakeDriverRows struct {
	cols   []string
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (f *fakeDriverRows) Next() bool {
	f.idx++
	return f.idx <= len(f.data)
}

func (f *fakeDriverRows) Scan(dest ...any) error {
	if f.idx < 1 || f.idx > len(f.data) {
		return errors.New("scan out of range")
	}
	row := f.data[f.idx-1]
	if len(dest) != len(row) {
		return errors.New("dest len mismatch")
	}
	for i := range dest {
		if p, ok := dest[i].(*string); ok {
			*p = row[i].(string)
			continue
		}
		return errors.New("unsupported dest")
	}
	return nil
}

func (f *fakeDriverRows) Err() error        { return f.err }
func (f *fakeDriverRows) Close() error      { f.closed = true; return nil }
func (f *fakeDriverRows) Columns() []string { return f.cols }

func TestDriverRows_Passthrough(t *testing.T) {
	t.Parallel()

	inner := &fakeDriverRows{
		cols: []string{"collection_name", "path"},
		data: [][]any{{"orders", "total"}, {"orders", "customer.email"}},
	}
	r := driverRows{r: inner}

	cols := r.Columns()
	if len(cols) != 2 || cols[0] != "collection_name" {
		t.Fatalf("Columns mismatch: %#v", cols)
	}

	var seen []string
	for r.Next() {
		var coll, path string
		if err := r.Scan(&coll, &path); err != nil {
			t.Fatalf("Scan err: %v", err)
		}
		seen = append(seen, coll+"/"+path)
	}
	if len(seen) != 2 || seen[1] != "orders/customer.email" {
		t.Fatalf("rows mismatch: %v", seen)
	}
	if r.Err() != nil {
		t.Fatalf("Err should be nil")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}
	if !inner.closed {
		t.Fatalf("Close did not delegate")
	}
}

func TestBuildClientInfo_Products(t *testing.T) {
	t.Parallel()

	ci := BuildClientInfo("datalens", "scan")
	if len(ci.Products) < 2 {
		t.Fatalf("expected at least name and go products, got %d", len(ci.Products))
	}
	if ci.Products[0].Name != "datalens" || ci.Products[0].Version != "scan" {
		t.Fatalf("first product mismatch: %+v", ci.Products[0])
	}

	// empty name falls back to the project name
	ci2 := BuildClientInfo("", "api")
	if ci2.Products[0].Name != "datalens" {
		t.Fatalf("fallback name mismatch: %+v", ci2.Products[0])
	}
}
