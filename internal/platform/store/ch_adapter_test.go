package store

import (
	"context"
	"errors"
	"testing"

	"datalens/internal/platform/store/ch"
)

// fakeCHConn records calls and lets tests force errors
type fakeCHConn struct {
	insertTable string
	insertRows  [][]any
	insertErr   error
	queryRows   ch.Rows
	queryErr    error
	pingErr     error
	closed      bool
}

func (f *fakeCHConn) Insert(_ context.Context, table string, rows [][]any) error {
	f.insertTable = table
	f.insertRows = rows
	return f.insertErr
}

func (f *fakeCHConn) Query(context.Context, string, ...any) (ch.Rows, error) {
	return f.queryRows, f.queryErr
}

func (f *fakeCHConn) Ping(context.Context) error { return f.pingErr }
func (f *fakeCHConn) Close() error               { f.closed = true; return nil }

// fakeCHRows implements ch.Rows
type fakeCHRows struct {
	cols   []string
	nexts  int
	err    error
	closed bool
}

func (f *fakeCHRows) Next() bool        { f.nexts++; return false }
func (f *fakeCHRows) Scan(...any) error { return nil }
func (f *fakeCHRows) Err() error        { return f.err }
func (f *fakeCHRows) Close() error      { f.closed = true; return nil }
func (f *fakeCHRows) Columns() []string { return f.cols }

func TestCHAdapter_Insert_RejectsUnsupportedShape(t *testing.T) {
	t.Parallel()

	a := newCHAdapter(&fakeCHConn{})
	if err := a.Insert(context.Background(), "field_samples", struct{}{}); err == nil {
		t.Fatalf("expected shape error for non [][]any data")
	}
}

func TestCHAdapter_Insert_DelegatesRows(t *testing.T) {
	t.Parallel()

	f := &fakeCHConn{}
	a := newCHAdapter(f)

	data := [][]any{{"orders", "run-1", "total"}, {"orders", "run-1", "status"}}
	if err := a.Insert(context.Background(), "field_samples", data); err != nil {
		t.Fatalf("Insert err: %v", err)
	}
	if f.insertTable != "field_samples" || len(f.insertRows) != 2 {
		t.Fatalf("Insert did not delegate: table=%q rows=%d", f.insertTable, len(f.insertRows))
	}
}

func TestCHAdapter_Query_PropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	a := newCHAdapter(&fakeCHConn{queryErr: boom})

	rows, err := a.Query(context.Background(), "SELECT 1")
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}
	if rows != nil {
		t.Fatalf("expected nil rows on error, got %#v", rows)
	}
}

func TestCHAdapter_Query_WrapsRows(t *testing.T) {
	t.Parallel()

	inner := &fakeCHRows{cols: []string{"collection_name", "path"}}
	a := newCHAdapter(&fakeCHConn{queryRows: inner})

	rows, err := a.Query(context.Background(), "SELECT collection_name, path FROM field_samples")
	if err != nil {
		t.Fatalf("Query err: %v", err)
	}

	cols := rows.Columns()
	if len(cols) != 2 || cols[0] != "collection_name" || cols[1] != "path" {
		t.Fatalf("Columns mismatch: %#v", cols)
	}
	if rows.Next() {
		t.Fatalf("fake has no rows")
	}
	if rows.Err() != nil {
		t.Fatalf("Err should be nil")
	}
	rows.Close()
	if !inner.closed {
		t.Fatalf("Close did not delegate to underlying rows")
	}
}

func TestCHAdapter_PingAndClose_Delegate(t *testing.T) {
	t.Parallel()

	f := &fakeCHConn{pingErr: errors.New("cold")}
	a := newCHAdapter(f)

	type pinger interface{ Ping(context.Context) error }
	p, ok := a.(pinger)
	if !ok {
		t.Fatalf("adapter does not expose Ping")
	}
	if err := p.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error")
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}
	if !f.closed {
		t.Fatalf("Close did not delegate")
	}
}
