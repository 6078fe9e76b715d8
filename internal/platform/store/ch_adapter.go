package store

import (
	"context"
	"errors"

	"datalens/internal/platform/store/ch"
)

// chConn is the surface the adapter needs from ch.CH
type chConn interface {
	Insert(ctx context.Context, table string, rows [][]any) error
	Query(ctx context.Context, sql string, args ...any) (ch.Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

// newCHAdapter wraps a ch client into the store.Clickhouse seam
func newCHAdapter(c chConn) Clickhouse {
	return &clickhouseAdapter{inner: c}
}

// clickhouseAdapter adapts ch.CH to the store.Clickhouse interface
type clickhouseAdapter struct {
	inner chConn
}

var _ Clickhouse = (*clickhouseAdapter)(nil)

func (a *clickhouseAdapter) Insert(ctx context.Context, table string, data any) error {
	rows, ok := data.([][]any)
	if !ok {
		return errors.New("store: unsupported CH insert shape (want [][]any)")
	}
	return a.inner.Insert(ctx, table, rows)
}

func (a *clickhouseAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := a.inner.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &chRowsAdapter{r: r}, nil
}

func (a *clickhouseAdapter) Close() error { return a.inner.Close() }

// Ping reports clickhouse readiness for Guard
func (a *clickhouseAdapter) Ping(ctx context.Context) error {
	if a == nil || a.inner == nil {
		return errors.New("store: nil clickhouse adapter")
	}
	return a.inner.Ping(ctx)
}

// chRowsAdapter wraps ch.Rows as store.Rows
type chRowsAdapter struct {
	r ch.Rows
}

func (r *chRowsAdapter) Next() bool             { return r.r.Next() }
func (r *chRowsAdapter) Scan(dest ...any) error { return r.r.Scan(dest...) }
func (r *chRowsAdapter) Err() error             { return r.r.Err() }
func (r *chRowsAdapter) Close()                 { _ = r.r.Close() }
func (r *chRowsAdapter) Columns() []string      { return r.r.Columns() }
