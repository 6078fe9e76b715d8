// Package ch provides a clickhouse client over the native protocol
package ch

import (
	"context"
	"errors"

	"github.com/ClickHouse/clickhouse-go/v2"
	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures clickhouse connectivity
type Config struct {
	URL        string
	ClientName string
	ClientTag  string
}

// Rows is the minimal result set iteration for ch
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// nativeConn is the subset of the driver connection CH uses
type nativeConn interface {
	Query(ctx context.Context, query string, args ...any) (chdriver.Rows, error)
	PrepareBatch(ctx context.Context, query string, opts ...chdriver.PrepareBatchOption) (chdriver.Batch, error)
	Ping(ctx context.Context) error
	Close() error
}

// CH holds one native protocol connection pool
type CH struct {
	conn nativeConn
}

// dial is a seam so tests can swap the driver constructor
var dial = func(opts *clickhouse.Options) (nativeConn, error) {
	return clickhouse.Open(opts)
}

// Open parses the DSN and builds the connection pool.
// The pool dials lazily, readiness is checked via Ping
func Open(_ context.Context, cfg Config) (*CH, error) {
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.ClientInfo = BuildClientInfo(cfg.ClientName, cfg.ClientTag)

	conn, err := dial(opts)
	if err != nil {
		return nil, err
	}
	return &CH{conn: conn}, nil
}

// Insert appends rows to table through a prepared batch
// rows carries one inner slice per row, column order must match the table
func (c *CH) Insert(ctx context.Context, table string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if c == nil || c.conn == nil {
		return errors.New("ch: not connected")
	}
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := batch.Append(r...); err != nil {
			_ = batch.Abort()
			return err
		}
	}
	return batch.Send()
}

// Query runs a query and returns ch.Rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if c == nil || c.conn == nil {
		return nil, errors.New("ch: not connected")
	}
	r, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return driverRows{r: r}, nil
}

// Ping verifies connectivity
func (c *CH) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errors.New("ch: not connected")
	}
	return c.conn.Ping(ctx)
}

// Close closes the pool
func (c *CH) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// rowsSource is the subset of driver rows the wrapper needs
type rowsSource interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// driverRows adapts driver rows to ch.Rows
type driverRows struct{ r rowsSource }

func (d driverRows) Next() bool             { return d.r.Next() }
func (d driverRows) Scan(dest ...any) error { return d.r.Scan(dest...) }
func (d driverRows) Err() error             { return d.r.Err() }
func (d driverRows) Close() error           { return d.r.Close() }
func (d driverRows) Columns() []string      { return d.r.Columns() }
