// Package testutil provides a stub database/sql driver that mimics the
// constraint behaviour of PostgreSQL closely enough for store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// StubConn records executed statements and tracks inserted rows per table.
type StubConn struct {
	mu         sync.Mutex
	Execs      []string
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	Commits    int
	Rollbacks  int
	rows       map[string]map[string]bool
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{rows: make(map[string]map[string]bool)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Statements returns a copy of the executed statements.
func (c *StubConn) Statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Execs...)
}

// RowCount reports how many rows were inserted into table.
func (c *StubConn) RowCount(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows[table])
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext. Re-inserting an identical row
// fails with a unique violation unless the statement carries ON CONFLICT.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "INSERT INTO"):
		table := tableAfter(query, "INTO ")
		key := rowKey(args)
		if c.rows[table] == nil {
			c.rows[table] = make(map[string]bool)
		}
		if c.rows[table][key] {
			if strings.Contains(upper, "ON CONFLICT DO NOTHING") {
				return driver.RowsAffected(0), nil
			}
			return nil, &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint", TableName: table}
		}
		c.rows[table][key] = true
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(upper, "DELETE FROM"):
		table := tableAfter(query, "FROM ")
		n := len(c.rows[table])
		delete(c.rows, table)
		return driver.RowsAffected(int64(n)), nil
	}
	return driver.RowsAffected(0), nil
}

// QueryContext implements driver.QueryerContext. COUNT(*) reports tracked
// rows; any other SELECT returns an empty result with the selected columns.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lower := strings.ToLower(query)
	if !strings.HasPrefix(strings.TrimSpace(lower), "select ") {
		return nil, fmt.Errorf("cannot parse select: %s", query)
	}
	fromIdx := strings.Index(lower, " from ")
	if fromIdx == -1 {
		return nil, fmt.Errorf("cannot parse select: %s", query)
	}
	table := tableAfter(query, "FROM ")
	cols := splitColumns(strings.TrimSpace(query)[len("select "):fromIdx])
	if len(cols) == 1 && cols[0] == "count(*)" {
		return &stubRows{cols: cols, rows: [][]driver.Value{{int64(len(c.rows[table]))}}}, nil
	}
	return &stubRows{cols: cols}, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	t.conn.Commits++
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.Rollbacks++
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func tableAfter(query, token string) string {
	idx := strings.Index(strings.ToUpper(query), token)
	if idx == -1 {
		return ""
	}
	fields := strings.Fields(query[idx+len(token):])
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], "\"`")
}

func rowKey(args []driver.NamedValue) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a.Value)
	}
	return strings.Join(parts, "\x1f")
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.Trim(strings.ToLower(strings.TrimSpace(part)), "\""))
	}
	return out
}
