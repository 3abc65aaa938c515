// Package testutil provides a stub database that understands the statements
// issued by the postgres document backend.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// Row is a stored documents row.
type Row struct {
	Revision int64
	Payload  []byte
}

// StubConn keeps documents rows in memory and records executed statements.
type StubConn struct {
	mu        sync.Mutex
	Execs     []string
	Rows      map[string]Row
	FailPing  bool
	FailExec  bool
	FailQuery bool
}

var stubSeq atomic.Int64

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Rows: make(map[string]Row)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Row returns the stored row for name.
func (c *StubConn) Row(name string) (Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.Rows[name]
	return row, ok
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	switch verb(query) {
	case "UPDATE":
		// payload, revision, updated_at, name, expected
		if len(args) != 5 {
			return nil, fmt.Errorf("update expects 5 args, got %d", len(args))
		}
		name, _ := args[3].Value.(string)
		row, ok := c.Rows[name]
		if !ok || row.Revision != toInt(args[4].Value) {
			return driver.RowsAffected(0), nil
		}
		c.Rows[name] = Row{Revision: toInt(args[1].Value), Payload: toBytes(args[0].Value)}
		return driver.RowsAffected(1), nil
	case "INSERT":
		// name, revision, payload, updated_at
		if len(args) != 4 {
			return nil, fmt.Errorf("insert expects 4 args, got %d", len(args))
		}
		name, _ := args[0].Value.(string)
		if _, exists := c.Rows[name]; exists {
			return driver.RowsAffected(0), nil
		}
		c.Rows[name] = Row{Revision: toInt(args[1].Value), Payload: toBytes(args[2].Value)}
		return driver.RowsAffected(1), nil
	}
	return driver.RowsAffected(0), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailQuery {
		return nil, fmt.Errorf("query fail")
	}
	if verb(query) != "SELECT" || len(args) != 1 {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	name, _ := args[0].Value.(string)
	rows := &stubRows{cols: []string{"revision", "payload"}}
	if row, ok := c.Rows[name]; ok {
		rows.rows = [][]driver.Value{{row.Revision, append([]byte(nil), row.Payload...)}}
	}
	return rows, nil
}

func verb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func toInt(v driver.Value) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return -1
}

func toBytes(v driver.Value) []byte {
	switch p := v.(type) {
	case []byte:
		return append([]byte(nil), p...)
	case string:
		return []byte(p)
	}
	return nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

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
