// Package testutil provides a database/sql driver that stands in for the
// postgres snapshot table in tests. It understands only the statements the
// store issues against state(project, bucket, payload).
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
)

// StubConn keeps state rows per project and bucket. Writes inside a
// transaction are discarded when it rolls back or fails to commit.
type StubConn struct {
	Execs      []string
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	RowsErr    error

	rows   map[string]map[string][]byte
	backup map[string]map[string][]byte
}

var registered atomic.Int64

// NewStubDB registers a fresh stub driver and opens a sql.DB on it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{rows: map[string]map[string][]byte{}}
	name := fmt.Sprintf("stubpg%d", registered.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Payload returns the stored payload of one bucket.
func (c *StubConn) Payload(project, bucket string) ([]byte, bool) {
	p, ok := c.rows[project][bucket]
	return p, ok
}

// RowCount returns the number of stored rows across projects.
func (c *StubConn) RowCount() int {
	n := 0
	for _, buckets := range c.rows {
		n += len(buckets)
	}
	return n
}

type stubDriver struct {
	conn *StubConn
}

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn; every statement goes through the context
// methods instead.
func (c *StubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailExec {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	c.backup = copyRows(c.rows)
	return stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext for the delete and upsert the
// store runs on save.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	switch statement(query) {
	case "DELETE FROM state WHERE project":
		project, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		n := len(c.rows[project])
		delete(c.rows, project)
		return driver.RowsAffected(n), nil
	case "INSERT INTO state":
		if len(args) != 3 {
			return nil, fmt.Errorf("upsert wants 3 args, got %d", len(args))
		}
		project, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		bucket, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		payload, ok := args[2].Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("payload must be bytes, got %T", args[2].Value)
		}
		if c.rows[project] == nil {
			c.rows[project] = map[string][]byte{}
		}
		c.rows[project][bucket] = append([]byte(nil), payload...)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("unexpected exec: %s", query)
}

// QueryContext implements driver.QueryerContext for the load and list
// selects.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	switch statement(query) {
	case "SELECT bucket, payload FROM state WHERE project":
		project, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		buckets := c.rows[project]
		names := make([]string, 0, len(buckets))
		for b := range buckets {
			names = append(names, b)
		}
		sort.Strings(names)
		out := &stubRows{cols: []string{"bucket", "payload"}, err: c.RowsErr}
		for _, b := range names {
			out.rows = append(out.rows, []driver.Value{b, buckets[b]})
		}
		return out, nil
	case "SELECT project FROM state":
		out := &stubRows{cols: []string{"project"}, err: c.RowsErr}
		for project, buckets := range c.rows {
			for range buckets {
				out.rows = append(out.rows, []driver.Value{project})
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", query)
}

// statement reduces a query to the shape the stub dispatches on: the text
// before the first placeholder or column list.
func statement(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	if i := strings.IndexAny(q, "=("); i >= 0 {
		q = q[:i]
	}
	return strings.TrimSpace(q)
}

func stringArg(args []driver.NamedValue, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing arg %d", i+1)
	}
	s, ok := args[i].Value.(string)
	if !ok {
		return "", fmt.Errorf("arg %d must be a string, got %T", i+1, args[i].Value)
	}
	return s, nil
}

func copyRows(in map[string]map[string][]byte) map[string]map[string][]byte {
	out := make(map[string]map[string][]byte, len(in))
	for project, buckets := range in {
		out[project] = make(map[string][]byte, len(buckets))
		for b, p := range buckets {
			out[project][b] = p
		}
	}
	return out
}

type stubTx struct {
	conn *StubConn
}

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		t.conn.rows = t.conn.backup
		return fmt.Errorf("commit fail")
	}
	return nil
}

func (t stubTx) Rollback() error {
	t.conn.rows = t.conn.backup
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
