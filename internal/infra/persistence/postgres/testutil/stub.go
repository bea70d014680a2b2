// Package testutil provides a database/sql driver that imitates the single
// state table of the postgres store, so the store can be tested without a
// server.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

var driverSeq atomic.Int64

// ErrUnsupported is returned for statements the stub does not understand.
var ErrUnsupported = errors.New("stub: unsupported statement")

// StubConn holds the state rows by key and counts transaction outcomes.
type StubConn struct {
	mu sync.Mutex
	// Execs lists every executed statement in order.
	Execs []string
	// State maps storage keys to their payload.
	State      map[string]string
	FailPing   bool
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	Commits    int
	Rollbacks  int

	pending map[string]string
}

// NewStubDB registers a fresh driver instance and opens a handle on it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{State: make(map[string]string)}
	name := fmt.Sprintf("labbook-stubpg-%d", driverSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Payload returns the committed payload stored under key.
func (c *StubConn) Payload(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.State[key]
	return p, ok
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn; statements always go through the context
// variants.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, ErrUnsupported }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("stub: ping failed")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx. Writes inside the transaction stay
// pending until Commit.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailBegin {
		return nil, errors.New("stub: begin failed")
	}
	c.pending = make(map[string]string)
	return stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext for the table DDL and the
// keyed upsert.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("stub: exec failed")
	}
	switch statementKind(query) {
	case "create":
		return driver.RowsAffected(0), nil
	case "insert":
		if len(args) != 2 {
			return nil, fmt.Errorf("stub: upsert wants 2 args, got %d", len(args))
		}
		key, payload := fmt.Sprint(args[0].Value), asString(args[1].Value)
		if c.pending != nil {
			c.pending[key] = payload
		} else {
			c.State[key] = payload
		}
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, query)
}

// QueryContext implements driver.QueryerContext for the keyed payload select.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if statementKind(query) != "select" || len(args) != 1 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, query)
	}
	rows := &stubRows{}
	if p, ok := c.State[fmt.Sprint(args[0].Value)]; ok {
		rows.payloads = append(rows.payloads, []byte(p))
	}
	return rows, nil
}

func statementKind(query string) string {
	q := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(q, "CREATE TABLE") && strings.Contains(q, "STATE"):
		return "create"
	case strings.HasPrefix(q, "INSERT INTO STATE"):
		return "insert"
	case strings.HasPrefix(q, "SELECT PAYLOAD FROM STATE"):
		return "select"
	}
	return ""
}

func asString(v driver.Value) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailCommit {
		return errors.New("stub: commit failed")
	}
	for k, v := range c.pending {
		c.State[k] = v
	}
	c.pending = nil
	c.Commits++
	return nil
}

func (t stubTx) Rollback() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	c.Rollbacks++
	return nil
}

type stubRows struct {
	payloads [][]byte
	idx      int
}

func (r *stubRows) Columns() []string { return []string{"payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.payloads) {
		return io.EOF
	}
	dest[0] = r.payloads[r.idx]
	r.idx++
	return nil
}
