package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/crossplot/internal/conn"
)

// Query is one statement recorded by FakeConn or RecordingConn.
type Query struct {
	SQL  string
	Args []any
}

// Handler answers a query for FakeConn.
type Handler func(sql string, args []any) (*conn.Table, error)

// Rule answers every query whose SQL contains Contains.
type Rule struct {
	Contains string
	Table    *conn.Table
	Err      error
}

// Match builds a Handler from rules. The first matching rule wins; an
// unmatched query is an error so tests notice unexpected statements.
func Match(rules ...Rule) Handler {
	return func(sql string, args []any) (*conn.Table, error) {
		for _, r := range rules {
			if strings.Contains(sql, r.Contains) {
				if r.Err != nil {
					return nil, r.Err
				}
				return r.Table, nil
			}
		}
		return nil, fmt.Errorf("fakeconn: no rule for %q", sql)
	}
}

// FakeConn is a scripted conn.Connector that records every statement.
//
// Hold makes subsequent queries block until released, which lets tests
// interleave other work with an in-flight query.
//
// Thread-safety: All methods are safe for concurrent use.
type FakeConn struct {
	mu      sync.Mutex
	handler Handler
	queries []Query
	execs   []string
	gate    chan struct{}
}

// NewFakeConn creates a FakeConn. A nil handler answers every query with an
// empty table.
func NewFakeConn(h Handler) *FakeConn {
	if h == nil {
		h = func(string, []any) (*conn.Table, error) { return conn.NewTable(), nil }
	}
	return &FakeConn{handler: h}
}

// Query implements conn.Connector.
func (f *FakeConn) Query(ctx context.Context, sql string, args ...any) (*conn.Table, error) {
	f.mu.Lock()
	f.queries = append(f.queries, Query{SQL: sql, Args: args})
	gate := f.gate
	handler := f.handler
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return handler(sql, args)
}

// Exec implements conn.Connector.
func (f *FakeConn) Exec(_ context.Context, stmt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, stmt)
	return nil
}

// SetHandler replaces the handler for later queries.
func (f *FakeConn) SetHandler(h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

// Hold blocks queries issued from now on until the returned release
// function is called. Release is idempotent.
func (f *FakeConn) Hold() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Queries returns a copy of the recorded queries.
func (f *FakeConn) Queries() []Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Query(nil), f.queries...)
}

// QueryCount returns how many queries were issued.
func (f *FakeConn) QueryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// Execs returns a copy of the recorded statements.
func (f *FakeConn) Execs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.execs...)
}

// RecordingConn wraps a real Connector and records its queries.
type RecordingConn struct {
	Inner conn.Connector

	mu      sync.Mutex
	queries []Query
}

// NewRecordingConn wraps inner.
func NewRecordingConn(inner conn.Connector) *RecordingConn {
	return &RecordingConn{Inner: inner}
}

// Query implements conn.Connector.
func (r *RecordingConn) Query(ctx context.Context, sql string, args ...any) (*conn.Table, error) {
	r.mu.Lock()
	r.queries = append(r.queries, Query{SQL: sql, Args: args})
	r.mu.Unlock()
	return r.Inner.Query(ctx, sql, args...)
}

// Exec implements conn.Connector.
func (r *RecordingConn) Exec(ctx context.Context, stmt string) error {
	return r.Inner.Exec(ctx, stmt)
}

// QueryCount returns how many queries were issued.
func (r *RecordingConn) QueryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

// Queries returns a copy of the recorded queries.
func (r *RecordingConn) Queries() []Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Query(nil), r.queries...)
}
