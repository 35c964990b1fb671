package engine

import (
	"context"
	"log/slog"
	"sort"

	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/querysql"
	"github.com/roach88/crossplot/internal/selection"
)

// Client is a live query bound to a filter selection.
type Client interface {
	// ID identifies the client in selection clauses.
	ID() string
	// Query builds the client's query under the current filter predicate,
	// which is nil when nothing filters the client.
	Query(filter queryir.Predicate) (queryir.Query, error)
	// Result delivers a query result or a *QueryError on the loop.
	Result(t *conn.Table, err error)
}

// Coordinator runs client queries and re-runs them when their filter
// selection changes.
//
// All methods must be called on the scheduler loop.
type Coordinator struct {
	sched    *Scheduler
	conn     conn.Connector
	compiler *querysql.SQLCompiler
	clients  map[string]*clientState
	// skipUnchanged suppresses re-queries when a client's effective
	// predicate did not change.
	skipUnchanged bool
}

type clientState struct {
	client  Client
	filter  *selection.Selection
	unsub   func()
	seq     int64
	lastKey string
	queried bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithAlwaysRequery re-runs every client on every filter change, even when
// its predicate is unchanged.
func WithAlwaysRequery() CoordinatorOption {
	return func(c *Coordinator) {
		c.skipUnchanged = false
	}
}

// WithCompiler sets the SQL compiler. Default: parameterizing compiler.
func WithCompiler(compiler *querysql.SQLCompiler) CoordinatorOption {
	return func(c *Coordinator) {
		c.compiler = compiler
	}
}

// NewCoordinator creates a coordinator issuing queries to backend.
func NewCoordinator(s *Scheduler, backend conn.Connector, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		sched:         s,
		conn:          backend,
		compiler:      querysql.NewSQLCompiler(),
		clients:       make(map[string]*clientState),
		skipUnchanged: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Conn returns the backend.
func (c *Coordinator) Conn() conn.Connector {
	return c.conn
}

// Scheduler returns the loop the coordinator runs on.
func (c *Coordinator) Scheduler() *Scheduler {
	return c.sched
}

// Connect registers client and issues its first query. A non-nil filter
// re-issues the query whenever the client's predicate changes.
// Connecting an already connected client replaces its registration.
func (c *Coordinator) Connect(client Client, filter *selection.Selection) {
	id := client.ID()
	if _, ok := c.clients[id]; ok {
		c.Disconnect(client)
	}
	st := &clientState{client: client, filter: filter}
	c.clients[id] = st
	if filter != nil {
		st.unsub = filter.OnChange(func() { c.requery(st, false) })
	}
	slog.Debug("client connected", "client", id, "filtered", filter != nil)
	c.requery(st, true)
}

// Disconnect stops updates for client. Results of its in-flight queries are
// dropped.
func (c *Coordinator) Disconnect(client Client) {
	id := client.ID()
	st, ok := c.clients[id]
	if !ok {
		return
	}
	if st.unsub != nil {
		st.unsub()
	}
	st.seq++
	delete(c.clients, id)
	slog.Debug("client disconnected", "client", id)
}

// Requery re-issues client's query regardless of predicate changes.
func (c *Coordinator) Requery(client Client) {
	if st, ok := c.clients[client.ID()]; ok {
		c.requery(st, true)
	}
}

// Connected reports whether a client with id is registered.
func (c *Coordinator) Connected(id string) bool {
	_, ok := c.clients[id]
	return ok
}

// Clients returns the ids of connected clients in sorted order.
func (c *Coordinator) Clients() []string {
	ids := make([]string, 0, len(c.clients))
	for id := range c.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Coordinator) requery(st *clientState, force bool) {
	id := st.client.ID()
	if c.clients[id] != st {
		return
	}

	var pred queryir.Predicate
	if st.filter != nil {
		pred = st.filter.Predicate(id)
	}
	key, _, err := querysql.NewInlineCompiler().CompilePredicate(pred)
	if err != nil {
		st.client.Result(nil, &QueryError{Code: ErrCodeQueryBuild, Client: id, Err: err})
		return
	}
	if !force && c.skipUnchanged && st.queried && key == st.lastKey {
		slog.Debug("filter unchanged, skipping query", "client", id)
		return
	}
	st.lastKey = key
	st.queried = true

	q, err := st.client.Query(pred)
	if err != nil {
		st.client.Result(nil, &QueryError{Code: ErrCodeQueryBuild, Client: id, Err: err})
		return
	}
	sql, params, err := c.compiler.Compile(q)
	if err != nil {
		st.client.Result(nil, &QueryError{Code: ErrCodeQueryBuild, Client: id, Err: err})
		return
	}

	st.seq++
	seq := st.seq
	slog.Debug("issuing query", "client", id, "seq", seq, "sql", sql)

	c.sched.Go(func(ctx context.Context) Task {
		t, err := c.conn.Query(ctx, sql, params...)
		return func() {
			if c.clients[id] != st || st.seq != seq {
				slog.Debug("dropping superseded result", "client", id, "seq", seq)
				return
			}
			if err != nil {
				slog.Error("query failed", "client", id, "error", err)
				st.client.Result(nil, &QueryError{Code: ErrCodeQueryExec, Client: id, SQL: sql, Err: err})
				return
			}
			st.client.Result(t, nil)
		}
	})
}
