// Package selection implements the shared cross-filter: a named set of
// predicate clauses, one per source, combined per client so that a chart's
// own clauses never filter its own queries.
//
// A Selection is not safe for concurrent use. Every call happens on the
// scheduler loop that owns it.
package selection

import (
	"log/slog"
	"slices"

	"github.com/roach88/crossplot/internal/queryir"
)

// Source owns clauses in a selection. Sources are compared by identity, so
// implementations should be pointers.
type Source interface {
	// Reset clears the source's local interaction state. The source is
	// expected to write a clearing clause afterwards.
	Reset()
}

// Clause is one source's contribution to a selection.
type Clause struct {
	Source Source
	// Clients are the query clients the source owns. They are not
	// filtered by this clause.
	Clients []string
	// Predicate is nil for a clause that selects nothing.
	Predicate queryir.Predicate
	Value     any
}

// IsClear reports whether the clause removes its source's entry.
func (c Clause) IsClear() bool {
	return c.Predicate == nil && c.Value == nil
}

// Selection is a named multi-clause cross-filter.
type Selection struct {
	name    string
	clauses []Clause
	active  *Clause

	nextID    int
	listeners map[int]func()
	activate  map[int]func(Clause)
}

// New creates an empty selection.
func New(name string) *Selection {
	return &Selection{
		name:      name,
		listeners: make(map[int]func()),
		activate:  make(map[int]func(Clause)),
	}
}

// Name returns the selection name.
func (s *Selection) Name() string { return s.name }

// Update writes a clause, replacing any prior clause of the same source. A
// clearing clause removes the source's entry. Listeners run after the
// update.
func (s *Selection) Update(c Clause) {
	i := s.index(c.Source)
	switch {
	case c.IsClear() && i < 0:
		return
	case c.IsClear():
		s.clauses = slices.Delete(s.clauses, i, i+1)
	case i < 0:
		s.clauses = append(s.clauses, c)
	default:
		s.clauses[i] = c
	}
	if s.active != nil && s.active.Source == c.Source {
		s.active = nil
	}
	slog.Debug("selection updated",
		"selection", s.name,
		"clauses", len(s.clauses),
		"clear", c.IsClear())
	s.notify()
}

// Activate announces a clause that is likely to be written soon, such as
// the target of a hover. It does not change the selection's predicate.
func (s *Selection) Activate(c Clause) {
	s.active = &c
	for _, id := range sortedKeys(s.activate) {
		s.activate[id](c)
	}
}

// Active returns the last activated clause that has not been written.
func (s *Selection) Active() (Clause, bool) {
	if s.active == nil {
		return Clause{}, false
	}
	return *s.active, true
}

// Clauses returns the current clauses in first-write order.
func (s *Selection) Clauses() []Clause {
	return slices.Clone(s.clauses)
}

// Clause returns the clause written by src.
func (s *Selection) Clause(src Source) (Clause, bool) {
	if i := s.index(src); i >= 0 {
		return s.clauses[i], true
	}
	return Clause{}, false
}

// Predicate returns the conjunction of every clause that does not list
// client among its clients, or nil when no clause applies. An empty client
// sees every clause.
func (s *Selection) Predicate(client string) queryir.Predicate {
	var preds []queryir.Predicate
	for _, c := range s.clauses {
		if client != "" && slices.Contains(c.Clients, client) {
			continue
		}
		preds = append(preds, c.Predicate)
	}
	return queryir.AllOf(preds...)
}

// References reports whether any clause lists client.
func (s *Selection) References(client string) bool {
	for _, c := range s.clauses {
		if slices.Contains(c.Clients, client) {
			return true
		}
	}
	return false
}

// Reset asks every clause source to clear its local state.
func (s *Selection) Reset() {
	sources := make([]Source, 0, len(s.clauses))
	for _, c := range s.clauses {
		sources = append(sources, c.Source)
	}
	slog.Debug("selection reset", "selection", s.name, "sources", len(sources))
	for _, src := range sources {
		src.Reset()
	}
}

// OnChange registers fn to run after every update. The returned function
// unregisters it.
func (s *Selection) OnChange(fn func()) (unsubscribe func()) {
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() { delete(s.listeners, id) }
}

// OnActivate registers fn to run on every Activate.
func (s *Selection) OnActivate(fn func(Clause)) (unsubscribe func()) {
	id := s.nextID
	s.nextID++
	s.activate[id] = fn
	return func() { delete(s.activate, id) }
}

func (s *Selection) notify() {
	for _, id := range sortedKeys(s.listeners) {
		if fn, ok := s.listeners[id]; ok {
			fn()
		}
	}
}

func (s *Selection) index(src Source) int {
	return slices.IndexFunc(s.clauses, func(c Clause) bool { return c.Source == src })
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
