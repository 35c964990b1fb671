package engine

import "slices"

// Cell is an observable value owned by the scheduler loop.
//
// Subscribers run synchronously inside Set, in subscription order. A
// publisher computes everything it derives before calling Set so that no
// subscriber sees a partial update.
type Cell[T any] struct {
	value T
	subs  []*subscription[T]
}

type subscription[T any] struct {
	fn func(T)
}

// NewCell creates a cell holding v.
func NewCell[T any](v T) *Cell[T] {
	return &Cell[T]{value: v}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	return c.value
}

// Set replaces the value and notifies subscribers.
func (c *Cell[T]) Set(v T) {
	c.value = v
	for _, s := range slices.Clone(c.subs) {
		if s.fn != nil {
			s.fn(v)
		}
	}
}

// Subscribe registers fn for future values. The returned function
// unsubscribes; calling it more than once is harmless.
func (c *Cell[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s := &subscription[T]{fn: fn}
	c.subs = append(c.subs, s)
	return func() {
		s.fn = nil
		c.subs = slices.DeleteFunc(c.subs, func(x *subscription[T]) bool { return x == s })
	}
}

// Subscribers returns the number of active subscriptions.
func (c *Cell[T]) Subscribers() int {
	return len(c.subs)
}

// UnsubscribeAll drops every subscription.
func (c *Cell[T]) UnsubscribeAll() {
	for _, s := range c.subs {
		s.fn = nil
	}
	c.subs = nil
}
