package stats

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/querysql"
)

// Key identifies one field of one source expression.
type Key struct {
	Source string
	Field  string
}

// SourceKey renders a source as the SQL text used for cache keys. Filters
// embedded in SQL sources are dropped: statistics describe the unfiltered
// data.
func SourceKey(src queryir.Source) (string, error) {
	if s, ok := src.(queryir.SQLSource); ok {
		s.Filter = nil
		src = s
	}
	sql, _, err := querysql.NewInlineCompiler().Compile(queryir.Select{
		Columns: []queryir.Column{{Expr: queryir.Star{}}},
		From:    src,
	})
	if err != nil {
		return "", fmt.Errorf("source key: %w", err)
	}
	return sql, nil
}

// Cache memoizes Compute results by (source, field).
//
// Concurrent requests for the same key share one computation. Failed
// computations are not cached so a later request retries.
//
// Thread-safety: All methods are safe for concurrent use.
type Cache struct {
	conn conn.Connector

	mu      sync.RWMutex
	entries map[Key]*FieldStats
	group   singleflight.Group
}

// NewCache creates an empty cache over c.
func NewCache(c conn.Connector) *Cache {
	return &Cache{conn: c, entries: make(map[Key]*FieldStats)}
}

// Get returns cached statistics or computes them. A nil result with a nil
// error means the field's type is unsupported; that outcome is cached too.
func (c *Cache) Get(ctx context.Context, src queryir.Source, field string) (*FieldStats, error) {
	source, err := SourceKey(src)
	if err != nil {
		return nil, err
	}
	key := Key{Source: source, Field: field}

	c.mu.RLock()
	fs, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return fs, nil
	}

	v, err, _ := c.group.Do(source+"\x00"+field, func() (any, error) {
		fs, err := Compute(ctx, c.conn, src, field)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = fs
		c.mu.Unlock()
		return fs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*FieldStats), nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry, for example after the underlying table changes.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*FieldStats)
}
