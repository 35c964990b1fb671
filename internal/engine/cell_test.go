package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCell_GetSet(t *testing.T) {
	c := NewCell(1)
	assert.Equal(t, 1, c.Get())

	c.Set(2)
	assert.Equal(t, 2, c.Get())
}

func TestCell_SubscribersInOrder(t *testing.T) {
	c := NewCell("")

	var got []string
	c.Subscribe(func(v string) { got = append(got, "first:"+v) })
	c.Subscribe(func(v string) { got = append(got, "second:"+v) })

	c.Set("x")
	assert.Equal(t, []string{"first:x", "second:x"}, got)
	assert.Equal(t, 2, c.Subscribers())
}

func TestCell_Unsubscribe(t *testing.T) {
	c := NewCell(0)

	calls := 0
	unsub := c.Subscribe(func(int) { calls++ })
	c.Set(1)
	unsub()
	unsub()
	c.Set(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, c.Subscribers())
}

func TestCell_UnsubscribeDuringNotify(t *testing.T) {
	c := NewCell(0)

	var second func()
	calls := 0
	c.Subscribe(func(int) { second() })
	second = c.Subscribe(func(int) { calls++ })

	c.Set(1)
	c.Set(2)
	assert.Equal(t, 0, calls, "a subscriber removed mid-notify is skipped")
}

func TestCell_UnsubscribeAll(t *testing.T) {
	c := NewCell(0)

	calls := 0
	c.Subscribe(func(int) { calls++ })
	c.Subscribe(func(int) { calls++ })
	c.UnsubscribeAll()
	c.Set(1)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, c.Subscribers())
}
