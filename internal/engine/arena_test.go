package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/livemark/internal/dom"
)

type countingSub struct{ calls int }

func (s *countingSub) Unsubscribe() { s.calls++ }

func TestArena_ReleaseOnce(t *testing.T) {
	a := newArena()
	s1, s2, s3 := &countingSub{}, &countingSub{}, &countingSub{}
	a.add(dom.NodeID(1), "lm+0", s1)
	a.add(dom.NodeID(1), "lm+0", s2)
	a.add(dom.NodeID(2), "lm+1", s3)
	assert.Equal(t, 3, a.len())
	assert.Equal(t, 2, a.count(1))

	assert.Equal(t, 2, a.release(1))
	assert.Equal(t, 0, a.release(1))
	assert.Equal(t, 1, s1.calls)
	assert.Equal(t, 1, s2.calls)
	assert.Equal(t, 0, s3.calls)
	assert.Equal(t, 1, a.len())
}

func TestArena_ReusesFreedSlots(t *testing.T) {
	a := newArena()
	a.add(1, "lm+0", &countingSub{})
	a.add(2, "lm+1", &countingSub{})
	a.release(1)

	a.add(3, "lm+2", &countingSub{})
	assert.Len(t, a.records, 2)
	assert.Equal(t, 2, a.len())

	assert.Equal(t, 2, a.releaseAll())
	assert.Equal(t, 0, a.len())
}

func TestArena_NilSubscription(t *testing.T) {
	a := newArena()
	a.add(1, "lm+0", nil)
	assert.Equal(t, 1, a.release(1))
}

func TestUnsubscribeFunc(t *testing.T) {
	n := 0
	var sub interface{ Unsubscribe() } = unsubscribeFunc(func() { n++ })
	sub.Unsubscribe()
	assert.Equal(t, 1, n)
}
