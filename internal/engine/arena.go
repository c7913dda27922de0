package engine

import (
	"github.com/roach88/livemark/internal/dom"
	"github.com/roach88/livemark/internal/ir"
)

// record is one cancellable resource owned by a bound node: a stream
// subscription or a direct listener.
type record struct {
	node   dom.NodeID
	marker ir.Marker
	sub    ir.Subscription
	live   bool
}

// arena holds every record in a slot slice, reusing freed slots, with an
// index from node identity to the node's slots.
//
// Only the loop goroutine touches the arena.
type arena struct {
	records []record
	free    []int
	index   map[dom.NodeID][]int
	active  int
}

func newArena() *arena {
	return &arena{index: make(map[dom.NodeID][]int)}
}

// add records sub against node.
func (a *arena) add(node dom.NodeID, m ir.Marker, sub ir.Subscription) {
	r := record{node: node, marker: m, sub: sub, live: true}
	var slot int
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
		a.records[slot] = r
	} else {
		slot = len(a.records)
		a.records = append(a.records, r)
	}
	a.index[node] = append(a.index[node], slot)
	a.active++
}

// release unsubscribes every record of node, in registration order, and
// returns how many there were. Each record is released exactly once.
func (a *arena) release(node dom.NodeID) int {
	slots, ok := a.index[node]
	if !ok {
		return 0
	}
	delete(a.index, node)
	for _, slot := range slots {
		r := a.records[slot]
		a.records[slot] = record{}
		a.free = append(a.free, slot)
		a.active--
		if r.live && r.sub != nil {
			r.sub.Unsubscribe()
		}
	}
	return len(slots)
}

// releaseAll releases every node's records.
func (a *arena) releaseAll() int {
	n := 0
	for node := range a.index {
		n += a.release(node)
	}
	return n
}

// count returns the number of records of node.
func (a *arena) count(node dom.NodeID) int { return len(a.index[node]) }

// len returns the number of live records.
func (a *arena) len() int { return a.active }

// unsubscribeFunc adapts a remover to ir.Subscription.
type unsubscribeFunc func()

func (f unsubscribeFunc) Unsubscribe() { f() }
