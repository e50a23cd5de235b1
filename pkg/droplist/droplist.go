// Package droplist is a supplemental, non-core extension to pkg/arena: a
// registry of destructor closures run in registration order, for arena
// contents that need cleanup before their backing memory is abandoned.
//
// Arena allocation does not itself schedule destructor execution — the
// arena has no idea what a []byte region used to represent. A List gives
// a caller that needs one an explicit place to register "run this before
// you throw the memory away" callbacks, best-effort, with no guarantee
// they run if the caller forgets to call RunAll.
//
// This mirrors the registration pattern of a circular intrusive
// doubly-linked drop list co-allocated with each value, simplified for Go:
// nodes here are ordinary garbage-collected values holding a closure, not
// raw storage threaded through the allocations they guard, so there is no
// pinning or unlinking to reason about.
package droplist

// List is a sequence of destructors registered against some owner (an
// Arena, typically), run in registration order by RunAll.
//
// A zero List is empty and ready to use. Not safe for concurrent use.
type List struct {
	head, tail *entry
	len        int
}

type entry struct {
	fn   func()
	next *entry
}

// Register appends fn to the list. fn runs once, in registration order,
// the next time RunAll is called.
func (l *List) Register(fn func()) {
	e := &entry{fn: fn}

	if l.tail == nil {
		l.head = e
	} else {
		l.tail.next = e
	}
	l.tail = e
	l.len++
}

// Len returns the number of destructors currently registered.
func (l *List) Len() int {
	return l.len
}

// RunAll runs every registered destructor in registration order, then
// empties the list. Typically called just before Arena.Reset or
// Arena.Release.
func (l *List) RunAll() {
	for e := l.head; e != nil; e = e.next {
		e.fn()
	}

	l.head, l.tail, l.len = nil, nil, 0
}
