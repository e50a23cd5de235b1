//go:build go1.22

// Package arena provides a bump-allocation arena: a memory manager that
// serves allocations of arbitrary size and alignment by advancing a cursor
// through pre-acquired chunks of memory, with no per-object reclamation.
//
// # Key Concepts
//
// Arena: a chain of chunks from which smaller allocations are bump-carved.
// All memory is reclaimed together, either by Reset (which keeps the
// current chunk) or by abandoning the Arena to the garbage collector
// (which reclaims everything).
//
// This model suits phase-oriented workloads — parsers, compilers,
// per-request handlers — where many short-lived objects share a lifetime
// and can be thrown away as a group.
//
// # Memory Safety
//
// Arena-allocated memory must not be read or written after the arena is
// reset or released: Reset and Release repurpose or drop the backing
// storage those pointers pointed into. The package offers no way to
// enforce this statically; it is a caller precondition, same as for any
// manually-managed memory in Go.
//
// # Usage
//
//	a := arena.New()
//	p := arena.New(a, MyStruct{ID: 1})
//	// ... use p ...
//	a.Reset() // everything allocated above is now invalid
package arena

import (
	"github.com/arenakit/bump/internal/debug"
	"github.com/arenakit/bump/pkg/layout"
	"github.com/arenakit/bump/pkg/xunsafe"
)

// defaultChunkSize is the size of the first chunk an Arena acquires, when
// none is requested explicitly: small enough to keep an idle arena cheap,
// big enough that most short programs never take the slow path twice.
const defaultChunkSize = 512 - 2*8

// Arena is a bump-allocation arena.
//
// A zero Arena is not ready to use; construct one with New.
type Arena struct {
	_ xunsafe.NoCopy

	current *chunk

	// allocatedBytes is the sum of chunk sizes acquired from the system
	// allocator that are currently attributed to this arena: it decreases
	// on Reset (predecessor chunks are dropped) even though nothing was
	// "freed" in the C sense, because Go's GC now owns reclaiming them.
	allocatedBytes int

	hasLimit bool
	limit    int

	minAlign int

	released bool
}

var _ Allocator = (*Arena)(nil)

// Option configures an Arena at construction time.
type Option func(*config)

type config struct {
	chunkSize int
	hasLimit  bool
	limit     int
	minAlign  int
}

// WithChunkSize sets the size of the first chunk the arena acquires.
func WithChunkSize(n int) Option {
	return func(c *config) { c.chunkSize = n }
}

// WithAllocationLimit bounds the total size of the chunks the arena holds
// at any one time (see SetAllocationLimit). Reset drops predecessor chunks
// from that total, so bytes acquired before a Reset no longer count.
func WithAllocationLimit(n int) Option {
	return func(c *config) { c.hasLimit = true; c.limit = n }
}

// WithMinAlign fixes a minimum alignment for every allocation the arena
// serves, accelerating the fast path for callers who know every request
// will be at least this aligned (e.g. word alignment).
func WithMinAlign(align int) Option {
	return func(c *config) { c.minAlign = align }
}

// New constructs an Arena.
func New(opts ...Option) *Arena {
	cfg := config{
		chunkSize: defaultChunkSize,
		minAlign:  layout.Align[uintptr](),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	a := &Arena{
		hasLimit: cfg.hasLimit,
		limit:    cfg.limit,
		minAlign: max(cfg.minAlign, 1),
	}

	size, align := layout.RoundUp(cfg.chunkSize, footerAlign), max(footerAlign, a.minAlign)
	a.current = newChunk(size, align)
	a.allocatedBytes = a.current.size

	return a
}

// WithCapacity constructs an Arena whose first chunk has room for at least
// n bytes before a slow path is triggered.
func WithCapacity(n int, opts ...Option) *Arena {
	return New(append([]Option{WithChunkSize(n)}, opts...)...)
}

// AllocatedBytes returns the total bytes requested from the system
// allocator across every chunk currently attributed to this arena. This
// decreases after Reset, since predecessor chunks are no longer counted.
func (a *Arena) AllocatedBytes() int {
	return a.allocatedBytes
}

// ChunkCapacity returns the size in bytes of the current chunk.
func (a *Arena) ChunkCapacity() int {
	return a.current.size
}

// AllocationLimit returns the configured allocation limit and whether one
// is set.
func (a *Arena) AllocationLimit() (n int, ok bool) {
	return a.limit, a.hasLimit
}

// SetAllocationLimit bounds total bytes the arena may request from the
// system allocator. Passing ok=false removes any limit. Shrinking the
// limit below bytes already allocated does not reclaim memory; it only
// blocks future growth.
func (a *Arena) SetAllocationLimit(n int, ok bool) {
	a.hasLimit = ok
	a.limit = n
}

// AllocLayout allocates layout.Size bytes of uninitialized memory aligned
// to layout.Align. On memory exhaustion it calls AbortHook instead of
// returning an error; use TryAllocLayout to handle exhaustion explicitly.
func (a *Arena) AllocLayout(l layout.Layout) *byte {
	p, err := a.TryAllocLayout(l)
	if err != nil {
		abort(err)
	}
	return p
}

// TryAllocLayout is AllocLayout, but reports memory exhaustion as an error
// instead of invoking AbortHook.
func (a *Arena) TryAllocLayout(l layout.Layout) (*byte, error) {
	a.assertAlive()

	align := max(l.Align, a.minAlign)

	if p, ok := a.current.bump(l.Size, align); ok {
		if a.current.firstAllocEnd == 0 {
			a.current.firstAllocEnd = p0End(p, l.Size)
		}
		a.logAlloc(p, l)
		return p, nil
	}

	if err := a.growFor(layout.Layout{Size: l.Size, Align: align}); err != nil {
		return nil, err
	}

	p, ok := a.current.bump(l.Size, align)
	if !ok {
		// sizeFor guarantees the new chunk fits the triggering layout;
		// reaching here means our own arithmetic is broken.
		debug.Assert(ok, "freshly acquired chunk does not fit its own triggering layout")
		return nil, exhausted("new chunk does not fit triggering allocation")
	}

	if a.current.firstAllocEnd == 0 {
		a.current.firstAllocEnd = p0End(p, l.Size)
	}

	a.logAlloc(p, l)
	return p, nil
}

// bump attempts the fast path: subtract size from the cursor, round down
// to align, and commit if the result still lies within the chunk.
func (c *chunk) bump(size, align int) (*byte, bool) {
	cursor := uintptr(c.cursor)
	if uintptr(size) > cursor {
		return nil, false
	}

	p1 := cursor - uintptr(size)
	p2 := p1 &^ uintptr(align-1)

	if p2 < uintptr(c.base) {
		return nil, false
	}

	c.cursor = xunsafe.Addr[byte](p2)
	return c.cursor.AssertValid(), true
}

// growFor acquires a new chunk sized to satisfy l, installs it as current,
// and links the old current as its predecessor. It fails if the chunk-size
// arithmetic itself overflows, or if the allocation limit would be exceeded.
func (a *Arena) growFor(l layout.Layout) error {
	size, align, err := sizeFor(a.current.size, l)
	if err != nil {
		return err
	}

	if a.hasLimit && a.allocatedBytes+size > a.limit {
		return exhausted("allocation limit exceeded")
	}

	next := newChunk(size, align)
	next.prev = a.current
	a.current = next
	a.allocatedBytes += size

	debug.Log([]any{"%p", a}, "grow", "size=%d align=%d", size, align)
	return nil
}

func p0End(p *byte, size int) xunsafe.Addr[byte] {
	return xunsafe.AddrOf(p).Add(size)
}

func (a *Arena) logAlloc(p *byte, l layout.Layout) {
	debug.Log([]any{"%p", a}, "alloc", "%p size=%d align=%d", p, l.Size, l.Align)
}

func (a *Arena) assertAlive() {
	if a.released {
		panic("arena: use after Release")
	}
}

// Reset reclaims every allocation made so far. It retains only the current
// (most recent, and usually largest) chunk, clears it, and drops every
// predecessor chunk: Go's GC reclaims their backing storage once nothing
// else references them.
//
// Every pointer returned by a prior allocation becomes invalid; reading or
// writing through one after Reset is a caller bug, not a checked error.
func (a *Arena) Reset() {
	a.assertAlive()

	a.current.prev = nil
	a.current.cursor = a.current.footerStart
	a.current.firstAllocEnd = 0
	clear(a.current.data)

	a.allocatedBytes = a.current.size
}

// Release drops every chunk this arena owns and marks it unusable. Unlike
// Reset, no chunk is retained: the next call requires constructing a new
// Arena. This is a Go-idiomatic stand-in for the destructor the source
// relies on to walk and free the chunk chain — Go has no destructors, so
// Release gives callers an explicit "collect this now" alternative to
// waiting on the GC.
func (a *Arena) Release() {
	a.assertAlive()

	a.current = nil
	a.released = true
	a.allocatedBytes = 0
}

// Metrics is a point-in-time snapshot of an arena's memory usage.
type Metrics struct {
	InUse       int
	Capacity    int
	NumChunks   int
	Utilization float64
}

// Metrics reports current memory usage across every chunk owned by this
// arena.
func (a *Arena) Metrics() Metrics {
	a.assertAlive()

	var inUse, numChunks int
	for c := a.current; c != nil; c = c.prev {
		numChunks++
		inUse += int(c.footerStart.Sub(c.cursor))
	}

	m := Metrics{
		InUse:     inUse,
		Capacity:  a.allocatedBytes,
		NumChunks: numChunks,
	}
	if m.Capacity > 0 {
		m.Utilization = float64(m.InUse) / float64(m.Capacity)
	}
	return m
}
