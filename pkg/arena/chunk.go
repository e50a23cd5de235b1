//go:build go1.22

package arena

import (
	"unsafe"

	"github.com/arenakit/bump/pkg/layout"
	"github.com/arenakit/bump/pkg/xunsafe"
)

// footerWords is the number of machine words reserved for chunk bookkeeping
// when sizing a fresh chunk, mirroring bumpalo's ChunkFooter, which is
// exactly two words (base/layout packed into one word-pair, cursor and the
// back-link into the other). Go doesn't need to physically reserve these
// bytes — the bookkeeping lives in ordinary fields on chunk below, and the
// GC already tracks the chunk struct's liveness — but the budget still
// matters for sizing: it keeps our acquisition arithmetic identical to the
// reference implementation's "size + sizeof(footer)" floor.
const footerWords = 2

var footerSize = footerWords * int(unsafe.Sizeof(uintptr(0)))
var footerAlign = int(unsafe.Alignof(uintptr(0)))

// chunk is one contiguous region of arena-owned memory, bump-allocated from
// the top (footerStart) down toward base.
type chunk struct {
	// data anchors the backing array in the GC's eyes. Nothing reads through
	// it directly; base/cursor/footerStart are the addresses actually used.
	data []byte

	base        xunsafe.Addr[byte]
	footerStart xunsafe.Addr[byte]
	cursor      xunsafe.Addr[byte]

	prev *chunk

	// firstAllocEnd is the address one past the last byte of the first
	// allocation served from this chunk, or zero if none has been served
	// yet. Used only by chunk iteration to exclude trailing alignment
	// padding above the oldest allocation.
	firstAllocEnd xunsafe.Addr[byte]

	// size and align are the layout this chunk's data was acquired with;
	// kept for Metrics() and introspection. Go's GC reclaims the backing
	// array itself, so unlike the source this is never used to "free" the
	// chunk explicitly.
	size, align int
}

// newChunk acquires size bytes of backing storage aligned to align,
// rounding size up to footerAlign first. It over-allocates by align bytes
// so that base can be rounded up to the requested alignment no matter
// where the Go runtime happens to place the backing array.
func newChunk(size, align int) *chunk {
	size = layout.RoundUp(size, footerAlign)
	align = max(align, footerAlign)

	raw := make([]byte, size+align)
	base := xunsafe.AddrOf(unsafe.SliceData(raw)).RoundUpTo(align)

	return &chunk{
		data:        raw,
		base:        base,
		footerStart: base.Add(size),
		cursor:      base.Add(size),
		size:        size,
		align:       align,
	}
}

// sizeFor computes the acquisition size and alignment for a chunk meant to
// satisfy triggering, growing from a previous chunk of prevSize bytes, per
// the doubling-with-floor policy: max(2*prevSize, triggering.Size+footer),
// rounded up to the footer's alignment. The requested alignment is
// max(footerAlign, triggering.Align).
//
// Every addition is overflow-checked: a pathological triggering.Size (the
// caller can construct one up to math.MaxInt via layout.New with align=1)
// must surface as memory exhaustion, never as wrapped arithmetic that
// produces an undersized chunk.
func sizeFor(prevSize int, triggering layout.Layout) (size, align int, err error) {
	align = max(footerAlign, triggering.Align)

	floor, ok := layout.CheckedAdd(triggering.Size, footerSize)
	if !ok {
		return 0, 0, exhausted("chunk size overflow computing triggering floor")
	}
	size = floor

	if doubled, ok := layout.CheckedAdd(prevSize, prevSize); ok && doubled > size {
		size = doubled
	}

	rounded, ok := layout.CheckedAdd(size, footerAlign-1)
	if !ok {
		return 0, 0, exhausted("chunk size overflow rounding to footer alignment")
	}
	size = rounded &^ (footerAlign - 1)

	// newChunk over-allocates size+align bytes to fake alignment guarantees
	// make() doesn't give us; a hostile triggering.Align (the caller can
	// construct a layout with an arbitrarily large power-of-two alignment
	// via layout.New) could overflow that addition even though size and
	// align independently passed their own checks above.
	if _, ok := layout.CheckedAdd(size, align); !ok {
		return 0, 0, exhausted("chunk size overflow reserving alignment padding")
	}

	return size, align, nil
}

// occupied returns the byte range [cursor, firstAllocEnd) still backed by
// live allocations in this chunk, or nil if nothing has ever been
// allocated from it.
func (c *chunk) occupied() []byte {
	if c.firstAllocEnd == 0 {
		return nil
	}

	n := c.firstAllocEnd.Sub(c.cursor)
	return unsafe.Slice(c.cursor.AssertValid(), n)
}
