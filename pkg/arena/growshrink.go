//go:build go1.22

package arena

import (
	"unsafe"

	"github.com/arenakit/bump/internal/debug"
	"github.com/arenakit/bump/pkg/layout"
	"github.com/arenakit/bump/pkg/xunsafe"
)

// shrinkWorthwhile is the "worth it" threshold from spec §4.4: only bother
// reclaiming space in place if the new size is at most half the old one.
func shrinkWorthwhile(oldSize, newSize int) bool {
	return newSize <= oldSize/2
}

// isTail reports whether ptr is the most recent live allocation: the one
// thing the arena can still grow or shrink in place.
func (a *Arena) isTail(ptr *byte) bool {
	return xunsafe.AddrOf(ptr) == a.current.cursor
}

// growRegion implements §4.4's grow policy: extend ptr in place if it is
// the tail and the chunk has room below it; otherwise allocate fresh and
// copy.
func (a *Arena) growRegion(ptr *byte, old, new layout.Layout) (*byte, error) {
	debug.Assert(new.Size >= old.Size, "Grow requires new.Size >= old.Size")

	if a.isTail(ptr) {
		delta := new.Size - old.Size
		cursor := uintptr(xunsafe.AddrOf(ptr))

		if uintptr(delta) <= cursor {
			candidate := cursor - uintptr(delta)
			aligned := candidate &^ uintptr(max(new.Align, 1)-1)

			if aligned >= uintptr(a.current.base) {
				newPtr := xunsafe.Addr[byte](aligned).AssertValid()
				a.current.cursor = xunsafe.Addr[byte](aligned)

				if aligned != cursor {
					copy(unsafe.Slice(newPtr, old.Size), unsafe.Slice(ptr, old.Size))
				}

				return newPtr, nil
			}
		}
	}

	fresh, err := a.TryAllocLayout(new)
	if err != nil {
		return nil, err
	}

	copy(unsafe.Slice(fresh, old.Size), unsafe.Slice(ptr, old.Size))
	return fresh, nil
}

// shrinkRegion implements §4.4's shrink policy: if ptr is the tail and
// reclaiming is worth it, raise the cursor by the freed bytes. The
// surviving new.Size bytes are those nearest the chunk's footer (the far
// end of the original allocation from the caller's perspective), since
// those are the bytes that end up above the raised cursor; no copy is
// needed unless the new alignment forces the retained region to start
// somewhere other than exactly ptr+reclaimed.
func (a *Arena) shrinkRegion(ptr *byte, old, new layout.Layout) (*byte, error) {
	debug.Assert(new.Size <= old.Size, "Shrink requires new.Size <= old.Size")

	if new.Align > old.Align && uintptr(xunsafe.AddrOf(ptr))%uintptr(new.Align) != 0 {
		// The existing pointer doesn't happen to satisfy the stricter
		// alignment; per spec §4.4 this may fail rather than relocate.
		return nil, debug.Unsupported()
	}

	if !a.isTail(ptr) || !shrinkWorthwhile(old.Size, new.Size) {
		return ptr, nil
	}

	reclaimed := old.Size - new.Size
	candidate := xunsafe.AddrOf(ptr).Add(reclaimed)
	aligned := candidate.RoundUpTo(max(new.Align, 1))

	if uintptr(aligned)+uintptr(new.Size) > uintptr(xunsafe.AddrOf(ptr))+uintptr(old.Size) {
		// Rounding for alignment ate into the retained region: leave as-is.
		return ptr, nil
	}

	if aligned != candidate {
		copy(unsafe.Slice(aligned.AssertValid(), new.Size), unsafe.Slice(candidate.AssertValid(), new.Size))
	}

	a.current.cursor = aligned
	return aligned.AssertValid(), nil
}
