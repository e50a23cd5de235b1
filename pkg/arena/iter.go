//go:build go1.23

package arena

import "iter"

// IterChunks yields the occupied byte range of each chunk this arena owns,
// newest chunk first, as described in spec §4.8: each range runs from the
// chunk's cursor (inclusive) to its first allocation's end (exclusive),
// and may contain uninitialized alignment padding between allocations.
//
// Requires exclusive access to the arena: do not allocate from a or reset
// it while iterating.
func (a *Arena) IterChunks() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for c := a.current; c != nil; c = c.prev {
			region := c.occupied()
			if region == nil {
				continue
			}
			if !yield(region) {
				return
			}
		}
	}
}
