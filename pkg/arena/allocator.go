//go:build go1.22

package arena

import (
	"unsafe"

	"github.com/arenakit/bump/pkg/layout"
)

// Allocator is the generic allocate/deallocate/grow/shrink contract that
// arena-backed container types are built against. *Arena satisfies it, so
// a container parameterised over Allocator can be handed either a bump
// arena or, in principle, any other implementation with the same
// lifetime discipline.
type Allocator interface {
	// Allocate returns layout.Size uninitialized bytes aligned to
	// layout.Align.
	Allocate(l layout.Layout) (*byte, error)

	// AllocateZeroed is Allocate, with the returned bytes zeroed.
	AllocateZeroed(l layout.Layout) (*byte, error)

	// Deallocate returns memory previously obtained from Allocate back to
	// the allocator. If ptr is not the most recent live allocation, this
	// is a no-op: the bytes leak until the next Reset.
	Deallocate(ptr *byte, l layout.Layout)

	// Grow resizes a previous allocation from old to new, where
	// new.Size >= old.Size, preserving the first old.Size bytes of
	// content. It may return a different pointer.
	Grow(ptr *byte, old, new layout.Layout) (*byte, error)

	// GrowZeroed is Grow, additionally zeroing bytes [old.Size, new.Size)
	// of the result.
	GrowZeroed(ptr *byte, old, new layout.Layout) (*byte, error)

	// Shrink resizes a previous allocation from old to new, where
	// new.Size <= old.Size. It may return a different pointer, and may
	// fail if new.Align exceeds old.Align and the existing pointer can't
	// satisfy it in place.
	Shrink(ptr *byte, old, new layout.Layout) (*byte, error)
}

// Allocate implements Allocator.
func (a *Arena) Allocate(l layout.Layout) (*byte, error) {
	return a.TryAllocLayout(l)
}

// AllocateZeroed implements Allocator.
func (a *Arena) AllocateZeroed(l layout.Layout) (*byte, error) {
	p, err := a.TryAllocLayout(l)
	if err != nil {
		return nil, err
	}

	clear(unsafe.Slice(p, l.Size))
	return p, nil
}

// Deallocate implements Allocator.
func (a *Arena) Deallocate(ptr *byte, l layout.Layout) {
	a.assertAlive()

	if a.isTail(ptr) {
		a.current.cursor = a.current.cursor.Add(l.Size)
	}
}

// Grow implements Allocator.
func (a *Arena) Grow(ptr *byte, old, new layout.Layout) (*byte, error) {
	a.assertAlive()
	return a.growRegion(ptr, old, new)
}

// GrowZeroed implements Allocator.
func (a *Arena) GrowZeroed(ptr *byte, old, new layout.Layout) (*byte, error) {
	p, err := a.growRegion(ptr, old, new)
	if err != nil {
		return nil, err
	}

	clear(unsafe.Slice(p, new.Size)[old.Size:])
	return p, nil
}

// Shrink implements Allocator.
func (a *Arena) Shrink(ptr *byte, old, new layout.Layout) (*byte, error) {
	a.assertAlive()
	return a.shrinkRegion(ptr, old, new)
}
