//go:build go1.23

package arena_test

import (
	"errors"
	"math"
	"testing"
	"unsafe"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/arenakit/bump/pkg/arena"
	"github.com/arenakit/bump/pkg/layout"
)

func TestArena(t *testing.T) {
	Convey("Given an Arena", t, func() {
		a := arena.New()

		type testStruct struct {
			X int
			Y float64
		}

		Convey("When allocating a value", func() {
			p := arena.New(a, testStruct{X: 42, Y: 3.14})
			So(p, ShouldNotBeNil)

			Convey("Then the value should be set", func() {
				So(p.X, ShouldEqual, 42)
				So(p.Y, ShouldEqual, 3.14)
			})

			Convey("Then the pointer should be aligned", func() {
				So(uintptr(unsafe.Pointer(p))%8, ShouldEqual, uintptr(0))
			})
		})

		Convey("When allocating multiple values", func() {
			var ptrs []*testStruct
			for i := 0; i < 10; i++ {
				ptrs = append(ptrs, arena.New(a, testStruct{X: i, Y: float64(i)}))
			}

			Convey("Then every value should be set", func() {
				for i, p := range ptrs {
					So(p.X, ShouldEqual, i)
					So(p.Y, ShouldEqual, float64(i))
				}
			})

			Convey("Then resetting frees them all", func() {
				a.Reset()
				So(a.Metrics().NumChunks, ShouldEqual, 1)
				So(a.Metrics().InUse, ShouldEqual, 0)
			})
		})

		Convey("When allocating a large value", func() {
			p := arena.New(a, [1 << 16]byte{})
			So(p, ShouldNotBeNil)
		})
	})
}

// Scenario 1: sequential small allocations.
func TestSequentialSmallAllocations(t *testing.T) {
	Convey("Given 10000 one-byte allocations", t, func() {
		a := arena.New()

		var ptrs []*byte
		for i := 0; i < 10000; i++ {
			p := arena.New(a, byte(i))
			ptrs = append(ptrs, p)
		}

		Convey("Every value should be readable and equal to its index", func() {
			for i, p := range ptrs {
				So(*p, ShouldEqual, byte(i))
			}
		})

		Convey("allocated_bytes should cover at least the requested bytes", func() {
			So(a.AllocatedBytes(), ShouldBeGreaterThanOrEqualTo, 10000)
		})
	})
}

// Scenario 2: chunk growth.
func TestChunkGrowth(t *testing.T) {
	Convey("Given an arena with a tiny initial chunk", t, func() {
		a := arena.WithCapacity(64)

		var last *[16]byte
		for i := 0; i < 20; i++ {
			last = arena.New(a, [16]byte{})
		}

		Convey("Iterating chunks yields at least two", func() {
			n := 0
			for range a.IterChunks() {
				n++
			}
			So(n, ShouldBeGreaterThanOrEqualTo, 2)
		})

		Convey("The newest chunk is reported first", func() {
			var first []byte
			for region := range a.IterChunks() {
				first = region
				break
			}
			So(first, ShouldNotBeNil)
			So(uintptr(unsafe.Pointer(&first[0])), ShouldEqual, uintptr(unsafe.Pointer(last)))
		})
	})
}

// Scenario 3: reset retains largest chunk.
func TestResetRetainsLargestChunk(t *testing.T) {
	Convey("Given an arena grown to several chunks", t, func() {
		a := arena.WithCapacity(64)

		for i := 0; i < 200; i++ {
			arena.New(a, [32]byte{})
		}

		total := a.AllocatedBytes()
		lastCap := a.ChunkCapacity()

		a.Reset()

		Convey("Exactly one chunk remains", func() {
			So(a.Metrics().NumChunks, ShouldEqual, 1)
		})

		Convey("Its capacity is at least the prior last chunk's size", func() {
			So(a.ChunkCapacity(), ShouldBeGreaterThanOrEqualTo, lastCap)
		})

		Convey("allocated_bytes drops below the pre-reset total", func() {
			So(a.AllocatedBytes(), ShouldBeLessThan, total)
		})

		Convey("Allocating back up to that capacity adds no chunks", func() {
			room := a.ChunkCapacity()
			arena.AllocSlice[byte](a, room/2)
			So(a.Metrics().NumChunks, ShouldEqual, 1)
		})
	})
}

// Scenario 4: tail grow in place.
func TestTailGrowInPlace(t *testing.T) {
	Convey("Given a 4-byte tail allocation", t, func() {
		a := arena.New()

		l, _ := layout.New(4, 4)
		p := a.AllocLayout(l)
		buf := unsafe.Slice(p, 4)
		copy(buf, []byte{42, 42, 42, 42})

		before := a.AllocatedBytes()

		grown, err := a.Grow(p, l, layout.Layout{Size: 8, Align: 4})
		So(err, ShouldBeNil)

		Convey("The region begins with the original bytes", func() {
			So(unsafe.Slice(grown, 4), ShouldResemble, []byte{42, 42, 42, 42})
		})

		Convey("Total allocated bytes grew by at most 4", func() {
			So(a.AllocatedBytes()-before, ShouldBeLessThanOrEqualTo, 4)
		})

		Convey("The pointer is aligned to 4", func() {
			So(uintptr(unsafe.Pointer(grown))%4, ShouldEqual, uintptr(0))
		})
	})
}

// Scenario 5: non-tail deallocate leaks.
func TestNonTailDeallocateLeaks(t *testing.T) {
	Convey("Given allocations A then B", t, func() {
		a := arena.New()

		l, _ := layout.New(8, 8)
		pa := a.AllocLayout(l)
		copy(unsafe.Slice(pa, 8), []byte{1, 2, 3, 4, 5, 6, 7, 8})

		pb := a.AllocLayout(l)
		copy(unsafe.Slice(pb, 8), []byte{9, 9, 9, 9, 9, 9, 9, 9})

		a.Deallocate(pa, l)
		pc := a.AllocLayout(l)

		Convey("C is not placed where A was", func() {
			So(pc, ShouldNotEqual, pa)
		})

		Convey("A's bytes remain readable", func() {
			So(unsafe.Slice(pa, 8), ShouldResemble, []byte{1, 2, 3, 4, 5, 6, 7, 8})
		})
	})
}

// Scenario 6: allocation limit.
func TestAllocationLimit(t *testing.T) {
	Convey("Given an arena with a tight allocation limit", t, func() {
		const limit = 4096

		a := arena.New(arena.WithChunkSize(256), arena.WithAllocationLimit(limit))

		l, _ := layout.New(limit/16, 8)

		var successes, failures int
		for i := 0; i < 32; i++ {
			if _, err := a.TryAllocLayout(l); err != nil {
				failures++
			} else {
				successes++
			}
		}

		Convey("Some allocations succeed and some eventually fail", func() {
			So(successes, ShouldBeGreaterThan, 0)
			So(failures, ShouldBeGreaterThan, 0)
		})

		Convey("allocated_bytes never exceeds the limit", func() {
			So(a.AllocatedBytes(), ShouldBeLessThanOrEqualTo, limit)
		})
	})
}

func TestZeroSizedAllocation(t *testing.T) {
	Convey("Given a zero-sized layout", t, func() {
		a := arena.New()
		before := a.AllocatedBytes()

		l, _ := layout.New(0, 8)
		p := a.AllocLayout(l)

		Convey("The pointer is non-nil", func() {
			So(p, ShouldNotBeNil)
		})

		Convey("No additional chunk space is consumed", func() {
			So(a.AllocatedBytes(), ShouldEqual, before)
		})
	})
}

func TestReleaseThenUsePanics(t *testing.T) {
	Convey("Given a released arena", t, func() {
		a := arena.New()
		a.Release()

		Convey("Allocating from it panics", func() {
			So(func() { arena.New(a, 1) }, ShouldPanic)
		})
	})
}

func TestAllocatorAllocate(t *testing.T) {
	Convey("Given a fresh arena used through the Allocator interface", t, func() {
		a := arena.New()
		l, _ := layout.New(8, 8)

		p, err := a.Allocate(l)

		Convey("It returns a non-nil, correctly aligned pointer", func() {
			So(err, ShouldBeNil)
			So(p, ShouldNotBeNil)
			So(uintptr(unsafe.Pointer(p))%8, ShouldEqual, uintptr(0))
		})
	})
}

func TestAllocatorAllocateZeroed(t *testing.T) {
	Convey("Given a region that previously held other data", t, func() {
		a := arena.New()
		l, _ := layout.New(8, 8)

		first := a.AllocLayout(l)
		copy(unsafe.Slice(first, 8), []byte{9, 9, 9, 9, 9, 9, 9, 9})
		a.Deallocate(first, l)

		Convey("AllocateZeroed reuses that space with zeroed bytes", func() {
			p, err := a.AllocateZeroed(l)
			So(err, ShouldBeNil)
			So(p, ShouldEqual, first)
			So(unsafe.Slice(p, 8), ShouldResemble, []byte{0, 0, 0, 0, 0, 0, 0, 0})
		})
	})
}

func TestAllocatorGrowZeroed(t *testing.T) {
	Convey("Given a tail allocation grown via GrowZeroed", t, func() {
		a := arena.New()

		old, _ := layout.New(4, 4)
		p := a.AllocLayout(old)
		copy(unsafe.Slice(p, 4), []byte{1, 2, 3, 4})

		newL := layout.Layout{Size: 8, Align: 4}
		grown, err := a.GrowZeroed(p, old, newL)
		So(err, ShouldBeNil)

		buf := unsafe.Slice(grown, 8)

		Convey("The original bytes survive at the front", func() {
			So(buf[0:4], ShouldResemble, []byte{1, 2, 3, 4})
		})

		Convey("The newly grown bytes are zeroed", func() {
			So(buf[4:8], ShouldResemble, []byte{0, 0, 0, 0})
		})
	})
}

func TestAllocatorShrink(t *testing.T) {
	Convey("Given a worthwhile in-place shrink of a tail allocation", t, func() {
		a := arena.New(arena.WithMinAlign(1))

		old, _ := layout.New(8, 1)
		p := a.AllocLayout(old)
		copy(unsafe.Slice(p, 8), []byte{1, 2, 3, 4, 5, 6, 7, 8})

		newL := layout.Layout{Size: 2, Align: 1}
		shrunk, err := a.Shrink(p, old, newL)

		Convey("It succeeds", func() {
			So(err, ShouldBeNil)
		})

		Convey("The retained bytes are the far end of the original allocation, not the near end", func() {
			So(unsafe.Slice(shrunk, 2), ShouldResemble, []byte{7, 8})
		})
	})

	Convey("Given a shrink that is not worth reclaiming in place", t, func() {
		a := arena.New()

		old, _ := layout.New(8, 8)
		p := a.AllocLayout(old)

		// 5 > 8/2: below the shrinkWorthwhile threshold.
		newL := layout.Layout{Size: 5, Align: 8}
		shrunk, err := a.Shrink(p, old, newL)

		Convey("It succeeds and returns the original pointer unchanged", func() {
			So(err, ShouldBeNil)
			So(shrunk, ShouldEqual, p)
		})
	})

	Convey("Given a shrink of a non-tail allocation", t, func() {
		a := arena.New()

		old, _ := layout.New(8, 8)
		pa := a.AllocLayout(old)
		_ = a.AllocLayout(old) // pa is no longer the tail

		newL := layout.Layout{Size: 1, Align: 8}
		shrunk, err := a.Shrink(pa, old, newL)

		Convey("It leaves pa in place, since only the tail can shrink", func() {
			So(err, ShouldBeNil)
			So(shrunk, ShouldEqual, pa)
		})
	})

	Convey("Given a shrink demanding stricter alignment than the pointer satisfies", t, func() {
		a := arena.New(arena.WithMinAlign(1))

		old, _ := layout.New(1, 1)
		p := a.AllocLayout(old)

		newL := layout.Layout{Size: 0, Align: 4}
		_, err := a.Shrink(p, old, newL)

		Convey("It reports the operation as unsupported rather than relocating", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

// A triggering layout whose size is large enough that size+footerSize (and
// every other addition the chunk-growth arithmetic performs) overflows int
// must be reported as exhaustion through TryAllocLayout, never reached via
// the debug.Assert in TryAllocLayout's slow path, which panics in a
// -tags debug build even though TryAllocLayout is the error-returning
// entry point.
func TestChunkSizeOverflowIsReportedNotPanicked(t *testing.T) {
	Convey("Given a layout whose size would overflow chunk-sizing arithmetic", t, func() {
		a := arena.New()

		l, err := layout.New(math.MaxInt-1, 1)
		So(err, ShouldBeNil)

		Convey("TryAllocLayout reports exhaustion as an error instead of panicking", func() {
			So(func() {
				_, allocErr := a.TryAllocLayout(l)
				err = allocErr
			}, ShouldNotPanic)

			So(err, ShouldNotBeNil)
			So(errors.Is(err, arena.ErrMemoryExhausted), ShouldBeTrue)
		})
	})
}
