//go:build go1.22

package arena

import (
	"unsafe"

	"github.com/arenakit/bump/pkg/layout"
	"github.com/arenakit/bump/pkg/xunsafe"
)

// New allocates a value of type T on the arena and initializes it to
// value.
func New[T any](a *Arena, value T) *T {
	p := Alloc[T](a)
	*p = value
	return p
}

// Alloc allocates space for one uninitialized value of type T.
func Alloc[T any](a *Arena) *T {
	l := layout.Of[T]()
	return xunsafe.Cast[T](a.AllocLayout(l))
}

// TryAlloc is Alloc, reporting memory exhaustion instead of aborting.
func TryAlloc[T any](a *Arena) (*T, error) {
	l := layout.Of[T]()
	p, err := a.TryAllocLayout(l)
	if err != nil {
		return nil, err
	}
	return xunsafe.Cast[T](p), nil
}

// AllocSlice allocates space for n uninitialized values of type T.
func AllocSlice[T any](a *Arena, n int) []T {
	l, _, err := layout.Repeat(layout.Of[T](), n)
	if err != nil {
		abort(err)
	}

	p := a.AllocLayout(l)
	return unsafe.Slice(xunsafe.Cast[T](p), n)
}

// AllocSliceCopy allocates a slice of len(src) elements and bit-copies src
// into it.
func AllocSliceCopy[T any](a *Arena, src []T) []T {
	dst := AllocSlice[T](a, len(src))
	copy(dst, src)
	return dst
}

// AllocSliceClone allocates a slice of len(src) elements, cloning each one
// with clone instead of bit-copying.
func AllocSliceClone[T any](a *Arena, src []T, clone func(T) T) []T {
	dst := AllocSlice[T](a, len(src))
	for i, v := range src {
		dst[i] = clone(v)
	}
	return dst
}

// AllocSliceFill allocates a slice of n elements, each set to value.
func AllocSliceFill[T any](a *Arena, n int, value T) []T {
	dst := AllocSlice[T](a, n)
	for i := range dst {
		dst[i] = value
	}
	return dst
}

// AllocSliceFillWith allocates a slice of n elements, each set by calling
// fn(i).
func AllocSliceFillWith[T any](a *Arena, n int, fn func(i int) T) []T {
	dst := AllocSlice[T](a, n)
	for i := range dst {
		dst[i] = fn(i)
	}
	return dst
}

// AllocSliceFillZeroed allocates a slice of n elements, all zero-valued.
func AllocSliceFillZeroed[T any](a *Arena, n int) []T {
	l, _, err := layout.Repeat(layout.Of[T](), n)
	if err != nil {
		abort(err)
	}

	p, err := a.AllocateZeroed(l)
	if err != nil {
		abort(err)
	}

	return unsafe.Slice(xunsafe.Cast[T](p), n)
}

// AllocStr allocates a bitwise copy of s.
func AllocStr(a *Arena, s string) string {
	n := len(s)
	l := layout.Layout{Size: n, Align: 1}

	p := a.AllocLayout(l)
	if n > 0 {
		copy(unsafe.Slice(p, n), s)
	}

	return xunsafe.SliceToString(unsafe.Slice(p, n))
}
