//go:build go1.20

package xunsafe

import (
	"fmt"
	"unsafe"

	"github.com/arenakit/bump/pkg/layout"
)

// Addr is the numeric address of a value of type T. Unlike *T, an Addr can
// be computed, compared, and rounded with ordinary arithmetic without
// losing track of the element type it scales by.
type Addr[T any] uintptr

// AddrOf returns the address of *p.
func AddrOf[T any](p *T) Addr[T] {
	return Addr[T](uintptr(unsafe.Pointer(p)))
}

// EndOf returns the address one past the last element of s.
func EndOf[S ~[]E, E any](s S) Addr[E] {
	size := layout.Size[E]()
	base := uintptr(unsafe.Pointer(unsafe.SliceData(s)))
	return Addr[E](base + uintptr(size)*uintptr(len(s)))
}

// AssertValid converts this address back into a pointer, assuming it is a
// valid address for a value of type T.
func (a Addr[T]) AssertValid() *T {
	return (*T)(unsafe.Pointer(uintptr(a)))
}

// Add adds n elements' worth of offset to a.
func (a Addr[T]) Add(n int) Addr[T] {
	size := layout.Size[T]()
	return a + Addr[T](uintptr(size)*uintptr(n))
}

// ByteAdd adds n bytes of offset to a, without scaling by T's size.
func (a Addr[T]) ByteAdd(n int) Addr[T] {
	return a + Addr[T](uintptr(n))
}

// Sub computes the difference, in elements, between a and that.
func (a Addr[T]) Sub(that Addr[T]) int {
	size := layout.Size[T]()
	return int(uintptr(a)-uintptr(that)) / size
}

// Padding returns how many bytes must be added to a to reach the given
// alignment, which must be a power of two.
func (a Addr[T]) Padding(align int) int {
	return layout.Padding(int(a), align)
}

// RoundDownTo rounds a down to the given alignment, which must be a power
// of two.
func (a Addr[T]) RoundDownTo(align int) Addr[T] {
	return Addr[T](layout.RoundDown(uintptr(a), uintptr(align)))
}

// RoundUpTo rounds a up to the given alignment, which must be a power of
// two.
func (a Addr[T]) RoundUpTo(align int) Addr[T] {
	return Addr[T](layout.RoundUp(uintptr(a), uintptr(align)))
}

// SignBit returns whether the highest bit of a is set.
func (a Addr[T]) SignBit() bool {
	return a.SignBitMask() != 0
}

// SignBitMask returns an all-ones mask if a's sign bit is set, or an
// all-zeros mask otherwise.
func (a Addr[T]) SignBitMask() Addr[T] {
	return Addr[T](int(a) >> (layout.Bits[uintptr]() - 1))
}

// ClearSignBit returns a with its highest bit cleared.
func (a Addr[T]) ClearSignBit() Addr[T] {
	return a &^ (Addr[T](1) << (layout.Bits[uintptr]() - 1))
}

// String implements [fmt.Stringer].
func (a Addr[T]) String() string {
	return fmt.Sprintf("0x%x", uintptr(a))
}

// Format implements [fmt.Formatter], so that %v and %x both render the
// address in hex.
func (a Addr[T]) Format(f fmt.State, verb rune) {
	switch verb {
	case 'x', 'X':
		_, _ = fmt.Fprintf(f, fmt.FormatString(f, verb), uintptr(a))
	default:
		_, _ = f.Write([]byte(a.String()))
	}
}
