//go:build go1.22

package arena

import (
	"errors"
	"fmt"
)

// ErrMemoryExhausted is returned by the Try* entry points when an
// allocation cannot be satisfied: chunk-size arithmetic overflowed, or the
// arena's allocation limit would be exceeded.
var ErrMemoryExhausted = errors.New("arena: memory exhausted")

// AbortHook is invoked by the non-Try entry points (AllocLayout, New,
// Alloc, AllocSlice, ...) when an allocation fails. The default hook
// panics with a diagnostic message; callers may replace it to integrate
// with their own process-abort machinery.
//
// The hook is expected not to return; if it does, the caller panics anyway.
var AbortHook = func(err error) {
	panic(err)
}

func abort(err error) {
	AbortHook(err)
	panic(err)
}

func exhausted(reason string) error {
	return fmt.Errorf("%w: %s", ErrMemoryExhausted, reason)
}
