//go:build goexperiment.arenas
// +build goexperiment.arenas

// Package arena wraps Go's experimental `arena` package behind a tiny, stable
// surface sized for the needs of the read-cache log: allocate a page's worth
// of bytes outside the GC-managed heap, then release the whole page in one
// O(1) call when the page is evicted.  We expose only:
//   - New()       – construct an arena (one per read-cache page).
//   - Free()      – release all memory at once.
//   - MakeSlice   – allocate a byte slice with length==cap.
//   - AllocBytes  – copy a []byte into the arena.
//   - NewValue    – allocate a zero-initialised T.
//   - UnsafePointer – view an arena-backed pointer as unsafe.Pointer.
//
// Concurrency
// -----------
// Arena is *not* thread-safe. In this module the owning internal/rclog.page
// serialises access: a page accepts new allocations only while it is the
// active tail page, which a single tail-CAS winner extends at a time, and it
// is freed only after internal/epoch confirms no participant can still
// observe its address range.
//
// ⚠️  Using arenas bypasses the garbage collector: pointers returned here
// must never escape past Free(). In this module that is guaranteed because
// every reference into a page is an Address (see internal/addrword), not a
// Go pointer — the only raw pointers derived from an Arena live for the
// duration of a single epoch-protected traversal.
//
// © 2025 faster-readcache authors. MIT License.
package arena

import (
	"arena" // standard library experimental package
	"unsafe"
)

// Arena is a thin new-type wrapper that prevents external packages from
// depending directly on `arena.Arena`.
type Arena struct{ ar arena.Arena }

// New constructs an empty arena ready for allocations.
func New() *Arena {
	return &Arena{ar: *arena.NewArena()}
}

// Free releases all memory allocated in the arena. Any pointer previously
// returned from MakeSlice/AllocBytes becomes invalid.
func (a *Arena) Free() {
	a.ar.Free()
}

// MakeSlice allocates a slice of length==cap==n inside the arena.
func (a *Arena) MakeSlice(n int) []byte { return arena.MakeSlice[byte](&a.ar, n, n) }

// AllocBytes copies buf into the arena and returns the new backing slice.
func (a *Arena) AllocBytes(buf []byte) []byte {
	dst := arena.MakeSlice[byte](&a.ar, len(buf), len(buf))
	copy(dst, buf)
	return dst
}

// NewValue allocates a zero-initialised T inside the arena.
func NewValue[T any](a *Arena) *T { return arena.New[T](&a.ar) }

// UnsafePointer converts an arena-backed pointer to unsafe.Pointer so it can
// be stored inside a RecordInfo/key/value view. Rare; provided for
// completeness.
func UnsafePointer[T any](p *T) unsafe.Pointer { return unsafe.Pointer(p) }
