// Package recordinfo implements the per-record header stored immediately
// before every key/value pair in the read-cache log and the main log.  The
// header is a single atomically-addressable word so that the chain-splicing
// protocol in internal/chainwalker can update PreviousAddress with a bare
// CAS, leaving every other bit untouched.
//
// Bit layout (64 bits, bit 63 is the MSB):
//
//	63       : Sealed
//	62       : Invalid
//	61       : Tombstone
//	56       : Exclusive lock
//	50-55    : Shared lock count (6 bits, saturates rather than overflows)
//	49       : Present (set by Init, so a written header is never all-zero)
//	48       : PreviousAddress read-cache flag
//	0-47     : PreviousAddress (absolute offset)
//
// ⚠️  Field order matters: PreviousAddress/TryUpdateAddress translate the
// low 49 bits to and from the internal/addrword encoding, which keeps its
// read-cache flag in bit 63 rather than bit 48.
//
// © 2025 faster-readcache authors. MIT License.
package recordinfo

import (
	"sync/atomic"

	"github.com/Voskan/faster-readcache/internal/addrword"
)

const (
	prevAddressBits = 49 // 48 offset bits + 1 read-cache flag bit
	prevAddressMask = uint64(1<<prevAddressBits) - 1
	prevReadCacheBit = uint64(1) << 48
	prevOffsetMask   = prevReadCacheBit - 1
	presentBit       = uint64(1) << 49

	sharedLockShift = 50
	sharedLockBits  = 6
	sharedLockMax   = uint64(1<<sharedLockBits) - 1
	sharedLockMask  = sharedLockMax << sharedLockShift

	exclusiveBit  = uint64(1) << 56
	tombstoneBit  = uint64(1) << 61
	invalidBit    = uint64(1) << 62
	sealedBit     = uint64(1) << 63
)

// RecordInfo is the atomic record header. The zero value is the all-zero
// padding header (IsNull); Init turns it into a live, unlocked,
// untombstoned record header.
type RecordInfo struct {
	word atomic.Uint64
}

// encodePrev packs an addrword.Address into the 49-bit PreviousAddress
// field, moving the read-cache flag from bit 63 to bit 48.
func encodePrev(a addrword.Address) uint64 {
	w := addrword.AbsoluteAddress(a) & prevOffsetMask
	if addrword.IsReadCache(a) {
		w |= prevReadCacheBit
	}
	return w
}

// decodePrev unpacks the PreviousAddress field into an addrword.Address.
func decodePrev(word uint64) addrword.Address {
	return addrword.New(word&prevOffsetMask, word&prevReadCacheBit != 0)
}

// Init stores the initial header for a freshly allocated record.
func (r *RecordInfo) Init(previousAddress addrword.Address) {
	r.word.Store(encodePrev(previousAddress) | presentBit)
}

// Load returns the raw word — primarily useful for tests asserting on the
// whole header atomically.
func (r *RecordInfo) Load() uint64 { return r.word.Load() }

// PreviousAddress returns the chain-link field.
func (r *RecordInfo) PreviousAddress() addrword.Address {
	return decodePrev(r.word.Load())
}

// IsInvalid reports the Invalid bit.
func (r *RecordInfo) IsInvalid() bool { return r.word.Load()&invalidBit != 0 }

// IsSealed reports the Sealed bit. Invariant 5 (spec.md §3) requires this is
// never observed true on a read-cache record.
func (r *RecordInfo) IsSealed() bool { return r.word.Load()&sealedBit != 0 }

// IsTombstone reports the Tombstone bit.
func (r *RecordInfo) IsTombstone() bool { return r.word.Load()&tombstoneBit != 0 }

// IsNull reports whether the header is the all-zero pattern used for page
// padding at a straddled page boundary: zero PreviousAddress, no bits set.
func (r *RecordInfo) IsNull() bool { return r.word.Load() == 0 }

// SharedLockCount returns the current shared-reader count.
func (r *RecordInfo) SharedLockCount() int {
	return int((r.word.Load() & sharedLockMask) >> sharedLockShift)
}

// IsExclusivelyLocked reports the exclusive-lock bit.
func (r *RecordInfo) IsExclusivelyLocked() bool { return r.word.Load()&exclusiveBit != 0 }

// SetInvalid idempotently sets the Invalid bit via CAS-retry loop (the word
// may be concurrently updated by lock operations, so a plain OR-store would
// lose a racing bit).
func (r *RecordInfo) SetInvalid() {
	for {
		old := r.word.Load()
		if old&invalidBit != 0 {
			return
		}
		if r.word.CompareAndSwap(old, old|invalidBit) {
			return
		}
	}
}

// SetTombstone idempotently sets the Tombstone bit.
func (r *RecordInfo) SetTombstone() {
	for {
		old := r.word.Load()
		if old&tombstoneBit != 0 {
			return
		}
		if r.word.CompareAndSwap(old, old|tombstoneBit) {
			return
		}
	}
}

// TryUpdateAddress CASes the PreviousAddress field alone, leaving every other
// bit untouched. This is the sole write path for chain splicing (§4.6) and
// eviction unlinking (§4.9).
func (r *RecordInfo) TryUpdateAddress(expectedPrev, newPrev addrword.Address) bool {
	for {
		old := r.word.Load()
		if decodePrev(old) != expectedPrev {
			return false
		}
		newWord := (old &^ prevAddressMask) | encodePrev(newPrev)
		if r.word.CompareAndSwap(old, newWord) {
			return true
		}
		// Lost the CAS to an unrelated bit update (lock bits); expectedPrev
		// is still accurate, so retry rather than fail the caller.
	}
}

// TryLockShared attempts to increment the shared-lock counter by one,
// failing (without mutating) if the record is exclusively locked, invalid,
// or the counter has saturated.
func (r *RecordInfo) TryLockShared() bool {
	for {
		old := r.word.Load()
		if old&exclusiveBit != 0 || old&invalidBit != 0 {
			return false
		}
		count := (old & sharedLockMask) >> sharedLockShift
		if count >= sharedLockMax {
			return false
		}
		newWord := (old &^ sharedLockMask) | ((count + 1) << sharedLockShift)
		if r.word.CompareAndSwap(old, newWord) {
			return true
		}
	}
}

// UnlockShared decrements the shared-lock counter by one. It is a
// programming error to call this without a matching TryLockShared success.
func (r *RecordInfo) UnlockShared() {
	for {
		old := r.word.Load()
		count := (old & sharedLockMask) >> sharedLockShift
		if count == 0 {
			return
		}
		newWord := (old &^ sharedLockMask) | ((count - 1) << sharedLockShift)
		if r.word.CompareAndSwap(old, newWord) {
			return
		}
	}
}

// TryLockExclusive attempts to set the exclusive bit, failing if it is
// already set or the record is invalid. Tentative: the caller confirms the
// lock by winning a subsequent chain CAS, or releases it on failure.
func (r *RecordInfo) TryLockExclusive() bool {
	for {
		old := r.word.Load()
		if old&exclusiveBit != 0 || old&invalidBit != 0 {
			return false
		}
		if r.word.CompareAndSwap(old, old|exclusiveBit) {
			return true
		}
	}
}

// UnlockExclusive clears the exclusive bit.
func (r *RecordInfo) UnlockExclusive() {
	for {
		old := r.word.Load()
		if old&exclusiveBit == 0 {
			return
		}
		if r.word.CompareAndSwap(old, old&^exclusiveBit) {
			return
		}
	}
}

// CopyReadLocksFromAndMarkSourceAtomic implements the lock-transfer step of
// §4.3/§4.7(b): it moves src's shared-lock count onto r and marks src
// Invalid, as a pair of independent atomic updates (the two words can never
// be touched by a single CAS since they are different records). The caller
// must hold the epoch for the duration; no other thread may be mutating
// src's shared-lock count concurrently once src is reachable only via the
// about-to-be-invalidated read-cache slot.
//
// removeEphemeralLock, when true, also drops one count from the copied total
// before applying it to r — used when the caller itself held a transient
// shared pin on src that should not be carried over.
func (r *RecordInfo) CopyReadLocksFromAndMarkSourceAtomic(src *RecordInfo, removeEphemeralLock bool) {
	srcWord := src.word.Load()
	count := (srcWord & sharedLockMask) >> sharedLockShift
	if removeEphemeralLock && count > 0 {
		count--
	}
	for {
		old := r.word.Load()
		newWord := (old &^ sharedLockMask) | (count << sharedLockShift)
		if r.word.CompareAndSwap(old, newWord) {
			break
		}
	}
	src.SetInvalid()
}
