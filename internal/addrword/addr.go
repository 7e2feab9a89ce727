// Package addrword provides the bit-level encoding for the 64-bit logical
// addresses used throughout the read-cache engine.  The topmost bit marks
// whether an address refers to the read-cache log or to the main log; the
// remaining bits are an absolute offset into whichever log that bit selects.
//
// This is a deliberately tiny, allocation-free package: every function here
// is a pure bit operation over a uint64 word, kept separate from RecordInfo
// so that address arithmetic can be unit tested in isolation from the atomic
// header protocol.
//
// © 2025 faster-readcache authors. MIT License.
package addrword

// Address is a 64-bit logical reference: an absolute offset into either the
// main log or the read-cache log, tagged with which log it targets.
type Address uint64

const (
	// kReadCacheBitMask flags that Address refers to the read-cache log.
	kReadCacheBitMask Address = 1 << 63

	// kAbsoluteAddressMask isolates the offset bits.
	kAbsoluteAddressMask Address = kReadCacheBitMask - 1

	// KInvalidAddress is the null reference: "no record".
	KInvalidAddress Address = 0

	// KTempInvalidAddress marks a record detached from every chain without
	// colliding with KInvalidAddress, which page-boundary padding also uses
	// as its null sentinel (see RecordInfo.IsNull). It must be a value no
	// real allocation ever produces; both internal/rclog and
	// internal/mainlog reserve their first few bytes so the first real
	// record address is always > KTempInvalidAddress.
	KTempInvalidAddress Address = 1
)

// New composes an Address from an absolute offset and a read-cache flag.
func New(absolute uint64, readCache bool) Address {
	a := Address(absolute) & kAbsoluteAddressMask
	if readCache {
		a |= kReadCacheBitMask
	}
	return a
}

// AbsoluteAddress strips the read-cache flag, returning the plain offset.
func AbsoluteAddress(w Address) uint64 { return uint64(w & kAbsoluteAddressMask) }

// IsReadCache reports whether w targets the read-cache log.
func IsReadCache(w Address) bool { return w&kReadCacheBitMask != 0 }

// IsInvalid reports whether w is the null sentinel.
func IsInvalid(w Address) bool { return w == KInvalidAddress }

// IsTempInvalid reports whether w is the "detached, not null" sentinel.
func IsTempInvalid(w Address) bool { return AbsoluteAddress(w) == uint64(KTempInvalidAddress) }

// Less compares two addresses by absolute offset only, ignoring the
// read-cache flag. Used to assert the monotone-prefix invariant.
func Less(a, b Address) bool { return AbsoluteAddress(a) < AbsoluteAddress(b) }
