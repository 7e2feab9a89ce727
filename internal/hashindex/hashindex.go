// Package hashindex implements the bucket table consulted by every chain
// walk: one atomically-addressable AddressWord per slot, holding the head of
// the slot's hash chain. This mirrors the teacher's pkg/shard.go hashing
// idiom (maphash + an unsafe fallback for scalar keys) adapted from a
// key→*entry map into a fixed bucket array of raw address words, since the
// read-cache engine's hash index is the spec's external collaborator: a flat
// table the engine CASes against, not an owning container of values.
//
// © 2025 faster-readcache authors. MIT License.
package hashindex

import (
	"hash/maphash"
	"sync/atomic"
	"unsafe"

	"github.com/Voskan/faster-readcache/internal/addrword"
)

// Table is a fixed-size array of hash buckets. Size must be a power of two;
// NewTable rounds up to the nearest one.
type Table struct {
	buckets []atomic.Uint64
	mask    uint64
	seed    maphash.Seed
}

// NewTable constructs a table with at least numBuckets slots.
func NewTable(numBuckets int) *Table {
	if numBuckets < 1 {
		numBuckets = 1
	}
	n := 1
	for n < numBuckets {
		n <<= 1
	}
	return &Table{
		buckets: make([]atomic.Uint64, n),
		mask:    uint64(n - 1),
		seed:    maphash.MakeSeed(),
	}
}

// NumBuckets returns the table's slot count.
func (t *Table) NumBuckets() int { return len(t.buckets) }

// Heads returns a snapshot of every bucket's current head address. Used only
// by checkpoint flattening, which must not mutate the live table.
func (t *Table) Heads() []addrword.Address {
	out := make([]addrword.Address, len(t.buckets))
	for i := range t.buckets {
		out[i] = addrword.Address(t.buckets[i].Load())
	}
	return out
}

// BucketIndexMask returns the low bits of keyHash used to select a bucket —
// the comparison key eviction uses per spec.md §4.9 ("records are compared
// by bucket-index mask... because colliding keys share the same chain").
func (t *Table) BucketIndexMask(keyHash uint64) uint64 { return keyHash & t.mask }

// HashBytes computes a stable 64-bit hash of an arbitrary byte-serialised
// key, using the table's private seed (so distinct Table instances in tests
// never collide identically, matching the teacher's per-shard seed idiom).
func (t *Table) HashBytes(key []byte) uint64 {
	var h maphash.Hash
	h.SetSeed(t.seed)
	h.Write(key)
	return h.Sum64()
}

// HashEntryInfo is a snapshot of one bucket slot: the slot to CAS against and
// the value observed when the snapshot was taken.
type HashEntryInfo struct {
	slot     *atomic.Uint64
	observed addrword.Address
}

// FindTag locates the bucket for keyHash and snapshots its current head.
func (t *Table) FindTag(keyHash uint64) HashEntryInfo {
	idx := t.BucketIndexMask(keyHash)
	slot := &t.buckets[idx]
	return HashEntryInfo{slot: slot, observed: addrword.Address(slot.Load())}
}

// Address returns the head address observed at FindTag time.
func (e HashEntryInfo) Address() addrword.Address { return e.observed }

// Refresh re-reads the slot, returning an entry with an up-to-date snapshot.
// Used after a lost CAS or after waiting out an eviction, per spec.md §4.4/§4.9.
func (e HashEntryInfo) Refresh() HashEntryInfo {
	return HashEntryInfo{slot: e.slot, observed: addrword.Address(e.slot.Load())}
}

// TryCAS attempts to replace the bucket's head with newWord, succeeding only
// if the slot still holds the address observed at FindTag/Refresh time.
func (e HashEntryInfo) TryCAS(newWord addrword.Address) bool {
	return e.slot.CompareAndSwap(uint64(e.observed), uint64(newWord))
}

// unsafeScalarBytes views an arbitrary comparable scalar as a byte slice for
// hashing, the same unsafe fallback the teacher's shard.hash() uses for key
// types other than string/[]byte.
func unsafeScalarBytes[K comparable](key K) []byte {
	ptr := unsafe.Pointer(&key)
	size := unsafe.Sizeof(key)
	return unsafe.Slice((*byte)(ptr), size)
}

// HashKey computes keyHash for any comparable K, and returns the byte
// encoding used for both hashing and for storing a key-equality footprint in
// a read-cache record.
func HashKey[K comparable](t *Table, key K) (hash uint64, encoded []byte) {
	switch k := any(key).(type) {
	case string:
		encoded = []byte(k)
	case []byte:
		encoded = k
	default:
		encoded = unsafeScalarBytes(key)
	}
	return t.HashBytes(encoded), encoded
}
