// Package mainlog provides a minimal in-memory implementation of
// internal/chainwalker.MainLog, the main-log allocator spec.md §1 names as
// an external collaborator out of scope for this module. It exists so the
// read-cache engine is runnable and testable standalone: production
// deployments supply their own allocator (page geometry, on-disk
// spill, recovery) and only need to satisfy the same interface.
//
// The layout mirrors internal/rclog's record format (header+key+value) so
// that a read-cache record replacing a main-log record, and vice versa, can
// share spec.md's chain-splicing code unmodified.
//
// © 2025 faster-readcache authors. MIT License.
package mainlog

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/Voskan/faster-readcache/internal/addrword"
	"github.com/Voskan/faster-readcache/internal/recordinfo"
	"github.com/Voskan/faster-readcache/internal/unsafehelpers"
)

const headerSize = 8

// Log is a simple growable in-memory main log: no page geometry, no
// eviction of its own memory, no on-disk spill. beginAddress models records
// truncated away by a checkpoint; headAddress models records evicted from
// memory (but still present "on disk" from the chain walker's point of
// view — see DiskStore).
//
// mu guards buf itself (the slice header, reassigned whenever TryAllocate
// grows it) the same way the teacher's pkg/cache.go guards its backing map:
// readers (GetInfo/GetKey/GetValue/GetRecordSize) take RLock, since
// pkg/readcache.PendingReadResolver's singleflight coalescing means many
// goroutines legitimately read this log concurrently; writers (TryAllocate)
// take the exclusive Lock only around the grow-and-reslice step.
type Log struct {
	mu        sync.RWMutex
	buf       []byte
	tail      atomic.Int64
	head      atomic.Int64
	begin     atomic.Int64
	diskStore DiskStore // optional: records below HeadAddress "escape" here
}

// DiskStore is consulted by callers (not by Log itself) to resolve a key
// that has escaped below HeadAddress — see
// pkg/readcache.EnsureNoNewMainLogRecordWasSpliced's RECORD_ON_DISK path.
// A nil DiskStore means everything below HeadAddress is simply gone.
type DiskStore interface {
	Get(key []byte) (value []byte, ok bool)
}

// New constructs an empty Log with an optional DiskStore backing evicted
// records (see BadgerDiskStore for a concrete implementation).
func New(diskStore DiskStore) *Log {
	l := &Log{diskStore: diskStore}
	l.buf = make([]byte, headerSize)
	// Reserve [0, headerSize) so the first real record address is always
	// greater than addrword.KTempInvalidAddress and addrword.KInvalidAddress.
	l.tail.Store(headerSize)
	return l
}

func recordSize(keyLen, valueLen int) int64 { return int64(headerSize + 4 + keyLen + 4 + valueLen) }

// TryAllocate grows buf and reserves size bytes, always succeeding (no page
// geometry to straddle) — matching spec.md §6's ">0 success" case.
func (l *Log) TryAllocate(size int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	addr := l.tail.Load()
	needed := addr + size
	if int64(len(l.buf)) < needed {
		grown := make([]byte, needed*2)
		copy(grown, l.buf)
		l.buf = grown
	}
	l.tail.Store(needed)
	return addr
}

// HeadAddress is the eviction frontier: addresses below it are no longer
// guaranteed resident in l.buf from the engine's point of view.
func (l *Log) HeadAddress() int64 { return l.head.Load() }

// BeginAddress is the truncation frontier (checkpoint/compaction boundary).
func (l *Log) BeginAddress() int64 { return l.begin.Load() }

// TailAddress is the next address TryAllocate will hand out.
func (l *Log) TailAddress() int64 { return l.tail.Load() }

// SetHeadAddress simulates the allocator evicting everything below addr
// from memory; used by tests and cmd/readcache-bench -mode diskescape to exercise
// spec.md §4.7(a)'s RECORD_ON_DISK branch.
func (l *Log) SetHeadAddress(addr int64) { l.head.Store(addr) }

// GetInfo returns the header at logical. Callers must first check
// logical >= HeadAddress(); reading below head is only valid for the
// EnsureNoNewMainLogRecordWasSpliced walk, which stops at HeadAddress.
func (l *Log) GetInfo(logical int64) *recordinfo.RecordInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return unsafehelpers.PointerAt[recordinfo.RecordInfo](l.buf[logical:])
}

func (l *Log) GetKey(logical int64) []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	off := logical + headerSize
	kl := int64(binary.LittleEndian.Uint32(l.buf[off:]))
	return l.buf[off+4 : off+4+kl]
}

func (l *Log) GetValue(logical int64) []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	off := logical + headerSize
	kl := int64(binary.LittleEndian.Uint32(l.buf[off:]))
	vlOff := off + 4 + kl
	vl := int64(binary.LittleEndian.Uint32(l.buf[vlOff:]))
	return l.buf[vlOff+4 : vlOff+4+vl]
}

func (l *Log) GetRecordSize(logical int64) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	off := logical + headerSize
	kl := int64(binary.LittleEndian.Uint32(l.buf[off:]))
	vlOff := off + 4 + kl
	vl := int64(binary.LittleEndian.Uint32(l.buf[vlOff:]))
	return recordSize(int(kl), int(vl))
}

// Append allocates and writes a full record in one step, returning its
// address and header. previousAddress is the chain link the caller observed
// as the splice point.
func (l *Log) Append(previousAddress addrword.Address, key, value []byte) (int64, *recordinfo.RecordInfo) {
	size := recordSize(len(key), len(value))
	addr := l.TryAllocate(size)

	l.mu.RLock()
	buf := l.buf[addr : addr+size]
	var info recordinfo.RecordInfo
	info.Init(previousAddress)
	binary.LittleEndian.PutUint64(buf, info.Load())
	off := headerSize
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(key)))
	off += 4
	copy(buf[off:], key)
	off += len(key)
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(value)))
	off += 4
	copy(buf[off:], value)
	l.mu.RUnlock()

	return addr, l.GetInfo(addr)
}

// ResolveFromDisk consults the optional DiskStore for a key that escaped
// below HeadAddress.
func (l *Log) ResolveFromDisk(key []byte) ([]byte, bool) {
	if l.diskStore == nil {
		return nil, false
	}
	return l.diskStore.Get(key)
}
