package rclog

import (
	"sync/atomic"

	"go.uber.org/zap"

	arena "github.com/Voskan/faster-readcache/internal/arena"
	"github.com/Voskan/faster-readcache/internal/addrword"
	"github.com/Voskan/faster-readcache/internal/recordinfo"
	"github.com/Voskan/faster-readcache/internal/unsafehelpers"
)

// page is one fixed-size slab of the circular log. Pages are allocated from
// an internal/arena.Arena so that retiring a page is a single Free() call —
// the read-cache analogue of the teacher's genring generation.
type page struct {
	ar  *arena.Arena
	buf []byte
}

// Log is the read-cache's circular in-memory log: TailAddress only moves
// forward and HeadAddress advances as the evictor retires pages. There is no
// BeginAddress: the read cache is never persisted or truncated, only evicted.
type Log struct {
	pageSize int64
	pageMask int64
	pageBits uint

	pages []*page // ring of len(pages) slabs, indexed by (addr>>pageBits)%len(pages)

	tailAddress    atomic.Int64
	headAddress    atomic.Int64
	reclaimedUpTo  int64 // high-water mark for ReclaimPages; single-evictor-owned
	rotating       atomic.Bool

	logger *zap.Logger
}

// New constructs a Log with the given page size and total capacity, both
// rounded down to the nearest power of two as required by spec.md §4.1 /
// §6's configuration surface.
func New(pageSize, totalSize int64, logger *zap.Logger) *Log {
	pageSize = floorPow2(pageSize)
	totalSize = floorPow2(totalSize)
	if totalSize < pageSize {
		totalSize = pageSize
	}
	numPages := int(totalSize / pageSize)
	if numPages < 2 {
		numPages = 2 // at least one page ahead of the page being evicted
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Log{
		pageSize: pageSize,
		pageMask: pageSize - 1,
		pageBits: uint(bitLen(pageSize) - 1),
		pages:    make([]*page, numPages),
		logger:   logger,
	}
	l.pages[0] = newPage(pageSize)
	// Reserve [0, headerSize) so the first real record address is always
	// greater than addrword.KTempInvalidAddress and addrword.KInvalidAddress.
	// headAddress starts at the same offset so a scan from HeadAddress()
	// never walks into this reserved prefix and mistakes it for page-
	// straddle padding.
	l.tailAddress.Store(headerSize)
	l.headAddress.Store(headerSize)
	l.reclaimedUpTo = headerSize
	return l
}

func floorPow2(n int64) int64 {
	if n <= 1 {
		return 1
	}
	p := int64(1)
	for p<<1 <= n {
		p <<= 1
	}
	return p
}

func bitLen(n int64) int {
	b := 0
	for n > 0 {
		b++
		n >>= 1
	}
	return b
}

func newPage(size int64) *page {
	ar := arena.New()
	return &page{ar: ar, buf: ar.MakeSlice(int(size))}
}

// HeadAddress is the eviction frontier: addresses below it are retired.
func (l *Log) HeadAddress() int64 { return l.headAddress.Load() }

// TailAddress is the next address that will be handed out by TryAllocate.
func (l *Log) TailAddress() int64 { return l.tailAddress.Load() }

// PageSize exposes the configured page granularity.
func (l *Log) PageSize() int64 { return l.pageSize }

// TryAllocate reserves size contiguous bytes at the tail, per spec.md §4.1:
// returns a positive address on success, 0 if the allocation straddled a
// page boundary and a new page had to be created (caller retries — the
// read-cache's in-memory "flush" is synchronous page creation, so a retry
// always succeeds immediately), or -1 if another goroutine is mid-rotation,
// or if the ring has wrapped all the way back onto a page the evictor has
// not yet retired — in both cases the caller refreshes its epoch and retries
// once the evictor (internal/evictor) advances HeadAddress far enough.
func (l *Log) TryAllocate(size int64) int64 {
	for {
		cur := l.tailAddress.Load()
		localOff := cur & l.pageMask
		if localOff+size > l.pageSize {
			if !l.rotating.CompareAndSwap(false, true) {
				return -1
			}
			nextPageStart := (cur - localOff) + l.pageSize
			if l.wouldOverwriteLivePage(nextPageStart) {
				l.rotating.Store(false)
				return -1
			}
			if !l.tailAddress.CompareAndSwap(cur, nextPageStart) {
				l.rotating.Store(false)
				continue
			}
			l.installPage(nextPageStart)
			l.rotating.Store(false)
			return 0
		}
		if l.tailAddress.CompareAndSwap(cur, cur+size) {
			return cur
		}
	}
}

// wouldOverwriteLivePage reports whether installing a fresh page at
// nextPageStart would reuse a ring slot whose prior page still holds
// addresses at or above HeadAddress — i.e. records the evictor has not yet
// unlinked from their hash chains. The ring has len(l.pages) slots, so the
// slot at nextPageStart was last used for the page ending
// len(l.pages) pages earlier; that whole page must lie below HeadAddress
// before it is safe to recycle.
func (l *Log) wouldOverwriteLivePage(nextPageStart int64) bool {
	overwrittenPageEnd := nextPageStart - int64(len(l.pages)-1)*l.pageSize
	return l.headAddress.Load() < overwrittenPageEnd
}

func (l *Log) installPage(addr int64) {
	idx := l.pageIndex(addr)
	l.pages[idx] = newPage(l.pageSize)
	l.logger.Debug("rclog: page installed", zap.Int64("address", addr), zap.Int("index", idx))
}

func (l *Log) pageIndex(addr int64) int {
	return int((addr >> l.pageBits)) % len(l.pages)
}

// GetPhysicalAddress returns the byte slice view of the record beginning at
// logical, valid for the lifetime of the current epoch acquisition.
func (l *Log) GetPhysicalAddress(logical int64) []byte {
	p := l.pages[l.pageIndex(logical)]
	localOff := logical & l.pageMask
	return p.buf[localOff:]
}

// GetInfo returns a pointer to the RecordInfo header at logical. The pointer
// aliases the page's backing array directly (zero-copy), matching the
// "Zero-copy references" contract in spec.md §6.
func (l *Log) GetInfo(logical int64) *recordinfo.RecordInfo {
	buf := l.GetPhysicalAddress(logical)
	return unsafehelpers.PointerAt[recordinfo.RecordInfo](buf)
}

// GetKey returns the key bytes stored at logical.
func (l *Log) GetKey(logical int64) []byte {
	return readKey(l.GetPhysicalAddress(logical))
}

// GetValue returns the value bytes stored at logical.
func (l *Log) GetValue(logical int64) []byte {
	return readValue(l.GetPhysicalAddress(logical))
}

// GetRecordSize returns the total byte length (header+key+value) of the
// record at logical.
func (l *Log) GetRecordSize(logical int64) int64 {
	return totalRecordSize(l.GetPhysicalAddress(logical))
}

// IsNull reports whether logical holds page-boundary padding rather than a
// real record (spec.md §4.1's straddling policy).
func (l *Log) IsNull(logical int64) bool {
	return isNullHeader(l.GetPhysicalAddress(logical))
}

// Allocate writes a new record's header+key+value at the address returned
// by a successful TryAllocate and returns the initialised RecordInfo.
func (l *Log) Allocate(addr int64, previousAddress addrword.Address, key, value []byte) *recordinfo.RecordInfo {
	buf := l.GetPhysicalAddress(addr)
	size := recordSize(len(key), len(value))
	var info recordinfo.RecordInfo
	info.Init(previousAddress)
	writeRecord(buf[:size], &info, key, value)
	return l.GetInfo(addr)
}

// AdvanceHead moves the eviction frontier forward to newHead. It does not
// free page memory: chain unlinking (pkg/readcache.Engine.Evict) must finish
// against the old head before callers observe the new one, and physical
// page memory is only released later by ReclaimPages, once
// internal/epoch confirms no participant can still observe an address in
// the retired range (spec.md §9: "a record cannot be physically freed until
// every thread that may have observed its address has released its epoch").
// Only a single evictor goroutine per Log instance may call this (spec.md
// §5: "HeadAddress advances monotonically under a single evictor thread per
// read-cache log instance").
func (l *Log) AdvanceHead(newHead int64) {
	if newHead <= l.headAddress.Load() {
		return
	}
	l.headAddress.Store(newHead)
	l.logger.Debug("rclog: head advanced", zap.Int64("head", newHead))
}

// ReclaimPages frees every page lying entirely below safeAddress. Callers
// must have already confirmed, via internal/epoch, that no participant
// holds an epoch old enough to still observe an address below safeAddress.
func (l *Log) ReclaimPages(safeAddress int64) {
	firstPage := l.reclaimedUpTo &^ l.pageMask
	endPage := safeAddress &^ l.pageMask
	for p := firstPage; p < endPage; p += l.pageSize {
		idx := l.pageIndex(p)
		if pg := l.pages[idx]; pg != nil {
			pg.ar.Free()
			l.pages[idx] = nil
		}
	}
	if safeAddress > l.reclaimedUpTo {
		l.reclaimedUpTo = safeAddress
	}
}
