// Package readcache is the public entry point for the read-cache engine:
// the lookup, splice, post-insert verification, and eviction algorithms of
// spec.md §4, wired against a caller-supplied main log and an owned
// internal/rclog.Log + internal/hashindex.Table.
//
// © 2025 faster-readcache authors. MIT License.
package readcache

import (
	"bytes"
	"sync"

	"go.uber.org/zap"

	"github.com/Voskan/faster-readcache/internal/addrword"
	"github.com/Voskan/faster-readcache/internal/chainwalker"
	"github.com/Voskan/faster-readcache/internal/epoch"
	"github.com/Voskan/faster-readcache/internal/evictor"
	"github.com/Voskan/faster-readcache/internal/hashindex"
	"github.com/Voskan/faster-readcache/internal/rclog"
	"github.com/Voskan/faster-readcache/internal/recordinfo"
)

// Engine is the read-cache subsystem described by spec.md: chain lookup,
// splice, post-insert verification, and eviction, layered over a bucket
// table and an owned circular read-cache log.
type Engine struct {
	cfg *config

	rc      *rclog.Log
	idx     *hashindex.Table
	walker  *chainwalker.Walker
	epochs  *epoch.Table
	evictor *evictor.Evictor
	metrics metricsSink
	logger  *zap.Logger

	// participants pools one epoch.Participant per concurrently-active
	// caller instead of registering a fresh one on every lookup, which
	// would grow internal/epoch.Table's bookkeeping without bound.
	participants sync.Pool
}

// New constructs an Engine with numBuckets hash-index slots. WithMainLog is
// required; every other option has a spec.md §6-derived default.
func New(numBuckets int, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	idx := hashindex.NewTable(numBuckets)
	var rc *rclog.Log
	if cfg.enabled {
		rc = rclog.New(cfg.pageSize, cfg.memorySize, cfg.logger)
	} else {
		// The log is still created, at its minimum size (two 4 KiB
		// pages). Nothing else in the engine reads cfg.enabled: TryInsert
		// still inserts into this log and bucket heads then point into it
		// as in an enabled engine.
		rc = rclog.New(1<<12, 1<<12, cfg.logger)
	}

	epochs := epoch.NewTable()
	e := &Engine{
		cfg:     cfg,
		rc:      rc,
		idx:     idx,
		walker:  chainwalker.New(rc, cfg.hlog),
		epochs:  epochs,
		metrics: newMetricsSink(cfg.registry),
		logger:  cfg.logger,
	}
	e.participants.New = func() any { return epochs.Register() }

	// The engine always owns one internal/evictor.Evictor so Sweep is
	// available for a manual, caller-driven eviction pass even when no cron
	// schedule is configured; WithEvictionCron only decides whether it also
	// runs unattended in the background (spec.md §5: a single evictor
	// thread per read-cache log instance).
	ev, err := evictor.New(e, cfg.evictionCron, cfg.secondChanceFraction, cfg.logger)
	if err != nil {
		return nil, err
	}
	e.evictor = ev
	ev.Start()
	return e, nil
}

// Close stops the background eviction schedule, if one was configured via
// WithEvictionCron, waiting for any in-flight sweep to finish.
func (e *Engine) Close() {
	e.evictor.Stop()
}

// Sweep manually triggers one eviction pass: unlinking the oldest page-aligned
// slice of read-cache records (sized by WithSecondChanceFraction, at least
// one page) from their hash chains, advancing HeadAddress
// past them, and reclaiming any earlier page range whose epoch has since
// drained. The background schedule configured by WithEvictionCron calls this
// on its own cadence; tests and callers without a cron schedule can call it
// directly.
func (e *Engine) Sweep() { e.evictor.Sweep() }

// withEpoch runs fn with an epoch participant acquired for its duration,
// pooling participants across calls rather than registering a fresh one
// every time (internal/epoch.Table never shrinks its participant list).
func (e *Engine) withEpoch(fn func()) {
	p := e.participants.Get().(*epoch.Participant)
	p.Acquire()
	fn()
	p.Release()
	e.participants.Put(p)
}

// HashBytes computes key's hash with the engine's own table-seeded hasher
// (spec.md §6: EqualityComparer.GetHashCode64). Exposed so callers that need
// to key off a bucket identity — e.g. PendingReadResolver's singleflight
// group — don't need their own hasher.
func (e *Engine) HashBytes(key []byte) uint64 { return e.idx.HashBytes(key) }

// Bucket looks up the hash-index entry for key, computing its hash with the
// engine's own table-seeded hasher (spec.md §6: EqualityComparer.GetHashCode64).
func (e *Engine) Bucket(key []byte) hashindex.HashEntryInfo {
	return e.idx.FindTag(e.HashBytes(key))
}

// FindInReadCache implements spec.md §4.4.
func (e *Engine) FindInReadCache(bucket hashindex.HashEntryInfo, key []byte, minAddress addrword.Address, alwaysFindLatestLA bool) (chainwalker.StackContext, bool) {
	var ctx chainwalker.StackContext
	e.withEpoch(func() {
		ctx = e.walker.FindInReadCache(bucket.Address(), minAddress, key, alwaysFindLatestLA)
	})
	hit := ctx.PhysicalAddress != nil
	if hit {
		e.metrics.incHit()
	} else {
		e.metrics.incMiss()
	}
	return ctx, hit
}

// SkipReadCache implements spec.md §4.5.
func (e *Engine) SkipReadCache(bucket hashindex.HashEntryInfo) chainwalker.StackContext {
	var ctx chainwalker.StackContext
	e.withEpoch(func() {
		ctx = e.walker.SkipReadCache(bucket.Address())
	})
	return ctx
}

// TryInsert implements the "Born" lifecycle of spec.md §3: allocates a new
// read-cache record with PreviousAddress set to the bucket's current head,
// writes key/value, and CASes the bucket to point at it. This is the
// pending-read completion path from spec.md §2's data flow (scenario 1 in
// §8): a reader that missed in memory and fetched from the main log/disk
// inserts its result here.
func (e *Engine) TryInsert(bucket hashindex.HashEntryInfo, key, value []byte) (addrword.Address, OperationStatus) {
	size := recordAllocSize(len(key), len(value))
	addr := e.rc.TryAllocate(size)
	switch {
	case addr == 0:
		e.metrics.incAllocateFailed()
		return addrword.KInvalidAddress, StatusAllocateFailed
	case addr < 0:
		return addrword.KInvalidAddress, StatusRetryLater
	}

	prev := bucket.Address()
	e.rc.Allocate(addr, prev, key, value)
	rcAddr := addrword.New(uint64(addr), true)

	if !bucket.TryCAS(rcAddr) {
		e.AbandonRecord(addr)
		return addrword.KInvalidAddress, StatusRetryLater
	}
	return rcAddr, StatusSuccess
}

// AbandonRecord implements spec.md §4.8: marks a record whose chain-CAS lost
// Invalid and detaches it (PreviousAddress = kTempInvalidAddress) so the
// evictor performs no chain maintenance on it.
func (e *Engine) AbandonRecord(addr int64) {
	info := e.rc.GetInfo(addr)
	info.SetInvalid()
	for {
		prev := info.PreviousAddress()
		if prev == addrword.KTempInvalidAddress {
			return
		}
		if info.TryUpdateAddress(prev, addrword.KTempInvalidAddress) {
			return
		}
	}
}

// SpliceAtBoundary implements spec.md §4.6: CASes the splice point's
// PreviousAddress from the observed main-log head to newMainLogAddress.
// Preconditions (checked): the splice-point address has not been evicted,
// and it still points at ctx.LatestLogicalAddress.
func (e *Engine) SpliceAtBoundary(ctx chainwalker.StackContext, newMainLogAddress addrword.Address) bool {
	if ctx.LowestReadCachePhysicalAddress == nil {
		return false
	}
	if int64(addrword.AbsoluteAddress(ctx.LowestReadCacheLogicalAddress)) < e.rc.HeadAddress() {
		return false
	}
	ok := ctx.LowestReadCachePhysicalAddress.TryUpdateAddress(ctx.LatestLogicalAddress, newMainLogAddress)
	if ok {
		e.metrics.incSplice()
	}
	return ok
}

// EnsureNoNewMainLogRecordWasSpliced implements spec.md §4.7(a).
// spliceInfo is the record whose PreviousAddress was CAS'd (the splice
// point, or the main-log record itself when there was no read-cache
// prefix); untilLogicalAddress is the main-log address observed at the
// splice point before the caller's insert won its CAS.
func (e *Engine) EnsureNoNewMainLogRecordWasSpliced(key []byte, spliceInfo *recordinfo.RecordInfo, untilLogicalAddress addrword.Address) OperationStatus {
	cur := spliceInfo.PreviousAddress()
	if addrword.AbsoluteAddress(cur) <= addrword.AbsoluteAddress(untilLogicalAddress) {
		return StatusSuccess
	}

	hlogHead := e.cfg.hlog.HeadAddress()
	for addrword.AbsoluteAddress(cur) > addrword.AbsoluteAddress(untilLogicalAddress) {
		abs := int64(addrword.AbsoluteAddress(cur))
		if abs < hlogHead {
			e.metrics.incRecordOnDisk()
			return StatusRecordOnDisk
		}
		info := e.cfg.hlog.GetInfo(abs)
		if bytes.Equal(e.cfg.hlog.GetKey(abs), key) {
			return StatusRecordExists
		}
		cur = info.PreviousAddress()
	}
	return StatusSuccess
}

// CheckTailAfterSplice implements spec.md §4.7(b): after an updater's
// main-log CAS succeeds, walks the bucket's current head down to (excluding)
// observedPosition looking for a concurrently-inserted read-cache record for
// key. If found, it transfers shared locks onto newInfo and invalidates the
// read-cache record.
func (e *Engine) CheckTailAfterSplice(key []byte, newInfo *recordinfo.RecordInfo, bucket hashindex.HashEntryInfo, observedPosition addrword.Address) bool {
	cur := bucket.Refresh().Address()
	for addrword.IsReadCache(cur) && cur != observedPosition {
		abs := int64(addrword.AbsoluteAddress(cur))
		if abs < e.rc.HeadAddress() {
			return false
		}
		info := e.rc.GetInfo(abs)
		if !info.IsInvalid() && bytes.Equal(e.rc.GetKey(abs), key) {
			newInfo.CopyReadLocksFromAndMarkSourceAtomic(info, false)
			return true
		}
		cur = info.PreviousAddress()
	}
	return false
}

// Evict implements spec.md §4.9 over the half-open range [rcFrom, rcTo).
// Returns the number of records unlinked.
func (e *Engine) Evict(rcFrom, rcTo int64) int {
	evicted := 0
	addr := rcFrom
	for addr < rcTo {
		if e.rc.IsNull(addr) {
			addr = nextPageBoundary(addr, e.rc.PageSize())
			continue
		}
		info := e.rc.GetInfo(addr)
		size := e.rc.GetRecordSize(addr)
		if addrword.IsTempInvalid(info.PreviousAddress()) {
			// Abandoned by AbandonRecord: never linked into any chain, so
			// there is nothing to unlink it from.
			addr += size
			continue
		}
		key := e.rc.GetKey(addr)
		hash := e.idx.HashBytes(key)
		if e.unlinkFromChain(addr, hash, rcTo) {
			evicted++
		}
		addr += size
	}
	if evicted > 0 {
		e.metrics.incEvict(evicted)
	}
	return evicted
}

// unlinkFromChain walks the bucket's chain for hash looking for the
// read-cache record at address la and splices it out, per spec.md §4.9
// step 3-4: the link immediately above la (the bucket head itself, or
// whichever record's PreviousAddress names la) is CAS'd to la's own
// PreviousAddress, then la is marked detached.
func (e *Engine) unlinkFromChain(la int64, hash uint64, rcTo int64) bool {
	bucket := e.idx.FindTag(hash)
	for {
		cur := bucket.Address()
		if !addrword.IsReadCache(cur) {
			return false // la already spliced out by a concurrent pass
		}

		// linkAddr/linkInfo is the record whose PreviousAddress currently
		// names la; linkIsHead tracks whether that link is the bucket slot
		// itself rather than another record's header.
		linkIsHead := true
		var linkInfo *recordinfo.RecordInfo
		var linkObserved addrword.Address

		for {
			abs := int64(addrword.AbsoluteAddress(cur))
			if abs == la {
				break
			}
			if abs < e.rc.HeadAddress() {
				return false // la already evicted past, and unreachable now
			}
			info := e.rc.GetInfo(abs)
			next := info.PreviousAddress()
			linkIsHead = false
			linkInfo = info
			linkObserved = next
			cur = next
			if !addrword.IsReadCache(cur) {
				return false // reached the main log without finding la
			}
		}

		laInfo := e.rc.GetInfo(la)
		newPrev := laInfo.PreviousAddress()

		var relinked bool
		if linkIsHead {
			relinked = bucket.TryCAS(newPrev)
		} else {
			relinked = linkInfo.TryUpdateAddress(linkObserved, newPrev)
		}
		if !relinked {
			bucket = bucket.Refresh()
			continue
		}
		laInfo.TryUpdateAddress(newPrev, addrword.KTempInvalidAddress)
		return true
	}
}

// FlattenBucketForCheckpoint implements spec.md §4.10: returns, for every
// bucket, the first main-log address reachable by following PreviousAddress
// through the read-cache prefix. The live hash table is not modified.
func (e *Engine) FlattenBucketForCheckpoint() []addrword.Address {
	heads := e.idx.Heads()
	out := make([]addrword.Address, len(heads))
	for i, head := range heads {
		cur := head
		for addrword.IsReadCache(cur) {
			abs := int64(addrword.AbsoluteAddress(cur))
			if abs < e.rc.HeadAddress() {
				cur = addrword.KInvalidAddress
				break
			}
			cur = e.rc.GetInfo(abs).PreviousAddress()
		}
		out[i] = cur
	}
	return out
}

// HeadAddress/TailAddress expose the owned read-cache log's frontiers, for
// the evictor and metrics.
func (e *Engine) HeadAddress() int64 { return e.rc.HeadAddress() }
func (e *Engine) TailAddress() int64 { return e.rc.TailAddress() }
func (e *Engine) PageSize() int64    { return e.rc.PageSize() }

// AdvanceHead moves the read-cache eviction frontier forward after Evict has
// unlinked the retiring range (spec.md §5: single evictor thread owns this).
func (e *Engine) AdvanceHead(newHead int64) { e.rc.AdvanceHead(newHead) }

// RefreshMetrics publishes the current head/tail gauges. The evictor calls
// this after every sweep; physical page reclamation itself goes through
// RCLog().ReclaimPages, gated on Epochs().DrainedEpoch(), since freeing
// memory is an address-range operation the epoch counter alone can't drive.
func (e *Engine) RefreshMetrics() {
	e.metrics.setHeadAddress(e.rc.HeadAddress())
	e.metrics.setTailAddress(e.rc.TailAddress())
}

// Epochs exposes the engine's epoch table so internal/evictor can register
// its own participant and stamp eviction sweeps with a drain-able epoch.
func (e *Engine) Epochs() *epoch.Table { return e.epochs }

// RCLog exposes the owned read-cache log for the evictor's page reclamation
// step. Not part of the chain-walking API surface.
func (e *Engine) RCLog() *rclog.Log { return e.rc }

// ValueAt reads the value bytes stored at a logical address returned by
// FindInReadCache/SkipReadCache, dispatching to the read-cache log or the
// caller's main log depending on the address's read-cache bit.
func (e *Engine) ValueAt(addr addrword.Address) []byte {
	abs := int64(addrword.AbsoluteAddress(addr))
	if addrword.IsReadCache(addr) {
		return e.rc.GetValue(abs)
	}
	return e.cfg.hlog.GetValue(abs)
}

func recordAllocSize(keyLen, valueLen int) int64 {
	return int64(8 + 4 + keyLen + 4 + valueLen)
}

func nextPageBoundary(addr, pageSize int64) int64 {
	return (addr/pageSize + 1) * pageSize
}
