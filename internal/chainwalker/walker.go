package chainwalker

import (
	"bytes"
	"runtime"
	"time"

	"github.com/Voskan/faster-readcache/internal/addrword"
	"github.com/Voskan/faster-readcache/internal/recordinfo"
)

// StackContext carries the state a caller accumulates while walking a chain,
// matching the fields spec.md §4.4 names explicitly.
type StackContext struct {
	// LatestLogicalAddress is the first non-read-cache address reached: the
	// top of the main-log suffix.
	LatestLogicalAddress addrword.Address

	// LowestReadCacheLogicalAddress / LowestReadCachePhysicalAddress is the
	// last read-cache record visited — the splice-point candidate.
	LowestReadCacheLogicalAddress  addrword.Address
	LowestReadCachePhysicalAddress *recordinfo.RecordInfo

	// LogicalAddress / PhysicalAddress of the matched record, set only when
	// a lookup (FindInReadCache) finds a hit.
	LogicalAddress  addrword.Address
	PhysicalAddress *recordinfo.RecordInfo

	// DidRefresh reports whether the walk had to wait out an eviction and
	// restart from the bucket head (spec.md §4.5): callers performing
	// updates must re-verify any pre-computed state when this is true.
	DidRefresh bool
}

// Walker holds the two logs a chain spans and performs the shared traversal.
type Walker struct {
	RC   ReadCacheLogReader
	HLog MainLog
}

// New constructs a Walker over the given read-cache and main-log instances.
func New(rc ReadCacheLogReader, hlog MainLog) *Walker {
	return &Walker{RC: rc, HLog: hlog}
}

// resolveMinAddress applies spec.md §4.4's default: minAddress defaults to
// readcache.HeadAddress when the caller passes an evicted or non-read-cache
// value.
func (w *Walker) resolveMinAddress(minAddress addrword.Address) addrword.Address {
	head := w.RC.HeadAddress()
	if !addrword.IsReadCache(minAddress) || int64(addrword.AbsoluteAddress(minAddress)) < head {
		return addrword.New(uint64(head), true)
	}
	return minAddress
}

// FindInReadCache implements spec.md §4.4: walks the read-cache prefix of
// the chain rooted at bucketHead looking for key, honouring minAddress and
// alwaysFindLatestLA.
func (w *Walker) FindInReadCache(bucketHead addrword.Address, minAddress addrword.Address, key []byte, alwaysFindLatestLA bool) StackContext {
	minAddress = w.resolveMinAddress(minAddress)

	for {
		ctx := StackContext{}
		cur := bucketHead
		hit := false

		if !addrword.IsReadCache(cur) {
			ctx.LatestLogicalAddress = cur
			return ctx
		}

		restart := false
		for addrword.IsReadCache(cur) {
			abs := int64(addrword.AbsoluteAddress(cur))
			if abs < w.RC.HeadAddress() {
				w.spinWaitUntilClosed(cur)
				restart = true
				break
			}
			info := w.RC.GetInfo(abs)
			ctx.LowestReadCacheLogicalAddress = cur
			ctx.LowestReadCachePhysicalAddress = info

			if !hit && !info.IsInvalid() && addrword.AbsoluteAddress(cur) >= addrword.AbsoluteAddress(minAddress) {
				if bytes.Equal(w.RC.GetKey(abs), key) {
					hit = true
					ctx.LogicalAddress = cur
					ctx.PhysicalAddress = info
					if !alwaysFindLatestLA {
						return ctx
					}
				}
			}
			cur = info.PreviousAddress()
		}
		if restart {
			continue
		}
		ctx.LatestLogicalAddress = cur
		return ctx
	}
}

// SkipReadCache implements spec.md §4.5: walks the chain to the first
// main-log address without comparing keys, used by updaters. DidRefresh
// reports whether an eviction wait forced a restart.
func (w *Walker) SkipReadCache(bucketHead addrword.Address) StackContext {
	didRefresh := false
	for {
		ctx := StackContext{}
		cur := bucketHead
		restart := false

		for addrword.IsReadCache(cur) {
			abs := int64(addrword.AbsoluteAddress(cur))
			if abs < w.RC.HeadAddress() {
				w.spinWaitUntilClosed(cur)
				didRefresh = true
				restart = true
				break
			}
			info := w.RC.GetInfo(abs)
			ctx.LowestReadCacheLogicalAddress = cur
			ctx.LowestReadCachePhysicalAddress = info
			cur = info.PreviousAddress()
		}
		if restart {
			continue
		}
		ctx.LatestLogicalAddress = cur
		ctx.DidRefresh = didRefresh
		return ctx
	}
}

// spinWaitUntilClosed blocks until the record at addr — known to lie below
// the read-cache's current HeadAddress — is observably closed (Invalid or
// detached), per spec.md §5's sole cooperative wait point. The evictor is
// guaranteed to close every record in a range before advancing HeadAddress
// past it, so this loop terminates without external signalling.
func (w *Walker) spinWaitUntilClosed(addr addrword.Address) {
	abs := int64(addrword.AbsoluteAddress(addr))
	info := w.RC.GetInfo(abs)
	spins := 0
	for !info.IsInvalid() && !addrword.IsTempInvalid(info.PreviousAddress()) {
		spins++
		if spins < 64 {
			runtime.Gosched()
		} else {
			time.Sleep(time.Microsecond)
		}
	}
}
