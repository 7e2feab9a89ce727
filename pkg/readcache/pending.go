package readcache

// pending.go implements the singleflight-based de-duplication layer used to
// resolve a StatusRecordOnDisk outcome: when EnsureNoNewMainLogRecordWasSpliced
// observes that a key escaped below the main log's HeadAddress (spec.md
// §4.7(a)), many concurrent readers can hit the same miss at once. Only one
// of them should pay the disk round trip; the rest wait for its result and
// share the read-cache insert, the same thundering-herd guard the teacher's
// pkg/loader.go applies to Cache.GetOrLoad.
//
// © 2025 faster-readcache authors. MIT License.

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// DiskLoader fetches a key's current value from whatever backs the main
// log's evicted range (spec.md §6's DiskStore collaborator). Implementations
// must be safe for concurrent use and should honour ctx for cancellation.
type DiskLoader func(ctx context.Context, key []byte) (value []byte, found bool, err error)

// PendingReadResolver coalesces concurrent DiskLoader calls for the same key
// hash, then installs the resolved value into the read cache exactly once.
type PendingReadResolver struct {
	g   singleflight.Group
	eng *Engine
}

// NewPendingReadResolver builds a resolver that installs results into eng.
func NewPendingReadResolver(eng *Engine) *PendingReadResolver {
	return &PendingReadResolver{eng: eng}
}

// pendingResult is the value threaded through singleflight.Group.Do, since it
// only deals in (any, error).
type pendingResult struct {
	value  []byte
	found  bool
	status OperationStatus
}

// ResolveAndInsert resolves the key's value via load at most once across all
// concurrent callers sharing the same bucketHash, then, on a hit, installs it
// into the read cache. It returns the engine's OperationStatus for the insert
// attempt (StatusRecordOnDisk is never returned here — a miss from load
// itself is reported via found=false).
func (p *PendingReadResolver) ResolveAndInsert(ctx context.Context, bucketHash uint64, key []byte, load DiskLoader) ([]byte, bool, OperationStatus, error) {
	k := strconv.FormatUint(bucketHash, 16)
	res, err, _ := p.g.Do(k, func() (any, error) {
		v, found, loadErr := load(ctx, key)
		if loadErr != nil {
			return nil, loadErr
		}
		if !found {
			return pendingResult{}, nil
		}
		_, status := p.eng.TryInsert(p.eng.Bucket(key), key, v)
		return pendingResult{value: v, found: true, status: status}, nil
	})
	if err != nil {
		return nil, false, StatusRetryLater, err
	}
	pr := res.(pendingResult)
	if !pr.found {
		return nil, false, StatusSuccess, nil
	}
	return pr.value, true, pr.status, nil
}
