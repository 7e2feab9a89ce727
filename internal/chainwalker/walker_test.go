package chainwalker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Voskan/faster-readcache/internal/addrword"
	"github.com/Voskan/faster-readcache/internal/recordinfo"
)

// fakeRecord is one slot in a fakeLog.
type fakeRecord struct {
	info *recordinfo.RecordInfo
	key  []byte
	val  []byte
}

// fakeLog is a trivial address-indexed store satisfying both ReadCacheLogReader
// and MainLog, letting the chain-walk algorithms be tested without a real
// arena-backed rclog.Log or mainlog.Log.
type fakeLog struct {
	head    int64
	tail    int64
	records map[int64]*fakeRecord
}

func newFakeLog() *fakeLog {
	return &fakeLog{records: make(map[int64]*fakeRecord)}
}

func (f *fakeLog) put(addr int64, prev addrword.Address, key, val []byte) *recordinfo.RecordInfo {
	info := &recordinfo.RecordInfo{}
	info.Init(prev)
	f.records[addr] = &fakeRecord{info: info, key: key, val: val}
	if addr+1 > f.tail {
		f.tail = addr + 1
	}
	return info
}

func (f *fakeLog) HeadAddress() int64    { return f.head }
func (f *fakeLog) BeginAddress() int64   { return 0 }
func (f *fakeLog) TailAddress() int64    { return f.tail }
func (f *fakeLog) TryAllocate(int64) int64 { return f.tail }
func (f *fakeLog) GetInfo(addr int64) *recordinfo.RecordInfo { return f.records[addr].info }
func (f *fakeLog) GetKey(addr int64) []byte                  { return f.records[addr].key }
func (f *fakeLog) GetValue(addr int64) []byte                { return f.records[addr].val }
func (f *fakeLog) GetRecordSize(int64) int64                 { return 1 }

func TestFindInReadCacheHitsLatestRecord(t *testing.T) {
	rc := newFakeLog()
	hlog := newFakeLog()
	w := New(rc, hlog)

	// chain: rc[2] -(key "a")-> rc[1] -(key "a", older)-> main[0]
	rc.put(1, addrword.New(0, false), []byte("a"), []byte("old"))
	rcHead := addrword.New(1, true)
	rc.put(2, rcHead, []byte("a"), []byte("new"))
	bucketHead := addrword.New(2, true)

	ctx := w.FindInReadCache(bucketHead, addrword.KInvalidAddress, []byte("a"), false)
	require.NotNil(t, ctx.PhysicalAddress, "expected a hit")
	assert.Equal(t, []byte("new"), rc.GetValue(int64(addrword.AbsoluteAddress(ctx.LogicalAddress))))
}

func TestFindInReadCacheMissFallsThroughToMainLog(t *testing.T) {
	rc := newFakeLog()
	hlog := newFakeLog()
	w := New(rc, hlog)

	rc.put(1, addrword.New(5, false), []byte("a"), []byte("v"))
	bucketHead := addrword.New(1, true)

	ctx := w.FindInReadCache(bucketHead, addrword.KInvalidAddress, []byte("not-present"), false)
	assert.Nil(t, ctx.PhysicalAddress)
	assert.Equal(t, addrword.New(5, false), ctx.LatestLogicalAddress)
}

func TestSkipReadCacheReachesMainLog(t *testing.T) {
	rc := newFakeLog()
	hlog := newFakeLog()
	w := New(rc, hlog)

	mainAddr := addrword.New(7, false)
	rc.put(1, mainAddr, []byte("a"), []byte("v"))
	bucketHead := addrword.New(1, true)

	ctx := w.SkipReadCache(bucketHead)
	assert.Equal(t, mainAddr, ctx.LatestLogicalAddress)
	assert.Equal(t, addrword.New(1, true), ctx.LowestReadCacheLogicalAddress)
	assert.False(t, ctx.DidRefresh)
}

func TestSkipReadCacheOnPureMainLogChain(t *testing.T) {
	rc := newFakeLog()
	hlog := newFakeLog()
	w := New(rc, hlog)

	mainAddr := addrword.New(3, false)
	ctx := w.SkipReadCache(mainAddr)
	assert.Equal(t, mainAddr, ctx.LatestLogicalAddress)
	assert.Nil(t, ctx.LowestReadCachePhysicalAddress)
}
