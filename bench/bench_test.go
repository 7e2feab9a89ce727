// Package bench provides reproducible micro-benchmarks for the read-cache
// engine, the same shape as the teacher's bench/bench_test.go: a single
// key/value size, measured with plain testing.B (no third-party assertion
// helpers on the hot path).
//
// Run via: go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// © 2025 faster-readcache authors. MIT License.
package bench

import (
	"fmt"
	"testing"

	"github.com/Voskan/faster-readcache/internal/mainlog"
	"github.com/Voskan/faster-readcache/pkg/readcache"
)

func newBenchEngine(b *testing.B) (*readcache.Engine, *mainlog.Log) {
	b.Helper()
	hlog := mainlog.New(nil)
	eng, err := readcache.New(1<<16, readcache.WithMainLog(hlog), readcache.WithPageSize(1<<20), readcache.WithMemorySize(1<<26))
	if err != nil {
		b.Fatalf("readcache.New: %v", err)
	}
	return eng, hlog
}

// BenchmarkTryInsert measures the "born" lifecycle path: allocate a
// read-cache record and CAS it onto a fresh bucket.
func BenchmarkTryInsert(b *testing.B) {
	eng, _ := newBenchEngine(b)
	keys := make([][]byte, b.N)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%d", i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bucket := eng.Bucket(keys[i])
		eng.TryInsert(bucket, keys[i], []byte("value"))
	}
}

// BenchmarkFindInReadCacheHit measures repeated lookups of a record already
// resident in the read cache (spec.md §8's lookup-idempotence law).
func BenchmarkFindInReadCacheHit(b *testing.B) {
	eng, _ := newBenchEngine(b)
	key := []byte("hot-key")
	bucket := eng.Bucket(key)
	if _, status := eng.TryInsert(bucket, key, []byte("value")); status != readcache.StatusSuccess {
		b.Fatalf("seed insert: %v", status)
	}
	bucket = eng.Bucket(key)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng.FindInReadCache(bucket, key, 0, false)
	}
}

// BenchmarkFindInReadCacheParallel measures concurrent lookups against a
// shared, already-populated bucket, exercising the lock-free chain walk
// under contention.
func BenchmarkFindInReadCacheParallel(b *testing.B) {
	eng, _ := newBenchEngine(b)
	key := []byte("hot-key")
	bucket := eng.Bucket(key)
	if _, status := eng.TryInsert(bucket, key, []byte("value")); status != readcache.StatusSuccess {
		b.Fatalf("seed insert: %v", status)
	}
	bucket = eng.Bucket(key)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			eng.FindInReadCache(bucket, key, 0, false)
		}
	})
}

// BenchmarkEvict measures unlinking a page's worth of read-cache records
// from their hash chains.
func BenchmarkEvict(b *testing.B) {
	eng, _ := newBenchEngine(b)
	for i := 0; i < 4096; i++ {
		key := []byte(fmt.Sprintf("evict-key-%d", i))
		bucket := eng.Bucket(key)
		eng.TryInsert(bucket, key, []byte("value"))
	}
	head, tail := eng.HeadAddress(), eng.TailAddress()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng.Evict(head, tail)
	}
}
