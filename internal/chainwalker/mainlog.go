// Package chainwalker implements the traversal primitives shared by every
// read-cache operation: following PreviousAddress across the read-cache
// prefix and into the main-log suffix of a hash chain (spec.md §4.4/§4.5).
//
// Per spec.md §9 ("Polymorphism over log kind"), FindInReadCache and
// SkipReadCache walk a single chain spanning two log instances distinguished
// by one address bit; this package exposes one walk-step operation
// parameterised over which log the current address selects, rather than
// duplicating traversal code per log kind.
//
// © 2025 faster-readcache authors. MIT License.
package chainwalker

import "github.com/Voskan/faster-readcache/internal/recordinfo"

// MainLog is the main-log allocator's contract as consumed by this package
// (spec.md §6). It is an external collaborator — out of scope for this
// module's implementation — so only the operations the chain walker and
// engine need are declared here.
type MainLog interface {
	// TryAllocate reserves size bytes at the tail: >0 success, 0
	// flush-required, <0 retry-later.
	TryAllocate(size int64) int64
	HeadAddress() int64
	BeginAddress() int64
	TailAddress() int64
	GetInfo(logical int64) *recordinfo.RecordInfo
	GetKey(logical int64) []byte
	GetValue(logical int64) []byte
	GetRecordSize(logical int64) int64
}

// ReadCacheLogReader is the subset of internal/rclog.Log the walker needs.
// Declaring it here (rather than importing rclog directly) keeps the walker
// testable against a fake in unit tests without pulling in the arena build
// tag.
type ReadCacheLogReader interface {
	HeadAddress() int64
	GetInfo(logical int64) *recordinfo.RecordInfo
	GetKey(logical int64) []byte
}
