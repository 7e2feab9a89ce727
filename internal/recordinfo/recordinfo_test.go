package recordinfo

import (
	"testing"

	"github.com/Voskan/faster-readcache/internal/addrword"
)

func TestInitAndPreviousAddress(t *testing.T) {
	var r RecordInfo
	prev := addrword.New(42, true)
	r.Init(prev)

	if got := r.PreviousAddress(); got != prev {
		t.Errorf("PreviousAddress = %v, want %v", got, prev)
	}
	if r.IsInvalid() || r.IsSealed() || r.IsTombstone() {
		t.Error("freshly initialised record must have no header bits set")
	}
}

func TestTryUpdateAddressCAS(t *testing.T) {
	var r RecordInfo
	prev := addrword.New(10, true)
	r.Init(prev)

	wrongExpected := addrword.New(99, true)
	if r.TryUpdateAddress(wrongExpected, addrword.New(20, false)) {
		t.Fatal("TryUpdateAddress must fail when expectedPrev does not match")
	}

	next := addrword.New(20, false)
	if !r.TryUpdateAddress(prev, next) {
		t.Fatal("TryUpdateAddress must succeed when expectedPrev matches")
	}
	if got := r.PreviousAddress(); got != next {
		t.Errorf("PreviousAddress after update = %v, want %v", got, next)
	}
}

func TestSetInvalidIdempotent(t *testing.T) {
	var r RecordInfo
	r.Init(addrword.KInvalidAddress)
	r.SetInvalid()
	r.SetInvalid() // must not panic or toggle back off
	if !r.IsInvalid() {
		t.Error("SetInvalid must leave the Invalid bit set")
	}
}

func TestSharedLockRoundTrip(t *testing.T) {
	var r RecordInfo
	r.Init(addrword.KInvalidAddress)

	if !r.TryLockShared() {
		t.Fatal("TryLockShared should succeed on a fresh record")
	}
	if !r.TryLockShared() {
		t.Fatal("TryLockShared should allow multiple concurrent shared holders")
	}
	if got := r.SharedLockCount(); got != 2 {
		t.Errorf("SharedLockCount = %d, want 2", got)
	}
	r.UnlockShared()
	if got := r.SharedLockCount(); got != 1 {
		t.Errorf("SharedLockCount after one unlock = %d, want 1", got)
	}
}

func TestExclusiveLockExcludesShared(t *testing.T) {
	var r RecordInfo
	r.Init(addrword.KInvalidAddress)

	if !r.TryLockExclusive() {
		t.Fatal("TryLockExclusive should succeed on a fresh record")
	}
	if r.TryLockShared() {
		t.Error("TryLockShared must fail while exclusively locked")
	}
	if r.TryLockExclusive() {
		t.Error("TryLockExclusive must fail while already exclusively locked")
	}
	r.UnlockExclusive()
	if !r.TryLockShared() {
		t.Error("TryLockShared should succeed once the exclusive lock is released")
	}
}

func TestCopyReadLocksFromAndMarkSourceAtomic(t *testing.T) {
	var src, dst RecordInfo
	src.Init(addrword.KInvalidAddress)
	dst.Init(addrword.KInvalidAddress)

	src.TryLockShared()
	src.TryLockShared()
	src.TryLockShared()

	dst.CopyReadLocksFromAndMarkSourceAtomic(&src, true)

	if !src.IsInvalid() {
		t.Error("source record must be marked Invalid after lock transfer")
	}
	if got := dst.SharedLockCount(); got != 2 {
		t.Errorf("dst.SharedLockCount = %d, want 2 (3 copied minus 1 ephemeral)", got)
	}
}
