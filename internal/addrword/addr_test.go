package addrword

import "testing"

func TestNewRoundTrip(t *testing.T) {
	cases := []struct {
		absolute  uint64
		readCache bool
	}{
		{0, false},
		{1, true},
		{1 << 40, false},
		{1 << 40, true},
		{uint64(kAbsoluteAddressMask), true},
	}
	for _, c := range cases {
		w := New(c.absolute, c.readCache)
		if got := AbsoluteAddress(w); got != c.absolute {
			t.Errorf("New(%d,%v): AbsoluteAddress = %d, want %d", c.absolute, c.readCache, got, c.absolute)
		}
		if got := IsReadCache(w); got != c.readCache {
			t.Errorf("New(%d,%v): IsReadCache = %v, want %v", c.absolute, c.readCache, got, c.readCache)
		}
	}
}

func TestSentinels(t *testing.T) {
	if !IsInvalid(KInvalidAddress) {
		t.Error("KInvalidAddress must report IsInvalid")
	}
	if IsInvalid(KTempInvalidAddress) {
		t.Error("KTempInvalidAddress must not report IsInvalid")
	}
	if !IsTempInvalid(KTempInvalidAddress) {
		t.Error("KTempInvalidAddress must report IsTempInvalid")
	}
	if IsTempInvalid(KInvalidAddress) {
		t.Error("KInvalidAddress must not report IsTempInvalid")
	}
	if KTempInvalidAddress == KInvalidAddress {
		t.Error("KTempInvalidAddress and KInvalidAddress must not collide")
	}
}

func TestLess(t *testing.T) {
	a := New(10, false)
	b := New(20, true) // read-cache flag must not affect ordering
	if !Less(a, b) {
		t.Error("Less should compare absolute offsets, ignoring the read-cache bit")
	}
	if Less(b, a) {
		t.Error("Less(b, a) should be false when b has the larger absolute offset")
	}
}
