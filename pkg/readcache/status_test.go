package readcache

import "testing"

func TestOperationStatusString(t *testing.T) {
	cases := map[OperationStatus]string{
		StatusSuccess:        "SUCCESS",
		StatusRetryLater:     "RETRY_LATER",
		StatusAllocateFailed: "ALLOCATE_FAILED",
		StatusRecordOnDisk:   "RECORD_ON_DISK",
		StatusRecordExists:   "RECORD_EXISTS",
		OperationStatus(99):  "UNKNOWN",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("OperationStatus(%d).String() = %q, want %q", status, got, want)
		}
	}
}
