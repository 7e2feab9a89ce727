package mainlog

// badgerstore.go adapts the teacher's disk-eject second-level-store idiom
// (an eject callback writing to Badger, a loader reading it back) into a
// mainlog.DiskStore: the durable tier a record "escapes" to once the main
// log's HeadAddress advances past it (spec.md §4.7(a)'s RECORD_ON_DISK
// branch). cmd/readcache-bench's "diskescape" mode wires this concrete
// store; Log itself only depends on the DiskStore interface.
//
// © 2025 faster-readcache authors. MIT License.

import (
	badger "github.com/dgraph-io/badger/v4"
)

// BadgerDiskStore backs evicted main-log records with a Badger instance, the
// same embedded KV engine the teacher's disk_eject demo uses for its L2
// tier.
type BadgerDiskStore struct {
	db *badger.DB
}

// NewBadgerDiskStore wraps an already-opened Badger handle. Callers own the
// handle's lifecycle (Close it when done).
func NewBadgerDiskStore(db *badger.DB) *BadgerDiskStore {
	return &BadgerDiskStore{db: db}
}

// Put persists key/value, simulating a record escaping to disk as the main
// log's HeadAddress advances past it.
func (s *BadgerDiskStore) Put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Get implements mainlog.DiskStore.
func (s *BadgerDiskStore) Get(key []byte) (value []byte, ok bool) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(b []byte) error {
			value = append([]byte(nil), b...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return value, true
}
