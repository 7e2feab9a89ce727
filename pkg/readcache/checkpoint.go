package readcache

// checkpoint.go implements the read-cache side of a checkpoint: flattening
// every bucket to its first main-log address (spec.md §4.10) and stamping
// the resulting snapshot with a unique token so a recovering process can
// tell which checkpoint a given flattened index belongs to.
//
// © 2025 faster-readcache authors. MIT License.

import (
	"time"

	"github.com/google/uuid"

	"github.com/Voskan/faster-readcache/internal/addrword"
)

// Checkpoint is a point-in-time snapshot of the hash index with every
// read-cache prefix resolved down to a main-log address. It carries no
// read-cache state of its own: after a checkpoint, the read cache can be
// dropped and rebuilt from empty without affecting correctness, since every
// entry here already names a durable main-log address.
type Checkpoint struct {
	Token     uuid.UUID
	TakenAt   time.Time
	Addresses []addrword.Address
}

// Checkpoint flattens the engine's hash index and returns a tagged snapshot
// suitable for persisting alongside a main-log checkpoint. Checkpoint does
// not pause inserts or evictions: spec.md §4.10 only requires that every
// returned address be a main-log address observed at some point during the
// call, not a globally consistent cut.
func (e *Engine) Checkpoint() Checkpoint {
	return Checkpoint{
		Token:     uuid.New(),
		TakenAt:   time.Now(),
		Addresses: e.FlattenBucketForCheckpoint(),
	}
}
