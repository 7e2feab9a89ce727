// Package epoch implements the minimal epoch-based reclamation protocol the
// read-cache engine relies on for safe memory reuse (spec.md §5, §9). It is
// the one piece of ambient infrastructure the spec explicitly calls out as
// external to the engine ("the epoch protector is the sole memory-reclamation
// mechanism for read-cache pages") without itself being in scope, so it is
// implemented here from first principles — no example repo in the retrieval
// pack ships an epoch-based reclamation table (see DESIGN.md).
//
// The design is the textbook "global epoch + per-thread local epoch" scheme:
// a participant Acquire()s before any chain traversal or CAS sequence,
// may Refresh() during a long-running loop to observe newer global epochs,
// and Release()s when done. The
// drained epoch — the newest epoch that every currently-registered
// participant has observed or is not in — is safe for page reclamation.
//
// © 2025 faster-readcache authors. MIT License.
package epoch

import (
	"sync"
	"sync/atomic"
)

const unprotected = 0

// Table tracks participant epochs and the current global epoch.
type Table struct {
	mu           sync.Mutex
	global       atomic.Uint64
	participants []*atomic.Uint64 // each entry: 0 means unprotected, else the local epoch
}

// NewTable constructs a Table starting at global epoch 1 (0 is reserved for
// "not currently protected").
func NewTable() *Table {
	t := &Table{}
	t.global.Store(1)
	return t
}

// Participant is a single thread's handle into the epoch table.
type Participant struct {
	table *Table
	local *atomic.Uint64
}

// Register allocates a new Participant slot. Callers typically register one
// Participant per goroutine that walks chains or runs eviction sweeps.
func (t *Table) Register() *Participant {
	t.mu.Lock()
	defer t.mu.Unlock()
	local := new(atomic.Uint64)
	t.participants = append(t.participants, local)
	return &Participant{table: t, local: local}
}

// Acquire marks the participant as protected at the current global epoch.
// Every chain traversal and CAS sequence in internal/chainwalker runs inside
// an Acquire/Release pair.
func (p *Participant) Acquire() {
	p.local.Store(p.table.global.Load())
}

// Refresh re-observes the current global epoch without releasing
// protection, so a long-running loop that calls it does not pin the drained
// epoch back indefinitely. The evictor's Sweep does not call it: it holds
// one Acquire/Release pair per sweep.
func (p *Participant) Refresh() {
	p.local.Store(p.table.global.Load())
}

// Release marks the participant unprotected.
func (p *Participant) Release() {
	p.local.Store(unprotected)
}

// BumpGlobal advances the global epoch by one and returns the new value.
// Called by the evictor before computing a drained epoch, so that
// newly-Acquire()d participants are distinguishable from ones still on the
// previous epoch.
func (t *Table) BumpGlobal() uint64 {
	return t.global.Add(1)
}

// DrainedEpoch returns the newest epoch E such that every protected
// participant has local epoch >= E. Any page retired at or before E is safe
// to reclaim: no protected participant could still hold a reference that
// predates it.
func (t *Table) DrainedEpoch() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	drained := t.global.Load()
	for _, local := range t.participants {
		v := local.Load()
		if v == unprotected {
			continue
		}
		if v < drained {
			drained = v
		}
	}
	return drained
}
