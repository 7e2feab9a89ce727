// Package evictor drives the read cache's single background eviction thread
// (spec.md §5: "HeadAddress advances monotonically under a single evictor
// thread per read-cache log instance"). It schedules sweeps with
// github.com/robfig/cron/v3 rather than a bare ticker, so operators can
// shape eviction cadence the same way the teacher's Cache exposes
// cron-driven maintenance windows.
//
// A sweep has three steps: unlink the oldest page-aligned slice of read-cache
// records (at least one page) from their hash chains (pkg/readcache.Engine.Evict), advance the log's
// HeadAddress past them, then ask internal/epoch whether every participant
// that might still observe the retired range has since released its epoch
// before physically freeing the page.
//
// © 2025 faster-readcache authors. MIT License.
package evictor

import (
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Voskan/faster-readcache/internal/epoch"
	"github.com/Voskan/faster-readcache/internal/rclog"
)

// Engine is the subset of pkg/readcache.Engine the evictor drives.
type Engine interface {
	HeadAddress() int64
	TailAddress() int64
	PageSize() int64
	Evict(rcFrom, rcTo int64) int
	AdvanceHead(newHead int64)
	Epochs() *epoch.Table
	RCLog() *rclog.Log
	RefreshMetrics()
}

// Evictor owns a cron schedule that periodically retires the oldest slice of
// the read cache's accumulated backlog.
type Evictor struct {
	eng                  Engine
	cron                 *cron.Cron
	logger               *zap.Logger
	secondChanceFraction float64

	mu          sync.Mutex
	pendingFree []pendingRange
	participant *epoch.Participant
}

// pendingRange is a retired [from, to) address span waiting for its stamped
// epoch to drain before the backing pages can be freed.
type pendingRange struct {
	from, to int64
	epoch    uint64
}

// New constructs an Evictor. expr is a standard 5-field cron expression
// (e.g. "*/1 * * * *" for once a minute); an empty expr disables the
// schedule and leaves Sweep available for manual/test-driven calls.
// secondChanceFraction is spec.md §6's ReadCacheSecondChanceFraction; it
// sets the share of each sweep's accumulated backlog, oldest first, that the
// sweep retires (see Sweep).
func New(eng Engine, expr string, secondChanceFraction float64, logger *zap.Logger) (*Evictor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ev := &Evictor{
		eng:                  eng,
		logger:               logger,
		secondChanceFraction: secondChanceFraction,
		participant:          eng.Epochs().Register(),
	}
	if expr == "" {
		return ev, nil
	}
	c := cron.New()
	if _, err := c.AddFunc(expr, ev.Sweep); err != nil {
		return nil, err
	}
	ev.cron = c
	return ev, nil
}

// Start begins the cron schedule, if one was configured.
func (ev *Evictor) Start() {
	if ev.cron != nil {
		ev.cron.Start()
	}
}

// Stop halts the cron schedule and waits for any in-flight sweep to finish.
func (ev *Evictor) Stop() {
	if ev.cron != nil {
		ctx := ev.cron.Stop()
		<-ctx.Done()
	}
}

// Sweep retires the oldest slice of the accumulated [HeadAddress, TailAddress)
// backlog, unlinking its chain entries, advancing HeadAddress, and freeing
// any earlier pending range whose stamped epoch has since drained.
//
// secondChanceFraction (spec.md §6) sizes the pass: it retires the oldest
// secondChanceFraction*backlog bytes, clamped down to a page boundary, never
// less than one page and never more than the page-aligned backlog. The newer
// remainder, closest to the tail, is left for a later sweep. A fraction of 0
// retires exactly one page per sweep.
func (ev *Evictor) Sweep() {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	ev.participant.Acquire()
	defer ev.participant.Release()

	head := ev.eng.HeadAddress()
	tail := ev.eng.TailAddress()
	pageSize := ev.eng.PageSize()
	backlog := tail - head
	if backlog < pageSize {
		return // less than a full page accumulated; wait for more writes
	}

	span := int64(float64(backlog) * ev.secondChanceFraction)
	span -= span % pageSize // clamp down to a page boundary
	if span < pageSize {
		span = pageSize // always retire at least one page
	}
	if maxSpan := backlog - backlog%pageSize; span > maxSpan {
		span = maxSpan
	}
	to := head + span

	n := ev.eng.Evict(head, to)
	ev.eng.AdvanceHead(to)
	ev.logger.Debug("evictor: swept page", zap.Int64("from", head), zap.Int64("to", to), zap.Int("unlinked", n))

	stamp := ev.eng.Epochs().BumpGlobal()
	ev.pendingFree = append(ev.pendingFree, pendingRange{from: head, to: to, epoch: stamp})
	ev.drainPending()
	ev.eng.RefreshMetrics()
}

// drainPending frees every pending range whose stamped epoch is now older
// than the table's drained epoch. Callers must hold ev.mu.
func (ev *Evictor) drainPending() {
	drained := ev.eng.Epochs().DrainedEpoch()
	kept := ev.pendingFree[:0]
	for _, r := range ev.pendingFree {
		if r.epoch <= drained {
			ev.eng.RCLog().ReclaimPages(r.to)
			ev.logger.Debug("evictor: reclaimed page range", zap.Int64("from", r.from), zap.Int64("to", r.to))
			continue
		}
		kept = append(kept, r)
	}
	ev.pendingFree = kept
}
