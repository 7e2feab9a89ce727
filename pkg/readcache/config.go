package readcache

// config.go defines the engine's configuration object and the functional
// options used to build it — the same idiom as the teacher's
// pkg/config.go, generalised from a value cache's weight/eject knobs to the
// read-cache's page/memory/eviction knobs named in spec.md §6.
//
// © 2025 faster-readcache authors. MIT License.

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Voskan/faster-readcache/internal/chainwalker"
)

// Option configures an Engine at construction time.
type Option func(*config)

type config struct {
	enabled               bool
	pageSize              int64
	memorySize            int64
	secondChanceFraction  float64
	evictionCron          string

	logger   *zap.Logger
	registry *prometheus.Registry
	hlog     chainwalker.MainLog
}

func defaultConfig() *config {
	return &config{
		enabled:              true,
		pageSize:             1 << 20,  // 1 MiB
		memorySize:           1 << 26,  // 64 MiB
		secondChanceFraction: 0.6,
		logger:               zap.NewNop(),
	}
}

// WithReadCacheEnabled sets the ReadCacheEnabled option (spec.md §6).
// Passing false only shrinks the read-cache log to its minimum size (two
// 4 KiB pages): the log is still created, and no engine method checks the
// flag, so TryInsert still inserts records into it.
func WithReadCacheEnabled(enabled bool) Option {
	return func(c *config) { c.enabled = enabled }
}

// WithPageSize sets the read-cache page granularity in bytes, rounded down
// to a power of two by internal/rclog.New.
func WithPageSize(bytes int64) Option {
	return func(c *config) { c.pageSize = bytes }
}

// WithMemorySize sets the total read-cache capacity in bytes, rounded down
// to a power of two.
func WithMemorySize(bytes int64) Option {
	return func(c *config) { c.memorySize = bytes }
}

// WithSecondChanceFraction sets the share of each sweep's accumulated
// [HeadAddress, TailAddress) backlog that internal/evictor retires: the
// oldest fraction of it (page-aligned, at least one page) is evicted on a
// given sweep, and the newer remainder, closest to the tail, survives until a
// later one. It does not add LRU/LFU scoring (spec.md Non-goals:
// "eviction policy beyond circular log head advancement") — every record in
// the retired portion is evicted unconditionally, regardless of access
// recency.
func WithSecondChanceFraction(fraction float64) Option {
	return func(c *config) { c.secondChanceFraction = fraction }
}

// WithEvictionCron sets a cron(5) expression governing how often the
// background evictor runs a sweep, instead of a bare ticker. Empty disables
// the scheduled sweep (callers drive Engine.Sweep manually).
func WithEvictionCron(expr string) Option {
	return func(c *config) { c.evictionCron = expr }
}

// WithLogger plugs an external zap.Logger. The engine never logs on a hot
// traversal path; only slow/rare events are emitted.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithMainLog supplies the main-log allocator the engine splices against.
// Required: there is no usable default (the main log is spec.md's external
// collaborator, out of scope for this module to provide a production
// implementation of).
func WithMainLog(hlog chainwalker.MainLog) Option {
	return func(c *config) { c.hlog = hlog }
}

func (c *config) validate() error {
	if c.hlog == nil {
		return errMissingMainLog
	}
	if c.pageSize <= 0 {
		return errInvalidPageSize
	}
	if c.memorySize <= 0 {
		return errInvalidMemorySize
	}
	if c.secondChanceFraction < 0 || c.secondChanceFraction >= 1 {
		return errInvalidSecondChance
	}
	if c.evictionCron != "" {
		if _, err := cron.ParseStandard(c.evictionCron); err != nil {
			return err
		}
	}
	return nil
}

var (
	errMissingMainLog      = errors.New("readcache: WithMainLog is required")
	errInvalidPageSize     = errors.New("readcache: page size must be > 0")
	errInvalidMemorySize   = errors.New("readcache: memory size must be > 0")
	errInvalidSecondChance = errors.New("readcache: second-chance fraction must be in [0, 1)")
)
