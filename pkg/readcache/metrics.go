package readcache

// metrics.go mirrors the teacher's pkg/metrics.go: a metricsSink interface
// with a no-op implementation used until a *prometheus.Registry is
// supplied, so the hot path never pays for metric updates when metrics are
// disabled. Metric names follow spec.md §6's configuration surface and
// §7's status taxonomy.
//
// © 2025 faster-readcache authors. MIT License.

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metricsSink interface {
	incHit()
	incMiss()
	incSplice()
	incEvict(n int)
	incAllocateFailed()
	incRecordOnDisk()
	setHeadAddress(v int64)
	setTailAddress(v int64)
}

type noopMetrics struct{}

func (noopMetrics) incHit()                 {}
func (noopMetrics) incMiss()                {}
func (noopMetrics) incSplice()               {}
func (noopMetrics) incEvict(int)             {}
func (noopMetrics) incAllocateFailed()       {}
func (noopMetrics) incRecordOnDisk()         {}
func (noopMetrics) setHeadAddress(int64)     {}
func (noopMetrics) setTailAddress(int64)     {}

type promMetrics struct {
	hits            prometheus.Counter
	misses          prometheus.Counter
	splices         prometheus.Counter
	evictions       prometheus.Counter
	allocateFailed  prometheus.Counter
	recordOnDisk    prometheus.Counter
	headAddress     prometheus.Gauge
	tailAddress     prometheus.Gauge
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	pm := &promMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "readcache", Name: "hits_total", Help: "Number of read-cache lookup hits.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "readcache", Name: "misses_total", Help: "Number of read-cache lookup misses.",
		}),
		splices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "readcache", Name: "splices_total", Help: "Number of successful chain splices at the read-cache/main-log boundary.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "readcache", Name: "evictions_total", Help: "Number of read-cache records unlinked by eviction.",
		}),
		allocateFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "readcache", Name: "allocate_failed_total", Help: "Number of ALLOCATE_FAILED outcomes.",
		}),
		recordOnDisk: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "readcache", Name: "record_on_disk_total", Help: "Number of RECORD_ON_DISK outcomes.",
		}),
		headAddress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "readcache", Name: "head_address", Help: "Current read-cache eviction frontier.",
		}),
		tailAddress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "readcache", Name: "tail_address", Help: "Current read-cache tail address.",
		}),
	}
	reg.MustRegister(pm.hits, pm.misses, pm.splices, pm.evictions, pm.allocateFailed, pm.recordOnDisk, pm.headAddress, pm.tailAddress)
	return pm
}

func (m *promMetrics) incHit()             { m.hits.Inc() }
func (m *promMetrics) incMiss()            { m.misses.Inc() }
func (m *promMetrics) incSplice()          { m.splices.Inc() }
func (m *promMetrics) incEvict(n int)      { m.evictions.Add(float64(n)) }
func (m *promMetrics) incAllocateFailed()  { m.allocateFailed.Inc() }
func (m *promMetrics) incRecordOnDisk()    { m.recordOnDisk.Inc() }
func (m *promMetrics) setHeadAddress(v int64) { m.headAddress.Set(float64(v)) }
func (m *promMetrics) setTailAddress(v int64) { m.tailAddress.Set(float64(v)) }

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
