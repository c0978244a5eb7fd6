package sessionkit

import "sync/atomic"

// MetricID indexes a registry counter.
type MetricID uint16

const (
	// MetricSessionCreated counts sessions issued at login.
	MetricSessionCreated MetricID = iota
	// MetricRenewSuccess counts successful credential renewals.
	MetricRenewSuccess
	// MetricRenewDenied counts renewals rejected as not-found, expired, or
	// revoked.
	MetricRenewDenied
	// MetricRenewReuseDetected counts renewals presenting an already
	// rotated credential.
	MetricRenewReuseDetected
	// MetricRenewFailure counts renewals failing for backend reasons.
	MetricRenewFailure
	// MetricSessionRevoked counts explicit revocations.
	MetricSessionRevoked
	// MetricRevokeAllForUser counts sign-out-everywhere operations.
	MetricRevokeAllForUser
	// MetricValidateSuccess counts accepted access tokens.
	MetricValidateSuccess
	// MetricValidateFailure counts rejected access tokens.
	MetricValidateFailure

	metricIDCount
)

// MetricIDCount is the number of defined counters, exported for exporters.
const MetricIDCount = int(metricIDCount)

// Cache-line padding keeps hot counters from false sharing.
type paddedCounter struct {
	value uint64
	_     [56]byte
}

// Metrics is a fixed set of lock-free counters.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics creates a counter set; a disabled set ignores all writes.
func NewMetrics(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

// Enabled reports whether writes are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value returns the current count for a single metric.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies all counters atomically per counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
