package gigauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram in a [MetricsSnapshot].
type MetricID uint16

const (
	// MetricRequestSuccess counts Send calls that ended in Success.
	MetricRequestSuccess MetricID = iota
	MetricRequestClientError
	MetricRequestAuthExpired
	MetricRequestNetworkUnavailable
	MetricRequestServerFault
	// MetricRequestReplayed counts requests resent after a refresh.
	MetricRequestReplayed
	MetricLoginSuccess
	// MetricLoginRejected counts logins refused with 401.
	MetricLoginRejected
	MetricLoginFailure
	MetricRegisterSuccess
	// MetricRegisterInvalid counts registrations stopped by local validation.
	MetricRegisterInvalid
	MetricRegisterFailure
	// MetricRefreshSuccess and MetricRefreshFailure count refresh network calls,
	// not callers.
	MetricRefreshSuccess
	MetricRefreshFailure
	// MetricRefreshJoined counts callers that waited on an in-flight refresh
	// instead of starting one.
	MetricRefreshJoined
	// MetricSessionExpired counts sessions ended without a refresh attempt.
	MetricSessionExpired
	MetricLogout
	// MetricExternalChange counts sessions adopted or dropped because another
	// process changed the store.
	MetricExternalChange
	MetricStoreFailure
	MetricRequestLatency
	MetricRefreshLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free in-process counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
// Histogram slices hold non-cumulative bucket counts for the bounds
// 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms and +Inf.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics does not mutate shared global state. The returned value is safe
// for concurrent use.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in histogram id. Counter IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || !isHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot returns empty maps when metrics are disabled. Counters are read
// individually, so a snapshot taken under load is not a single atomic cut.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricRequestLatency, MetricRefreshLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func (m *Metrics) recordOutcome(o Outcome, d time.Duration) {
	switch o.Kind() {
	case OutcomeSuccess:
		m.Inc(MetricRequestSuccess)
	case OutcomeClientError:
		m.Inc(MetricRequestClientError)
	case OutcomeAuthExpired:
		m.Inc(MetricRequestAuthExpired)
	case OutcomeNetworkUnavailable:
		m.Inc(MetricRequestNetworkUnavailable)
	case OutcomeServerFault:
		m.Inc(MetricRequestServerFault)
	}
	m.Observe(MetricRequestLatency, d)
}

func isHistogram(id MetricID) bool {
	return id == MetricRequestLatency || id == MetricRefreshLatency
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
