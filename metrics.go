package gridauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricCardIssued counts cards created.
	MetricCardIssued MetricID = iota
	// MetricCardActivated counts Issued to Active transitions.
	MetricCardActivated
	// MetricCardSuspended counts Active to Suspended transitions.
	MetricCardSuspended
	// MetricCardResumed counts Suspended to Active transitions.
	MetricCardResumed
	// MetricCardRevoked counts revocations.
	MetricCardRevoked
	// MetricCardExpired counts cards moved to Expired, including lazy
	// expiry on read.
	MetricCardExpired
	// MetricCodesExported counts full-code exports of issued cards.
	MetricCodesExported
	// MetricLockoutCleared counts operator lockout resets.
	MetricLockoutCleared
	// MetricChallengeIssued counts challenges handed out.
	MetricChallengeIssued
	// MetricChallengeRateLimited counts challenge requests refused by
	// the per-card limiter.
	MetricChallengeRateLimited
	// MetricChallengeFallback counts selections that relaxed the
	// recent-coordinate exclusion to satisfy the cell count.
	MetricChallengeFallback
	// MetricVerifySuccess counts fully matched responses.
	MetricVerifySuccess
	// MetricVerifyFailure counts mismatched responses.
	MetricVerifyFailure
	// MetricVerifyExpired counts responses against unknown, consumed,
	// or stale challenge tokens.
	MetricVerifyExpired
	// MetricVerifyLocked counts responses refused by an armed lockout.
	MetricVerifyLocked
	// MetricVerifyMalformed counts responses rejected before
	// comparison for shape errors.
	MetricVerifyMalformed
	// MetricLockoutTriggered counts lockouts armed by reaching the
	// failure threshold.
	MetricLockoutTriggered
	// MetricStoreConflictRetry counts version-conflict retries of card
	// updates.
	MetricStoreConflictRetry
	// MetricConcurrentModification counts card updates abandoned after
	// exhausting the retry limit.
	MetricConcurrentModification
	// MetricVerifyLatency is the SubmitResponse latency histogram.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps hot counters on separate cache lines.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the in-process counter and histogram set. All methods are
// safe for concurrent use; a nil receiver is a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and
// histogram buckets, suitable for export.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
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
