package gigauth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRequestSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRequestSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricRequestLatency, d)
	}
	// Counters are not histograms.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricRequestLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Counters[MetricRequestLatency]; ok {
		t.Fatal("histogram id leaked into counters")
	}
}

func TestMetricsRecordOutcome(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.recordOutcome(Success{Status: 200}, time.Millisecond)
	m.recordOutcome(ClientError{Status: 404}, time.Millisecond)
	m.recordOutcome(AuthExpired{}, time.Millisecond)
	m.recordOutcome(NetworkUnavailable{}, time.Millisecond)
	m.recordOutcome(ServerFault{Status: 500}, time.Millisecond)

	for _, id := range []MetricID{
		MetricRequestSuccess,
		MetricRequestClientError,
		MetricRequestAuthExpired,
		MetricRequestNetworkUnavailable,
		MetricRequestServerFault,
	} {
		if got := m.Value(id); got != 1 {
			t.Fatalf("metric %d: expected 1, got %d", id, got)
		}
	}
}

func TestMetricsNilIsSilent(t *testing.T) {
	var m *Metrics
	m.Inc(MetricRefreshSuccess)
	m.recordOutcome(ServerFault{Status: 503}, time.Second)

	if m.Value(MetricRefreshSuccess) != 0 || m.LatencyEnabled() {
		t.Fatal("nil metrics must read as zero")
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}
