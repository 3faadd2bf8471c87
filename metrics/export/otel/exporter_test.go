package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/gigauth"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot gigauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() gigauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := gigauth.MetricsSnapshot{
		Counters:   make(map[gigauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[gigauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) LogDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gigauth-test")

	src := &fakeSource{
		snapshot: gigauth.MetricsSnapshot{
			Counters: map[gigauth.MetricID]uint64{
				gigauth.MetricLoginSuccess: 3,
			},
			Histograms: map[gigauth.MetricID][]uint64{
				gigauth.MetricRequestLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := New(meter, src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gigauth-test")

	if _, err := New(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gigauth-test")

	src := &fakeSource{
		snapshot: gigauth.MetricsSnapshot{
			Counters: map[gigauth.MetricID]uint64{
				gigauth.MetricLoginSuccess: 1,
			},
			Histograms: map[gigauth.MetricID][]uint64{
				gigauth.MetricRequestLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := New(meter, src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[gigauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterReportsCounterValues(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gigauth-test")

	src := &fakeSource{
		snapshot: gigauth.MetricsSnapshot{
			Counters: map[gigauth.MetricID]uint64{
				gigauth.MetricRefreshSuccess: 5,
			},
			Histograms: map[gigauth.MetricID][]uint64{},
		},
		dropped: 4,
	}
	exp, err := New(meter, src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	want := map[string]int64{
		"gigauth_refresh_success_total": 5,
		"gigauth_log_dropped_total":     4,
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			expected, ok := want[m.Name]
			if !ok {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) != 1 {
				t.Fatalf("%s: unexpected data %T", m.Name, m.Data)
			}
			if got := sum.DataPoints[0].Value; got != expected {
				t.Fatalf("%s = %d, want %d", m.Name, got, expected)
			}
			delete(want, m.Name)
		}
	}
	if len(want) != 0 {
		t.Fatalf("metrics not collected: %v", want)
	}
}

type statefulSource struct {
	fakeSource
	state gigauth.State
}

func (s *statefulSource) State() gigauth.State { return s.state }

func TestExporterReportsSessionState(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gigauth-test")

	src := &statefulSource{state: gigauth.StateRefreshing}
	exp, err := New(meter, src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "gigauth_session_state" {
				continue
			}
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			if !ok {
				t.Fatalf("unexpected data %T", m.Data)
			}
			for _, dp := range gauge.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("state"))
				got[v.AsString()] = dp.Value
			}
		}
	}
	want := map[string]int64{
		gigauth.StateAnonymous.String():      0,
		gigauth.StateAuthenticating.String(): 0,
		gigauth.StateAuthenticated.String():  0,
		gigauth.StateRefreshing.String():     1,
	}
	if len(got) != len(want) {
		t.Fatalf("session state points = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("state %s = %d, want %d", k, got[k], v)
		}
	}
}

func TestExporterSkipsStateWithoutStateSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	exp, err := New(provider.Meter("gigauth-test"), &fakeSource{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "gigauth_session_state" {
				t.Fatal("state gauge registered for a source without State")
			}
		}
	}
}
