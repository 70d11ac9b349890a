package otel

import (
	"context"
	"sync"
	"testing"

	goGate "github.com/MrEthical07/goGate"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goGate.MetricsSnapshot
	dropped  uint64
	active   bool
}

func (f *fakeSource) MetricsSnapshot() goGate.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goGate.MetricsSnapshot{
		Counters:   make(map[goGate.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goGate.MetricID][]uint64, len(f.snapshot.Histograms)),
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

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) IsAuthenticated() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

func newReaderMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, provider
}

// findPoint returns the value of the series of name whose attribute key
// equals value. An empty key matches the first point.
func findPoint(rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	match := func(set attribute.Set) bool {
		if key == "" {
			return true
		}
		v, ok := set.Value(attribute.Key(key))
		return ok && v.AsString() == value
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return dp.Value, true
					}
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return dp.Value, true
					}
				}
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReaderMeter()
	meter := provider.Meter("gogate-test")

	src := &fakeSource{
		snapshot: goGate.MetricsSnapshot{
			Counters: map[goGate.MetricID]uint64{
				goGate.MetricLoginSuccess:    3,
				goGate.MetricHydrateRestored: 1,
				goGate.MetricRouteRedirected: 5,
			},
			Histograms: map[goGate.MetricID][]uint64{
				goGate.MetricAuthenticateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
		active:  true,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
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

	checks := []struct {
		name, key, value string
		want             int64
	}{
		{"gogate_sessions_established_total", "result", "success", 3},
		{"gogate_sessions_established_total", "result", "failure", 0},
		{"gogate_hydrate_total", "outcome", "restored", 1},
		{"gogate_hydrate_total", "outcome", "empty", 0},
		{"gogate_route_decisions_total", "decision", "redirected", 5},
		{"gogate_route_decisions_total", "decision", "allowed", 0},
		{"gogate_session_active", "", "", 1},
		{"gogate_audit_dropped_total", "", "", 1},
		{"gogate_authenticate_latency_seconds_bucket", "le", "0.01", 1},
		{"gogate_authenticate_latency_seconds_bucket", "le", "+Inf", 8},
		{"gogate_authenticate_latency_seconds_count", "", "", 8},
	}
	for _, c := range checks {
		got, ok := findPoint(rm, c.name, c.key, c.value)
		if !ok {
			t.Fatalf("metric %s{%s=%q} not collected", c.name, c.key, c.value)
		}
		if got != c.want {
			t.Fatalf("metric %s{%s=%q} = %d, want %d", c.name, c.key, c.value, got, c.want)
		}
	}
}

func TestExporterSkipsLatencyWhenHistogramsDisabled(t *testing.T) {
	reader, provider := newReaderMeter()
	meter := provider.Meter("gogate-test")

	src := &fakeSource{
		snapshot: goGate.MetricsSnapshot{
			Counters:   map[goGate.MetricID]uint64{goGate.MetricLogout: 2},
			Histograms: map[goGate.MetricID][]uint64{},
		},
	}
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got, ok := findPoint(rm, "gogate_logout_total", "", ""); !ok || got != 2 {
		t.Fatalf("logout total = %d (found %v), want 2", got, ok)
	}
	if got, ok := findPoint(rm, "gogate_session_active", "", ""); !ok || got != 0 {
		t.Fatalf("session active = %d (found %v), want 0", got, ok)
	}
	if _, ok := findPoint(rm, "gogate_authenticate_latency_seconds_count", "", ""); ok {
		t.Fatal("latency count observed without histogram data")
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReaderMeter()
	meter := provider.Meter("gogate-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
	if _, err := NewOTelExporter(meter, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err == nil {
		t.Fatal("expected error for nil meter")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReaderMeter()
	meter := provider.Meter("gogate-test")

	src := &fakeSource{
		snapshot: goGate.MetricsSnapshot{
			Counters: map[goGate.MetricID]uint64{
				goGate.MetricLoginSuccess: 1,
			},
			Histograms: map[goGate.MetricID][]uint64{
				goGate.MetricAuthenticateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
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
			src.snapshot.Counters[goGate.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
