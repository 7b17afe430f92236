package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestDecodeDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.DecodeDuration.Record(ctx, 0.012)
	m.DecodeDuration.Record(ctx, 0.034)

	rm := collect(t, reader)
	met := findMetric(rm, "ctcdecode.decode.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("metric has no data points")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestRecordDecode(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDecode(ctx, 0.05, 4, false)
	m.RecordDecode(ctx, 0.08, 2, true)

	rm := collect(t, reader)

	durMet := findMetric(rm, "ctcdecode.decode.duration")
	if durMet == nil {
		t.Fatal("decode duration metric not found")
	}
	hist, ok := durMet.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("decode duration metric is not a histogram")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}

	beamsMet := findMetric(rm, "ctcdecode.beams_emitted")
	if beamsMet == nil {
		t.Fatal("beams_emitted metric not found")
	}
	sum, ok := beamsMet.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("beams_emitted metric is not a sum")
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 6 {
		t.Errorf("total beams emitted = %d, want 6", total)
	}

	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "truncated" && kv.Value.AsBool() {
				if dp.Value != 2 {
					t.Errorf("truncated beam count = %d, want 2", dp.Value)
				}
			}
		}
	}
}

func TestRecordLexiconRejection(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLexiconRejection(ctx)
	m.RecordLexiconRejection(ctx)

	rm := collect(t, reader)
	met := findMetric(rm, "ctcdecode.lexicon_rejections")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 2 {
		t.Errorf("counter value mismatch, got %+v", sum.DataPoints)
	}
}

func TestRecordLMUnkHit(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLMUnkHit(ctx)

	rm := collect(t, reader)
	met := findMetric(rm, "ctcdecode.lm_unk_hits")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Errorf("counter value mismatch, got %+v", sum.DataPoints)
	}
}

func TestActiveWorkersAndQueueDepthGauges(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveWorkers.Add(ctx, 1)
	m.ActiveWorkers.Add(ctx, 1)
	m.ActiveWorkers.Add(ctx, -1)
	m.QueueDepth.Add(ctx, 3)

	rm := collect(t, reader)

	gauges := []struct {
		name string
		want int64
	}{
		{"ctcdecode.batch.active_workers", 1},
		{"ctcdecode.batch.queue_depth", 3},
	}

	for _, tc := range gauges {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not a sum", tc.name)
			}
			if len(sum.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := sum.DataPoints[0].Value; got != tc.want {
				t.Errorf("gauge value = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAttr(t *testing.T) {
	kv := Attr("mode", "streaming")
	if kv.Key != attribute.Key("mode") || kv.Value.AsString() != "streaming" {
		t.Errorf("Attr produced unexpected key-value: %+v", kv)
	}
	_ = metric.WithAttributes(kv)
}
