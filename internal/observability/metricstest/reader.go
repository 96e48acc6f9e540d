// Package metricstest collects OpenTelemetry measurements in memory for tests.
package metricstest

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Reader is a meter provider backed by a manual reader
type Reader struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// New creates a Reader
func New() *Reader {
	reader := sdkmetric.NewManualReader()
	return &Reader{
		reader:   reader,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
}

// Provider returns the meter provider measurements are recorded through
func (r *Reader) Provider() metric.MeterProvider {
	return r.provider
}

// Meter returns a meter from the provider
func (r *Reader) Meter() metric.Meter {
	return r.provider.Meter("metricstest")
}

// Count sums the int64 counter points named name whose attributes equal attrs
func (r *Reader) Count(t testing.TB, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	want := attribute.NewSet(attrs...)

	var total int64
	for _, m := range r.collect(t, name) {
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok {
			t.Fatalf("metric %s is %T, not an int64 sum", name, m.Data)
		}
		for _, dp := range sum.DataPoints {
			if dp.Attributes.Equals(&want) {
				total += dp.Value
			}
		}
	}
	return total
}

// HistogramCount returns how many float64 values were recorded into the
// histogram named name with attributes equal to attrs
func (r *Reader) HistogramCount(t testing.TB, name string, attrs ...attribute.KeyValue) uint64 {
	t.Helper()
	want := attribute.NewSet(attrs...)

	var total uint64
	for _, m := range r.collect(t, name) {
		hist, ok := m.Data.(metricdata.Histogram[float64])
		if !ok {
			t.Fatalf("metric %s is %T, not a float64 histogram", name, m.Data)
		}
		for _, dp := range hist.DataPoints {
			if dp.Attributes.Equals(&want) {
				total += dp.Count
			}
		}
	}
	return total
}

func (r *Reader) collect(t testing.TB, name string) []metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	var out []metricdata.Metrics
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				out = append(out, m)
			}
		}
	}
	return out
}
