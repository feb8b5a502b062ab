package core

import (
	"context"
	"slices"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	telemetryOnce sync.Once
	spanRecorder  *tracetest.SpanRecorder
	metricReader  *sdkmetric.ManualReader
)

// installTelemetry routes the package tracer and meter to in-memory
// providers. The global delegates bind once, so it is installed only once
// per process.
func installTelemetry() {
	telemetryOnce.Do(func() {
		spanRecorder = tracetest.NewSpanRecorder()
		metricReader = sdkmetric.NewManualReader()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder)))
		otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader)))
	})
}

func unitsRendered(t *testing.T) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := metricReader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "weave.units_rendered" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestRuntime_Telemetry(t *testing.T) {
	installTelemetry()
	before := unitsRendered(t)
	spansBefore := len(spanRecorder.Ended())

	mount(t, H("div", nil, H("span", nil, "x")))

	if got := unitsRendered(t) - before; got != 4 {
		t.Errorf("units rendered = %d, want 4", got)
	}
	var names []string
	for _, s := range spanRecorder.Ended()[spansBefore:] {
		names = append(names, s.Name())
	}
	for _, want := range []string{"core.Step", "core.Commit"} {
		if !slices.Contains(names, want) {
			t.Errorf("spans %v missing %q", names, want)
		}
	}
}
