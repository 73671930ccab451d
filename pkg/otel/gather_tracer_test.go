package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ericbfriday/clippyjs-sub002/pkg/otel"
)

func TestNewGatherTracer_NilArgsFallBackToNoop(t *testing.T) {
	gt := otel.NewGatherTracer(nil, nil)
	if gt == nil {
		t.Fatal("expected non-nil gather tracer")
	}

	// All recording paths should be safe on noop backends.
	ctx, span := gt.StartGather(context.Background(), "user-prompt", 4000)
	gt.RecordCacheLookup(ctx, "tab-1", false)
	gt.RecordProviderCall(ctx, "viewport", 1, nil, 5*time.Millisecond)
	gt.RecordCompression(ctx, 100, 80)
	gt.FinishGather(ctx, span, 1, nil, 10*time.Millisecond)
}

func TestGatherTracer_RecordCacheLookup(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	gt := otel.NewGatherTracer(otel.NewNoopTracer(), metrics)
	ctx := context.Background()

	gt.RecordCacheLookup(ctx, "tab-1", true)
	gt.RecordCacheLookup(ctx, "tab-1", true)
	gt.RecordCacheLookup(ctx, "tab-2", false)

	if hits := metrics.GetCounterValue(otel.MetricCacheHits); hits != 2 {
		t.Fatalf("expected 2 cache hits, got %d", hits)
	}
	if misses := metrics.GetCounterValue(otel.MetricCacheMisses); misses != 1 {
		t.Fatalf("expected 1 cache miss, got %d", misses)
	}
}

func TestGatherTracer_RecordProviderCall(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	gt := otel.NewGatherTracer(otel.NewNoopTracer(), metrics)
	ctx := context.Background()

	gt.RecordProviderCall(ctx, "viewport", 1, nil, 5*time.Millisecond)
	gt.RecordProviderCall(ctx, "form-state", 0, errors.New("snapshot failed"), 2*time.Millisecond)

	if calls := metrics.GetCounterValue(otel.MetricProviderCalls); calls != 2 {
		t.Fatalf("expected 2 provider calls, got %d", calls)
	}
	if errs := metrics.GetCounterValue(otel.MetricProviderErrors); errs != 1 {
		t.Fatalf("expected 1 provider error, got %d", errs)
	}

	durations := metrics.GetHistogramValues(otel.MetricProviderDuration)
	if len(durations) != 2 {
		t.Fatalf("expected 2 duration samples, got %d", len(durations))
	}
	if durations[0] < 4.9 || durations[0] > 5.1 {
		t.Fatalf("expected first duration ~5ms, got %f", durations[0])
	}
}

func TestGatherTracer_RecordCompression(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	gt := otel.NewGatherTracer(otel.NewNoopTracer(), metrics)
	ctx := context.Background()

	gt.RecordCompression(ctx, 200, 100)

	if runs := metrics.GetCounterValue(otel.MetricCompressionRuns); runs != 1 {
		t.Fatalf("expected 1 compression run, got %d", runs)
	}

	ratios := metrics.GetHistogramValues(otel.MetricCompressionRatio)
	if len(ratios) != 1 {
		t.Fatalf("expected 1 ratio sample, got %d", len(ratios))
	}
	if ratios[0] != 0.5 {
		t.Fatalf("expected compression ratio 0.5, got %f", ratios[0])
	}
}

func TestGatherTracer_RecordCompressionZeroBefore(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	gt := otel.NewGatherTracer(otel.NewNoopTracer(), metrics)

	// No ratio sample when there were no tokens to begin with.
	gt.RecordCompression(context.Background(), 0, 0)

	ratios := metrics.GetHistogramValues(otel.MetricCompressionRatio)
	if len(ratios) != 0 {
		t.Fatalf("expected no ratio samples, got %d", len(ratios))
	}
}

func TestGatherTracer_FinishGather(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	gt := otel.NewGatherTracer(otel.NewNoopTracer(), metrics)

	ctx, span := gt.StartGather(context.Background(), "user-action", 4000)
	gt.FinishGather(ctx, span, 3, nil, 12*time.Millisecond)

	if runs := metrics.GetCounterValue(otel.MetricGatherRuns); runs != 1 {
		t.Fatalf("expected 1 gather run, got %d", runs)
	}

	blobs := metrics.GetHistogramValues(otel.MetricGatherBlobs)
	if len(blobs) != 1 || blobs[0] != 3.0 {
		t.Fatalf("expected one blob sample of 3, got %v", blobs)
	}
}

func TestGatherTracer_FinishGatherWithError(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	gt := otel.NewGatherTracer(otel.NewNoopTracer(), metrics)

	ctx, span := gt.StartGather(context.Background(), "proactive", 4000)
	gt.FinishGather(ctx, span, 0, errors.New("all providers failed"), time.Millisecond)

	if runs := metrics.GetCounterValue(otel.MetricGatherRuns); runs != 1 {
		t.Fatalf("expected 1 gather run, got %d", runs)
	}
}
