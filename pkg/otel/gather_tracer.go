// Package otel provides observability integration for the context engine
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// GatherTracer 采集周期追踪辅助器
//
// 封装采集、压缩和缓存事件的常用打点，供上层在不直接操作
// Span 的情况下记录完整的采集生命周期。
type GatherTracer struct {
	tracer  Tracer
	metrics Metrics
}

// NewGatherTracer 创建采集追踪辅助器
func NewGatherTracer(tracer Tracer, metrics Metrics) *GatherTracer {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	return &GatherTracer{
		tracer:  tracer,
		metrics: metrics,
	}
}

// StartGather 开始一个采集周期 Span
func (gt *GatherTracer) StartGather(ctx context.Context, trigger string, tokenBudget int) (context.Context, Span) {
	return gt.tracer.Start(ctx, "context.gather",
		WithSpanKind(SpanKindInternal),
		WithAttributes(
			GatherTrigger(trigger),
			attribute.Int(AttrGatherTokenBudget, tokenBudget),
		),
	)
}

// RecordCacheLookup 记录缓存查询事件
func (gt *GatherTracer) RecordCacheLookup(ctx context.Context, key string, hit bool) {
	span := gt.tracer.SpanFromContext(ctx)
	span.AddEvent("context.cache_lookup",
		attribute.String(AttrCacheKey, key),
		attribute.Bool(AttrGatherCacheHit, hit),
	)
	if hit {
		gt.metrics.Counter(MetricCacheHits).Add(ctx, 1)
	} else {
		gt.metrics.Counter(MetricCacheMisses).Add(ctx, 1)
	}
}

// RecordProviderCall 记录单个提供者的调用结果
func (gt *GatherTracer) RecordProviderCall(ctx context.Context, name string, blobs int, err error, duration time.Duration) {
	span := gt.tracer.SpanFromContext(ctx)
	span.AddEvent("context.provider_call",
		attribute.String(AttrProviderName, name),
		attribute.Int(AttrProviderBlobs, blobs),
		attribute.Bool("success", err == nil),
		attribute.Int64(AttrProviderDuration, duration.Milliseconds()),
	)

	status := "success"
	if err != nil {
		status = "error"
		gt.metrics.Counter(MetricProviderErrors).Add(ctx, 1,
			NewAttr("provider", name),
		)
	}
	gt.metrics.Counter(MetricProviderCalls).Add(ctx, 1,
		NewAttr("provider", name),
		NewAttr("status", status),
	)
	gt.metrics.Histogram(MetricProviderDuration).Record(ctx, duration.Seconds()*1000,
		NewAttr("provider", name),
	)
}

// RecordCompression 记录压缩前后的 Token 数
func (gt *GatherTracer) RecordCompression(ctx context.Context, tokensBefore, tokensAfter int) {
	span := gt.tracer.SpanFromContext(ctx)
	span.AddEvent("context.compression",
		attribute.Int("tokens.before", tokensBefore),
		attribute.Int("tokens.after", tokensAfter),
	)

	gt.metrics.Counter(MetricCompressionRuns).Add(ctx, 1)
	gt.metrics.Histogram(MetricTokensBefore).Record(ctx, float64(tokensBefore))
	gt.metrics.Histogram(MetricTokensAfter).Record(ctx, float64(tokensAfter))
	if tokensBefore > 0 {
		gt.metrics.Histogram(MetricCompressionRatio).Record(ctx, float64(tokensAfter)/float64(tokensBefore))
	}
}

// FinishGather 结束采集周期 Span
func (gt *GatherTracer) FinishGather(ctx context.Context, span Span, blobs int, err error, duration time.Duration) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(StatusError, err.Error())
	} else {
		span.SetStatus(StatusOK, "")
	}
	span.SetAttributes(
		attribute.Int(AttrGatherBlobCount, blobs),
		attribute.Int64("duration_ms", duration.Milliseconds()),
	)
	span.End()

	gt.metrics.Counter(MetricGatherRuns).Add(ctx, 1)
	gt.metrics.Histogram(MetricGatherDuration).Record(ctx, duration.Seconds()*1000)
	gt.metrics.Histogram(MetricGatherBlobs).Record(ctx, float64(blobs))
}
