package context

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ericbfriday/clippyjs-sub002/pkg/otel"
)

// TracedProvider 为提供者包装追踪和指标。
type TracedProvider struct {
	provider Provider
	tracer   otel.Tracer
	metrics  otel.Metrics
}

// TracedProviderOption 配置 TracedProvider。
type TracedProviderOption func(*TracedProvider)

// WithTracedProviderTracer 设置追踪器。
func WithTracedProviderTracer(tracer otel.Tracer) TracedProviderOption {
	return func(p *TracedProvider) {
		p.tracer = tracer
	}
}

// WithTracedProviderMetrics 设置指标收集器。
func WithTracedProviderMetrics(metrics otel.Metrics) TracedProviderOption {
	return func(p *TracedProvider) {
		p.metrics = metrics
	}
}

// NewTracedProvider 创建带追踪的提供者包装。
func NewTracedProvider(provider Provider, opts ...TracedProviderOption) *TracedProvider {
	tp := &TracedProvider{
		provider: provider,
		tracer:   otel.NewNoopTracer(),
		metrics:  otel.NewNoopMetrics(),
	}

	for _, opt := range opts {
		opt(tp)
	}

	return tp
}

// Gather 采集信号块并记录追踪与指标。
func (p *TracedProvider) Gather(ctx context.Context) (*ContextBlob, error) {
	ctx, span := p.tracer.Start(ctx, "provider.gather",
		otel.WithSpanKind(otel.SpanKindInternal),
		otel.WithAttributes(
			otel.ProviderName(p.provider.Name()),
		),
	)
	defer span.End()

	startTime := time.Now()
	blob, err := p.provider.Gather(ctx)
	duration := time.Since(startTime)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(otel.StatusError, err.Error())
		p.metrics.Counter(otel.MetricProviderErrors).Add(ctx, 1,
			otel.NewAttr("provider", p.provider.Name()),
		)
	} else {
		span.SetStatus(otel.StatusOK, "")
		if blob != nil {
			span.SetAttributes(attribute.String("blob.timestamp", blob.Timestamp.Format(time.RFC3339Nano)))
		}
	}

	p.metrics.Counter(otel.MetricProviderCalls).Add(ctx, 1,
		otel.NewAttr("provider", p.provider.Name()),
		otel.NewAttr("status", status),
	)
	p.metrics.Histogram(otel.MetricProviderDuration).Record(ctx, duration.Seconds()*1000,
		otel.NewAttr("provider", p.provider.Name()),
	)
	span.SetAttributes(otel.ProviderDuration(duration.Milliseconds()))

	return blob, err
}

// Name 返回底层提供者名称。
func (p *TracedProvider) Name() string {
	return p.provider.Name()
}

// Enabled 返回底层提供者的参与状态。
func (p *TracedProvider) Enabled() bool {
	return p.provider.Enabled()
}

// SetEnabled 切换底层提供者的参与状态。
func (p *TracedProvider) SetEnabled(enabled bool) {
	p.provider.SetEnabled(enabled)
}

// ShouldInclude 委托给底层提供者。
func (p *TracedProvider) ShouldInclude(trigger Trigger) bool {
	return p.provider.ShouldInclude(trigger)
}

// BasePriority 透传底层提供者声明的基础优先级。
func (p *TracedProvider) BasePriority() float64 {
	if bp, ok := p.provider.(BasePrioritizer); ok {
		return bp.BasePriority()
	}
	return DefaultBasePriority
}

// 编译时接口检查
var _ Provider = (*TracedProvider)(nil)
var _ BasePrioritizer = (*TracedProvider)(nil)
