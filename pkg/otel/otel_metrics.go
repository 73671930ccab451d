package otel

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics 基于 OpenTelemetry SDK 的指标实现
//
// 仪表按名称惰性创建并缓存，创建失败时退化为空实现。
type OTelMetrics struct {
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]Counter
	histograms map[string]Histogram
	gauges     map[string]Gauge
}

// NewOTelMetrics 创建 SDK 指标适配器
func NewOTelMetrics(meter metric.Meter) *OTelMetrics {
	return &OTelMetrics{
		meter:      meter,
		counters:   make(map[string]Counter),
		histograms: make(map[string]Histogram),
		gauges:     make(map[string]Gauge),
	}
}

// Counter 返回或创建计数器
func (m *OTelMetrics) Counter(name string) Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.counters[name]; ok {
		return c
	}

	counter, err := m.meter.Int64Counter(name,
		metric.WithDescription(describeMetric(name)),
		metric.WithUnit(metricUnit(name)))
	if err != nil {
		m.counters[name] = &NoopCounter{}
		return m.counters[name]
	}

	c := &otelCounter{counter: counter}
	m.counters[name] = c
	return c
}

// Histogram 返回或创建直方图
func (m *OTelMetrics) Histogram(name string) Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.histograms[name]; ok {
		return h
	}

	histogram, err := m.meter.Float64Histogram(name,
		metric.WithDescription(describeMetric(name)),
		metric.WithUnit(metricUnit(name)))
	if err != nil {
		m.histograms[name] = &NoopHistogram{}
		return m.histograms[name]
	}

	h := &otelHistogram{histogram: histogram}
	m.histograms[name] = h
	return h
}

// Gauge 返回或创建仪表
func (m *OTelMetrics) Gauge(name string) Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.gauges[name]; ok {
		return g
	}

	gauge, err := m.meter.Float64Gauge(name,
		metric.WithDescription(describeMetric(name)),
		metric.WithUnit(metricUnit(name)))
	if err != nil {
		m.gauges[name] = &NoopGauge{}
		return m.gauges[name]
	}

	g := &otelGauge{gauge: gauge}
	m.gauges[name] = g
	return g
}

// describeMetric 查预定义描述表。
func describeMetric(name string) string {
	for _, d := range PredefinedMetrics {
		if d.Name == name {
			return d.Description
		}
	}
	return ""
}

// metricUnit 查预定义单位表。
func metricUnit(name string) string {
	for _, d := range PredefinedMetrics {
		if d.Name == name {
			return string(d.Unit)
		}
	}
	return string(UnitNone)
}

type otelCounter struct {
	counter metric.Int64Counter
}

func (c *otelCounter) Add(ctx context.Context, value int64, attrs ...Attr) {
	c.counter.Add(ctx, value, metric.WithAttributes(convertAttrs(attrs)...))
}

type otelHistogram struct {
	histogram metric.Float64Histogram
}

func (h *otelHistogram) Record(ctx context.Context, value float64, attrs ...Attr) {
	h.histogram.Record(ctx, value, metric.WithAttributes(convertAttrs(attrs)...))
}

type otelGauge struct {
	gauge metric.Float64Gauge
}

func (g *otelGauge) Set(ctx context.Context, value float64, attrs ...Attr) {
	g.gauge.Record(ctx, value, metric.WithAttributes(convertAttrs(attrs)...))
}

// convertAttrs 转换为 OpenTelemetry 属性
func convertAttrs(attrs []Attr) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}

	result := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		switch v := a.Value.(type) {
		case string:
			result = append(result, attribute.String(a.Key, v))
		case bool:
			result = append(result, attribute.Bool(a.Key, v))
		case int:
			result = append(result, attribute.Int(a.Key, v))
		case int64:
			result = append(result, attribute.Int64(a.Key, v))
		case float64:
			result = append(result, attribute.Float64(a.Key, v))
		default:
			result = append(result, attribute.String(a.Key, fmt.Sprintf("%v", v)))
		}
	}
	return result
}

// compile-time interface check
var _ Metrics = (*OTelMetrics)(nil)
