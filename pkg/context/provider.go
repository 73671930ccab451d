package context

import (
	"context"
	"sync/atomic"
)

// 内置提供者名称。
const (
	ProviderViewport    = "viewport"
	ProviderFormState   = "form-state"
	ProviderNavigation  = "navigation"
	ProviderPerformance = "performance"
)

// Provider 定义情境信号提供者的契约。
//
// Gather 必须可与其他提供者的 Gather 并发调用，且不应无限阻塞
// （实现方自行施加超时）。Gather 失败不会污染管理器状态，
// 管理器将其视为"本周期该提供者无信号"。
type Provider interface {
	// Name 返回稳定的提供者名称。
	Name() string

	// Enabled 返回提供者是否参与采集。
	Enabled() bool

	// SetEnabled 切换提供者的参与状态。
	SetEnabled(enabled bool)

	// Gather 采集一个信号块，可能失败。
	Gather(ctx context.Context) (*ContextBlob, error)

	// ShouldInclude 决定提供者是否参与给定触发来源的采集。
	ShouldInclude(trigger Trigger) bool
}

// baseProvider 内置提供者的公共状态。
type baseProvider struct {
	name     string
	priority float64
	enabled  atomic.Bool
}

func newBaseProvider(name string, priority float64) baseProvider {
	p := baseProvider{name: name, priority: priority}
	p.enabled.Store(true)
	return p
}

func (p *baseProvider) Name() string            { return p.name }
func (p *baseProvider) Enabled() bool           { return p.enabled.Load() }
func (p *baseProvider) SetEnabled(enabled bool) { p.enabled.Store(enabled) }
func (p *baseProvider) BasePriority() float64   { return p.priority }

// ViewportPayload 视口信号负载。
type ViewportPayload struct {
	Width            int      `json:"width"`
	Height           int      `json:"height"`
	Orientation      string   `json:"orientation"`
	ScrollPercent    float64  `json:"scroll_percent"`
	DevicePixelRatio float64  `json:"device_pixel_ratio"`
	VisibleSelectors []string `json:"visible_selectors,omitempty"`
}

// ViewportProvider 视口信号提供者。
// 实际的视口测量逻辑由宿主通过 SnapshotFunc 注入。
type ViewportProvider struct {
	baseProvider

	// SnapshotFunc 返回当前视口快照。
	SnapshotFunc func(ctx context.Context) (ViewportPayload, error)
}

// NewViewportProvider 创建视口信号提供者。
func NewViewportProvider(snapshot func(ctx context.Context) (ViewportPayload, error)) *ViewportProvider {
	return &ViewportProvider{
		baseProvider: newBaseProvider(ProviderViewport, 0.8),
		SnapshotFunc: snapshot,
	}
}

// Gather 采集视口信号。
func (p *ViewportProvider) Gather(ctx context.Context) (*ContextBlob, error) {
	payload, err := p.SnapshotFunc(ctx)
	if err != nil {
		return nil, err
	}
	return NewContextBlob(p.name, payload), nil
}

// ShouldInclude 视口信号对所有触发来源都有价值。
func (p *ViewportProvider) ShouldInclude(_ Trigger) bool {
	return true
}

// FormStatePayload 表单状态信号负载。
type FormStatePayload struct {
	FormID           string   `json:"form_id"`
	FieldCount       int      `json:"field_count"`
	FocusedField     string   `json:"focused_field"`
	CompletionRatio  float64  `json:"completion_ratio"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

// FormStateProvider 表单状态信号提供者。
type FormStateProvider struct {
	baseProvider

	// SnapshotFunc 返回当前表单状态快照。
	SnapshotFunc func(ctx context.Context) (FormStatePayload, error)
}

// NewFormStateProvider 创建表单状态信号提供者。
func NewFormStateProvider(snapshot func(ctx context.Context) (FormStatePayload, error)) *FormStateProvider {
	return &FormStateProvider{
		baseProvider: newBaseProvider(ProviderFormState, 0.9),
		SnapshotFunc: snapshot,
	}
}

// Gather 采集表单状态信号。
func (p *FormStateProvider) Gather(ctx context.Context) (*ContextBlob, error) {
	payload, err := p.SnapshotFunc(ctx)
	if err != nil {
		return nil, err
	}
	return NewContextBlob(p.name, payload), nil
}

// ShouldInclude 表单状态只在用户主导的触发下有价值。
func (p *FormStateProvider) ShouldInclude(trigger Trigger) bool {
	return trigger != TriggerProactive
}

// NavigationPayload 导航信号负载。
type NavigationPayload struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Referrer     string `json:"referrer,omitempty"`
	HistoryDepth int    `json:"history_depth"`
	TimeOnPageMs int64  `json:"time_on_page_ms"`
}

// NavigationProvider 导航信号提供者。
type NavigationProvider struct {
	baseProvider

	// SnapshotFunc 返回当前导航快照。
	SnapshotFunc func(ctx context.Context) (NavigationPayload, error)
}

// NewNavigationProvider 创建导航信号提供者。
func NewNavigationProvider(snapshot func(ctx context.Context) (NavigationPayload, error)) *NavigationProvider {
	return &NavigationProvider{
		baseProvider: newBaseProvider(ProviderNavigation, 0.7),
		SnapshotFunc: snapshot,
	}
}

// Gather 采集导航信号。
func (p *NavigationProvider) Gather(ctx context.Context) (*ContextBlob, error) {
	payload, err := p.SnapshotFunc(ctx)
	if err != nil {
		return nil, err
	}
	return NewContextBlob(p.name, payload), nil
}

// ShouldInclude 导航信号对所有触发来源都有价值。
func (p *NavigationProvider) ShouldInclude(_ Trigger) bool {
	return true
}

// PerformancePayload 性能信号负载。
type PerformancePayload struct {
	LoadTimeMs      int64 `json:"load_time_ms"`
	DomReadyMs      int64 `json:"dom_ready_ms"`
	MemoryUsedBytes int64 `json:"memory_used_bytes"`
	ResourceCount   int   `json:"resource_count"`
}

// PerformanceProvider 性能信号提供者。
type PerformanceProvider struct {
	baseProvider

	// SnapshotFunc 返回当前性能快照。
	SnapshotFunc func(ctx context.Context) (PerformancePayload, error)
}

// NewPerformanceProvider 创建性能信号提供者。
func NewPerformanceProvider(snapshot func(ctx context.Context) (PerformancePayload, error)) *PerformanceProvider {
	return &PerformanceProvider{
		baseProvider: newBaseProvider(ProviderPerformance, 0.4),
		SnapshotFunc: snapshot,
	}
}

// Gather 采集性能信号。
func (p *PerformanceProvider) Gather(ctx context.Context) (*ContextBlob, error) {
	payload, err := p.SnapshotFunc(ctx)
	if err != nil {
		return nil, err
	}
	return NewContextBlob(p.name, payload), nil
}

// ShouldInclude 性能信号只在非用户操作的触发下采集。
func (p *PerformanceProvider) ShouldInclude(trigger Trigger) bool {
	return trigger != TriggerUserAction
}

// FuncProvider 用任意函数构造的通用提供者。
type FuncProvider struct {
	baseProvider

	// GatherFunc 采集函数。
	GatherFunc func(ctx context.Context) (interface{}, error)

	// IncludeFunc 为 nil 时对所有触发来源都参与。
	IncludeFunc func(trigger Trigger) bool
}

// NewFuncProvider 创建通用提供者。
func NewFuncProvider(name string, priority float64, gather func(ctx context.Context) (interface{}, error)) *FuncProvider {
	return &FuncProvider{
		baseProvider: newBaseProvider(name, priority),
		GatherFunc:   gather,
	}
}

// Gather 调用采集函数。
func (p *FuncProvider) Gather(ctx context.Context) (*ContextBlob, error) {
	payload, err := p.GatherFunc(ctx)
	if err != nil {
		return nil, err
	}
	return NewContextBlob(p.name, payload), nil
}

// ShouldInclude 判断是否参与给定触发来源的采集。
func (p *FuncProvider) ShouldInclude(trigger Trigger) bool {
	if p.IncludeFunc == nil {
		return true
	}
	return p.IncludeFunc(trigger)
}

// 编译时接口检查
var _ Provider = (*ViewportProvider)(nil)
var _ Provider = (*FormStateProvider)(nil)
var _ Provider = (*NavigationProvider)(nil)
var _ Provider = (*PerformanceProvider)(nil)
var _ Provider = (*FuncProvider)(nil)
var _ BasePrioritizer = (*ViewportProvider)(nil)
