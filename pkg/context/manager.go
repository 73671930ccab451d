package context

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ericbfriday/clippyjs-sub002/pkg/cache"
	"github.com/ericbfriday/clippyjs-sub002/pkg/core/errors"
	"github.com/ericbfriday/clippyjs-sub002/pkg/otel"
)

// ManagerConfig 管理器配置。构造后不可变。
type ManagerConfig struct {
	// CacheConfig 组装结果缓存的配置。
	CacheConfig cache.Config

	// TokenBudget 默认 Token 预算。默认 4000。
	TokenBudget int

	// MinRelevance 默认最低相关度阈值。默认 0（不过滤）。
	MinRelevance float64

	// RecencyTau 新鲜度衰减时间常数。默认 60s。
	RecencyTau time.Duration

	// GatherTimeout 单次采集周期的超时。默认 0（不限制），
	// 慢提供者拖住本次汇合，由提供者自行约束耗时。
	GatherTimeout time.Duration

	// StatsEnabled 是否统计采集次数和耗时。
	StatsEnabled bool
}

// DefaultManagerConfig 返回默认管理器配置。
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		CacheConfig:   cache.DefaultConfig(),
		TokenBudget:   4000,
		MinRelevance:  0,
		RecencyTau:    60 * time.Second,
		GatherTimeout: 0,
		StatsEnabled:  true,
	}
}

// Validate 验证管理器配置。
func (c *ManagerConfig) Validate() error {
	if c.TokenBudget <= 0 {
		return errors.WrapError(errors.ErrInvalidConfig, "token budget must be positive")
	}
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		return errors.WrapError(errors.ErrInvalidConfig, "min relevance must be between 0 and 1")
	}
	return c.CacheConfig.Validate()
}

// ManagerStats 管理器统计信息。
type ManagerStats struct {
	// Providers 已注册的提供者数量。
	Providers int `json:"providers"`

	// EnabledProviders 已启用的提供者数量。
	EnabledProviders int `json:"enabled_providers"`

	// TotalGatherings 采集调用总次数（含缓存命中）。
	TotalGatherings uint64 `json:"total_gatherings"`

	// CacheStats 缓存统计。
	CacheStats cache.Stats `json:"cache_stats"`

	// AvgGatherTimeMs 平均采集耗时（毫秒）。
	AvgGatherTimeMs float64 `json:"avg_gather_time_ms"`
}

// providerEntry 注册表条目，记录注册顺序用于分数并列时的确定性排序。
type providerEntry struct {
	provider Provider
	order    int
}

// ContextManager 情境上下文管理器。
//
// 编排提供者并行采集、相关度评分过滤、预算压缩，
// 读写组装结果缓存并汇报聚合统计。由调用方显式构造，
// 独占其缓存实例；Destroy 后所有公开操作快速失败。
type ContextManager struct {
	config   ManagerConfig
	logger   otel.Logger
	tracer   *otel.GatherTracer
	cache    cache.Cache
	scorer   Scorer
	pipeline *Pipeline
	counter  TokenCounter

	mu              sync.RWMutex
	providers       map[string]*providerEntry
	orderSeq        int
	totalGatherings uint64
	totalGatherTime time.Duration
	destroyed       bool
}

// ManagerOption 配置 ContextManager。
type ManagerOption func(*ContextManager)

// WithManagerLogger 设置日志器。
func WithManagerLogger(logger otel.Logger) ManagerOption {
	return func(m *ContextManager) {
		m.logger = logger
	}
}

// WithGatherTracer 设置采集追踪辅助器。
func WithGatherTracer(tracer *otel.GatherTracer) ManagerOption {
	return func(m *ContextManager) {
		m.tracer = tracer
	}
}

// WithCache 注入外部缓存实现（如持久化缓存）。
// 注入后管理器独占该缓存，Destroy 时一并销毁。
func WithCache(c cache.Cache) ManagerOption {
	return func(m *ContextManager) {
		m.cache = c
	}
}

// WithScorer 设置评分器。
func WithScorer(scorer Scorer) ManagerOption {
	return func(m *ContextManager) {
		m.scorer = scorer
	}
}

// WithPipeline 设置压缩流水线。
func WithPipeline(pipeline *Pipeline) ManagerOption {
	return func(m *ContextManager) {
		m.pipeline = pipeline
	}
}

// WithTokenCounter 设置 Token 计数器。
func WithTokenCounter(counter TokenCounter) ManagerOption {
	return func(m *ContextManager) {
		m.counter = counter
	}
}

// NewManager 创建情境上下文管理器。
func NewManager(config ManagerConfig, opts ...ManagerOption) (*ContextManager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &ContextManager{
		config:    config,
		logger:    otel.NewNoopLogger(),
		providers: make(map[string]*providerEntry),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.tracer == nil {
		m.tracer = otel.NewGatherTracer(nil, nil)
	}
	if m.cache == nil {
		c, err := cache.NewMemoryCache(config.CacheConfig, cache.WithLogger(m.logger))
		if err != nil {
			return nil, err
		}
		m.cache = c
	}
	if m.scorer == nil {
		m.scorer = NewDefaultScorer(config.RecencyTau)
	}
	if m.counter == nil {
		m.counter = DefaultTokenCounter()
	}
	if m.pipeline == nil {
		m.pipeline = NewPipeline(WithPipelineCounter(m.counter))
	}

	return m, nil
}

// RegisterProvider 注册提供者。重名注册替换原条目，
// 但保留原注册顺序以维持排序的确定性。
func (m *ContextManager) RegisterProvider(p Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return errors.ErrManagerDestroyed
	}

	if existing, ok := m.providers[p.Name()]; ok {
		existing.provider = p
		return nil
	}

	m.providers[p.Name()] = &providerEntry{provider: p, order: m.orderSeq}
	m.orderSeq++
	return nil
}

// UnregisterProvider 注销提供者。
func (m *ContextManager) UnregisterProvider(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return errors.ErrManagerDestroyed
	}
	if _, ok := m.providers[name]; !ok {
		return errors.WrapError(errors.ErrProviderNotFound, name)
	}

	delete(m.providers, name)
	return nil
}

// SetProviderEnabled 切换提供者的参与状态。
func (m *ContextManager) SetProviderEnabled(name string, enabled bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.destroyed {
		return errors.ErrManagerDestroyed
	}
	entry, ok := m.providers[name]
	if !ok {
		return errors.WrapError(errors.ErrProviderNotFound, name)
	}

	entry.provider.SetEnabled(enabled)
	return nil
}

// GatherContext 执行一次采集周期。
//
// 单个提供者的失败被隔离并计入 ProviderErrorCount，
// 永不传播给调用方；只有管理器已销毁或 ctx 取消会返回错误。
func (m *ContextManager) GatherContext(ctx context.Context, opts GatherOptions) (*GatherResult, error) {
	m.mu.RLock()
	if m.destroyed {
		m.mu.RUnlock()
		return nil, errors.ErrManagerDestroyed
	}
	m.mu.RUnlock()

	opts = opts.withDefaults(m.config.TokenBudget, m.config.MinRelevance)
	start := time.Now()

	ctx, span := m.tracer.StartGather(ctx, string(opts.Trigger), opts.TokenBudget)

	// 缓存快路径
	if opts.CacheKey != "" && !opts.ForceRefresh {
		if result := m.cacheLookup(ctx, opts.CacheKey); result != nil {
			result.Cached = true
			result.GatherDurationMs = time.Since(start).Milliseconds()
			m.recordGathering(time.Since(start))
			m.tracer.FinishGather(ctx, span, len(result.Blobs), nil, time.Since(start))
			return result, nil
		}
	}

	// 选择提供者并并行采集
	selected := m.selectProviders(opts)
	blobs, errCount := m.fanOut(ctx, selected)

	// 评分、过滤、排序
	scored := m.scoreAndFilter(blobs, selected, opts)

	// 压缩到预算
	kept, before, after := m.pipeline.Fit(scored, opts.TokenBudget)
	m.tracer.RecordCompression(ctx, before, after)

	result := newGatherResult()
	result.Blobs = kept
	result.TotalTokenEstimate = after
	result.ProviderErrorCount = errCount
	result.GatherDurationMs = time.Since(start).Milliseconds()

	// 缓存写回（尽力而为：失败只记日志，不影响返回）
	if opts.CacheKey != "" {
		if err := m.cache.Set(opts.CacheKey, result); err != nil {
			m.logger.Warn("context cache write failed",
				"key", opts.CacheKey, "error", err)
		}
	}

	m.recordGathering(time.Since(start))
	m.tracer.FinishGather(ctx, span, len(result.Blobs), nil, time.Since(start))

	return result, nil
}

// cacheLookup 查询缓存并还原组装结果，未命中或解码失败返回 nil。
func (m *ContextManager) cacheLookup(ctx context.Context, key string) *GatherResult {
	value, ok, err := m.cache.Get(key)
	if err != nil {
		m.logger.Warn("context cache read failed", "key", key, "error", err)
		m.tracer.RecordCacheLookup(ctx, key, false)
		return nil
	}
	if !ok {
		m.tracer.RecordCacheLookup(ctx, key, false)
		return nil
	}

	result := decodeResult(value)
	m.tracer.RecordCacheLookup(ctx, key, result != nil)
	return result
}

// decodeResult 将缓存值还原为 GatherResult。
// 持久化缓存读回的是解码后的 JSON 结构，需要二次还原。
func decodeResult(value interface{}) *GatherResult {
	switch v := value.(type) {
	case *GatherResult:
		copied := *v
		return &copied
	case GatherResult:
		copied := v
		return &copied
	default:
		data, err := sonic.Marshal(value)
		if err != nil {
			return nil
		}
		var result GatherResult
		if err := sonic.Unmarshal(data, &result); err != nil {
			return nil
		}
		if result.ID == "" {
			return nil
		}
		return &result
	}
}

// selectProviders 选出参与本周期的提供者（按注册顺序排列）。
func (m *ContextManager) selectProviders(opts GatherOptions) []*providerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	selected := make([]*providerEntry, 0, len(m.providers))
	for _, entry := range m.providers {
		p := entry.provider
		if !p.Enabled() || !opts.wantsProvider(p.Name()) || !p.ShouldInclude(opts.Trigger) {
			continue
		}
		selected = append(selected, entry)
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].order < selected[j].order
	})
	return selected
}

// fanOut 并行调用所有选中的提供者，隔离单个失败。
// 返回成功的信号块（按提供者选择顺序）和失败计数。
func (m *ContextManager) fanOut(ctx context.Context, selected []*providerEntry) ([]*ContextBlob, int) {
	if len(selected) == 0 {
		return nil, 0
	}

	if m.config.GatherTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.GatherTimeout)
		defer cancel()
	}

	results := make([]*ContextBlob, len(selected))
	errs := make([]error, len(selected))

	var wg sync.WaitGroup
	for i, entry := range selected {
		wg.Add(1)
		go func(slot int, p Provider) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[slot] = fmt.Errorf("provider panic: %v", r)
				}
			}()

			callStart := time.Now()
			blob, err := p.Gather(ctx)
			m.tracer.RecordProviderCall(ctx, p.Name(), blobCount(blob), err, time.Since(callStart))

			if err != nil {
				errs[slot] = err
				return
			}
			results[slot] = blob
		}(i, entry.provider)
	}
	wg.Wait()

	blobs := make([]*ContextBlob, 0, len(selected))
	errCount := 0
	for i := range selected {
		if errs[i] != nil {
			m.logger.Warn("context provider failed",
				"provider", selected[i].provider.Name(), "error", errs[i])
			errCount++
			continue
		}
		if results[i] != nil {
			blobs = append(blobs, results[i])
		}
	}
	return blobs, errCount
}

func blobCount(blob *ContextBlob) int {
	if blob == nil {
		return 0
	}
	return 1
}

// scoreAndFilter 评分、按阈值过滤并降序排列。
// 分数并列时按提供者注册顺序排列以保证确定性。
func (m *ContextManager) scoreAndFilter(blobs []*ContextBlob, selected []*providerEntry, opts GatherOptions) []*ScoredBlob {
	orderOf := make(map[string]int, len(selected))
	priorityOf := make(map[string]float64, len(selected))
	for _, entry := range selected {
		orderOf[entry.provider.Name()] = entry.order
		if bp, ok := entry.provider.(BasePrioritizer); ok {
			priorityOf[entry.provider.Name()] = bp.BasePriority()
		} else {
			priorityOf[entry.provider.Name()] = DefaultBasePriority
		}
	}

	scored := make([]*ScoredBlob, 0, len(blobs))
	for _, blob := range blobs {
		score := m.scorer.Score(blob, opts.Trigger, priorityOf[blob.Provider])
		if score < *opts.MinRelevance {
			continue
		}
		scored = append(scored, &ScoredBlob{Blob: blob, Score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return orderOf[scored[i].Blob.Provider] < orderOf[scored[j].Blob.Provider]
	})
	return scored
}

// recordGathering 累计采集统计。
func (m *ContextManager) recordGathering(duration time.Duration) {
	if !m.config.StatsEnabled {
		return
	}
	m.mu.Lock()
	m.totalGatherings++
	m.totalGatherTime += duration
	m.mu.Unlock()
}

// InvalidateCache 按键或整体失效缓存。
// keyOrAll 为空字符串时清空整个缓存，否则移除对应条目。
func (m *ContextManager) InvalidateCache(keyOrAll string) error {
	if keyOrAll == "" {
		return m.ClearCache()
	}
	return m.InvalidateCacheKey(keyOrAll)
}

// InvalidateCacheKey 显式移除一个缓存条目。
func (m *ContextManager) InvalidateCacheKey(key string) error {
	m.mu.RLock()
	if m.destroyed {
		m.mu.RUnlock()
		return errors.ErrManagerDestroyed
	}
	m.mu.RUnlock()

	return m.cache.Invalidate(key)
}

// ClearCache 清空缓存。
func (m *ContextManager) ClearCache() error {
	m.mu.RLock()
	if m.destroyed {
		m.mu.RUnlock()
		return errors.ErrManagerDestroyed
	}
	m.mu.RUnlock()

	return m.cache.Clear()
}

// OnCacheInvalidate 订阅缓存失效事件，返回退订函数。
func (m *ContextManager) OnCacheInvalidate(fn cache.InvalidateFunc) (func(), error) {
	m.mu.RLock()
	if m.destroyed {
		m.mu.RUnlock()
		return nil, errors.ErrManagerDestroyed
	}
	m.mu.RUnlock()

	return m.cache.OnInvalidate(fn)
}

// GetStats 返回聚合统计。
func (m *ContextManager) GetStats() (ManagerStats, error) {
	m.mu.RLock()
	if m.destroyed {
		m.mu.RUnlock()
		return ManagerStats{}, errors.ErrManagerDestroyed
	}

	stats := ManagerStats{
		Providers:       len(m.providers),
		TotalGatherings: m.totalGatherings,
	}
	for _, entry := range m.providers {
		if entry.provider.Enabled() {
			stats.EnabledProviders++
		}
	}
	if m.totalGatherings > 0 {
		stats.AvgGatherTimeMs = float64(m.totalGatherTime.Milliseconds()) / float64(m.totalGatherings)
	}
	m.mu.RUnlock()

	cacheStats, err := m.cache.GetStats()
	if err != nil {
		return ManagerStats{}, err
	}
	stats.CacheStats = cacheStats

	return stats, nil
}

// Destroy 销毁管理器及其独占的缓存。后续所有公开操作返回
// ErrManagerDestroyed。重复 Destroy 同样返回该错误。
func (m *ContextManager) Destroy() error {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return errors.ErrManagerDestroyed
	}
	m.destroyed = true
	m.providers = nil
	m.mu.Unlock()

	return m.cache.Destroy()
}
