package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericbfriday/clippyjs-sub002/pkg/core/errors"
	"github.com/ericbfriday/clippyjs-sub002/pkg/otel"
)

// MemoryCache 内存缓存实现
//
// 所有状态变更都持有同一把互斥锁，后台清扫与前台读写互斥，
// 失效回调在锁外调用，回调内可以安全地再次操作缓存。
type MemoryCache struct {
	config  Config
	logger  otel.Logger
	metrics otel.Metrics

	mu          sync.Mutex
	entries     map[string]*Entry
	sizeBytes   int64
	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
	subscribers map[string]InvalidateFunc
	destroyed   bool

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// MemoryCacheOption 配置 MemoryCache。
type MemoryCacheOption func(*MemoryCache)

// WithLogger 设置日志器。
func WithLogger(logger otel.Logger) MemoryCacheOption {
	return func(c *MemoryCache) {
		c.logger = logger
	}
}

// WithMetrics 设置指标收集器。
func WithMetrics(metrics otel.Metrics) MemoryCacheOption {
	return func(c *MemoryCache) {
		c.metrics = metrics
	}
}

// NewMemoryCache 创建内存缓存并启动后台清扫协程。
// 配置非法时立即返回错误。
func NewMemoryCache(config Config, opts ...MemoryCacheOption) (*MemoryCache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &MemoryCache{
		config:      config,
		logger:      otel.NewNoopLogger(),
		metrics:     otel.NewNoopMetrics(),
		entries:     make(map[string]*Entry),
		subscribers: make(map[string]InvalidateFunc),
		stopSweep:   make(chan struct{}),
		sweepDone:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.sweepLoop()

	return c, nil
}

// Get 读取条目。过期条目表现为未命中并被惰性移除。
func (c *MemoryCache) Get(key string) (interface{}, bool, error) {
	now := time.Now()

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil, false, errors.ErrCacheDestroyed
	}

	entry, exists := c.entries[key]
	if !exists {
		c.countMiss()
		c.mu.Unlock()
		return nil, false, nil
	}

	if entry.Expired(now) {
		c.removeEntryLocked(key)
		if c.config.StatsEnabled {
			c.expirations++
		}
		c.countMiss()
		callbacks := c.snapshotSubscribersLocked()
		c.mu.Unlock()

		notify(callbacks, ReasonTTLExpired, key)
		return nil, false, nil
	}

	entry.LastAccessedAt = now
	entry.AccessCount++
	value := entry.Value
	c.countHit()
	c.mu.Unlock()

	return value, true, nil
}

// Set 写入条目，必要时按策略淘汰直到新条目放得下。
func (c *MemoryCache) Set(key string, value interface{}) error {
	if key == "" {
		return errors.ErrCacheKeyEmpty
	}

	size, err := EstimateSize(value)
	if err != nil {
		return err
	}
	if size > c.config.MaxSizeBytes {
		return errors.ErrEntryTooLarge
	}

	now := time.Now()
	entry := &Entry{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		LastAccessedAt: now,
		SizeBytes:      size,
		ExpiresAt:      now.Add(c.config.TTL),
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return errors.ErrCacheDestroyed
	}

	// 覆盖写先移除旧条目的记账
	if old, exists := c.entries[key]; exists {
		c.sizeBytes -= old.SizeBytes
		delete(c.entries, key)
	}

	var evicted []string
	for c.sizeBytes+size > c.config.MaxSizeBytes && len(c.entries) > 0 {
		victim := c.findVictimLocked()
		if victim == "" {
			break
		}
		c.removeEntryLocked(victim)
		if c.config.StatsEnabled {
			c.evictions++
		}
		evicted = append(evicted, victim)
	}

	c.entries[key] = entry
	c.sizeBytes += size

	callbacks := c.snapshotSubscribersLocked()
	c.mu.Unlock()

	if len(evicted) > 0 {
		c.metrics.Counter(otel.MetricCacheEvictions).Add(context.Background(), int64(len(evicted)))
	}
	for _, victim := range evicted {
		c.logger.Debug("cache entry evicted", "key", victim, "policy", string(c.config.EvictionPolicy))
		notify(callbacks, ReasonEvicted, victim)
	}

	return nil
}

// Has 检查条目是否存在且未过期。
func (c *MemoryCache) Has(key string) (bool, error) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return false, errors.ErrCacheDestroyed
	}

	entry, exists := c.entries[key]
	if !exists {
		return false, nil
	}
	return !entry.Expired(now), nil
}

// Invalidate 显式移除条目并通知订阅者。
func (c *MemoryCache) Invalidate(key string) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return errors.ErrCacheDestroyed
	}

	_, exists := c.entries[key]
	if exists {
		c.removeEntryLocked(key)
	}
	callbacks := c.snapshotSubscribersLocked()
	c.mu.Unlock()

	if exists {
		notify(callbacks, ReasonManual, key)
	}
	return nil
}

// Clear 清空所有条目并通知订阅者。
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return errors.ErrCacheDestroyed
	}

	cleared := len(c.entries)
	c.entries = make(map[string]*Entry)
	c.sizeBytes = 0
	callbacks := c.snapshotSubscribersLocked()
	c.mu.Unlock()

	if cleared > 0 {
		c.logger.Debug("cache cleared", "entries", cleared)
		notify(callbacks, ReasonManual, "")
	}
	return nil
}

// GetStats 返回统计信息快照。
func (c *MemoryCache) GetStats() (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return Stats{}, errors.ErrCacheDestroyed
	}

	return Stats{
		Hits:              c.hits,
		Misses:            c.misses,
		Evictions:         c.evictions,
		Expirations:       c.expirations,
		CurrentEntryCount: len(c.entries),
		CurrentSizeBytes:  c.sizeBytes,
	}, nil
}

// OnInvalidate 订阅失效事件。
func (c *MemoryCache) OnInvalidate(fn InvalidateFunc) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return nil, errors.ErrCacheDestroyed
	}

	id := uuid.NewString()
	c.subscribers[id] = fn

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}, nil
}

// Destroy 同步停止清扫协程并使缓存不可用。
func (c *MemoryCache) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return errors.ErrCacheDestroyed
	}
	c.destroyed = true
	c.entries = nil
	c.sizeBytes = 0
	c.subscribers = nil
	c.mu.Unlock()

	close(c.stopSweep)
	<-c.sweepDone

	c.logger.Debug("cache destroyed")
	return nil
}

// sweepLoop 周期性移除过期条目。
func (c *MemoryCache) sweepLoop() {
	defer close(c.sweepDone)

	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopSweep:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep 执行一轮过期清扫。
func (c *MemoryCache) sweep() {
	now := time.Now()

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}

	var expired []string
	for key, entry := range c.entries {
		if entry.Expired(now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		c.removeEntryLocked(key)
	}
	if c.config.StatsEnabled {
		c.expirations += uint64(len(expired))
	}
	callbacks := c.snapshotSubscribersLocked()
	c.mu.Unlock()

	if len(expired) > 0 {
		c.logger.Debug("sweep removed expired entries", "count", len(expired))
		c.metrics.Counter(otel.MetricCacheExpirations).Add(context.Background(), int64(len(expired)))
	}
	for _, key := range expired {
		notify(callbacks, ReasonTTLExpired, key)
	}
}

// findVictimLocked 按配置的策略选择淘汰目标（需要持有锁）。
func (c *MemoryCache) findVictimLocked() string {
	var victim string
	var victimEntry *Entry

	for key, entry := range c.entries {
		if victimEntry == nil || c.worseThan(entry, victimEntry) {
			victim = key
			victimEntry = entry
		}
	}

	return victim
}

// worseThan 判断 a 是否比 b 更应该被淘汰。
func (c *MemoryCache) worseThan(a, b *Entry) bool {
	switch c.config.EvictionPolicy {
	case PolicyLFU:
		if a.AccessCount != b.AccessCount {
			return a.AccessCount < b.AccessCount
		}
		return a.LastAccessedAt.Before(b.LastAccessedAt)
	case PolicyFIFO:
		return a.CreatedAt.Before(b.CreatedAt)
	case PolicyTTL:
		return a.ExpiresAt.Before(b.ExpiresAt)
	default: // PolicyLRU
		return a.LastAccessedAt.Before(b.LastAccessedAt)
	}
}

// removeEntryLocked 删除条目并更新记账（需要持有锁）。
func (c *MemoryCache) removeEntryLocked(key string) {
	if entry, exists := c.entries[key]; exists {
		c.sizeBytes -= entry.SizeBytes
		delete(c.entries, key)
	}
}

// snapshotSubscribersLocked 复制订阅者列表（需要持有锁）。
func (c *MemoryCache) snapshotSubscribersLocked() []InvalidateFunc {
	if len(c.subscribers) == 0 {
		return nil
	}
	callbacks := make([]InvalidateFunc, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		callbacks = append(callbacks, fn)
	}
	return callbacks
}

func (c *MemoryCache) countHit() {
	if c.config.StatsEnabled {
		c.hits++
	}
	c.metrics.Counter(otel.MetricCacheHits).Add(context.Background(), 1)
}

func (c *MemoryCache) countMiss() {
	if c.config.StatsEnabled {
		c.misses++
	}
	c.metrics.Counter(otel.MetricCacheMisses).Add(context.Background(), 1)
}

// notify 在锁外调用所有订阅者。
func notify(callbacks []InvalidateFunc, reason InvalidationReason, key string) {
	for _, fn := range callbacks {
		fn(reason, key)
	}
}

// 编译时接口检查
var _ Cache = (*MemoryCache)(nil)
