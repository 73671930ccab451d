// Package cache 为上下文引擎提供有界、支持 TTL 的结果缓存。
//
// 缓存按序列化字节数记账，写入超出容量时按配置的淘汰策略
// （lru / lfu / fifo / ttl）腾出空间；后台清扫协程周期性移除
// 过期条目并向订阅者推送失效事件。
package cache

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/ericbfriday/clippyjs-sub002/pkg/core/errors"
)

// EvictionPolicy 淘汰策略
type EvictionPolicy string

const (
	// PolicyLRU 淘汰最久未访问的条目
	PolicyLRU EvictionPolicy = "lru"
	// PolicyLFU 淘汰访问次数最少的条目（并列时取最久未访问）
	PolicyLFU EvictionPolicy = "lfu"
	// PolicyFIFO 淘汰最早写入的条目，与访问模式无关
	PolicyFIFO EvictionPolicy = "fifo"
	// PolicyTTL 淘汰最接近过期的条目，与访问模式无关
	PolicyTTL EvictionPolicy = "ttl"
)

// InvalidationReason 失效事件的原因
type InvalidationReason string

const (
	// ReasonManual 显式 Invalidate/Clear 触发
	ReasonManual InvalidationReason = "manual"
	// ReasonTTLExpired TTL 到期（清扫或惰性移除）触发
	ReasonTTLExpired InvalidationReason = "ttl-expired"
	// ReasonEvicted 容量淘汰触发
	ReasonEvicted InvalidationReason = "evicted"
)

// InvalidateFunc 失效事件回调。Clear 触发时 key 为空字符串。
type InvalidateFunc func(reason InvalidationReason, key string)

// Cache 定义上下文结果缓存的统一契约。
//
// 所有实现都必须满足：过期条目的 Get 表现为未命中并触发惰性移除；
// Destroy 之后的任何操作返回 errors.ErrCacheDestroyed 而不是静默空操作。
type Cache interface {
	// Get 读取条目，未命中或过期返回 (nil, false)。
	Get(key string) (interface{}, bool, error)

	// Set 写入条目，必要时按策略淘汰旧条目。
	Set(key string, value interface{}) error

	// Has 检查条目是否存在且未过期，不影响命中统计。
	Has(key string) (bool, error)

	// Invalidate 显式移除一个条目。
	Invalidate(key string) error

	// Clear 清空所有条目。
	Clear() error

	// GetStats 返回当前统计信息。
	GetStats() (Stats, error)

	// OnInvalidate 订阅失效事件，返回取消订阅函数。
	OnInvalidate(fn InvalidateFunc) (func(), error)

	// Destroy 停止后台清扫并使缓存不可用。
	Destroy() error
}

// Config 缓存配置，构造后不可变。
type Config struct {
	// MaxSizeBytes 所有条目序列化后的总字节上限
	MaxSizeBytes int64 `koanf:"max_size_bytes" validate:"gt=0"`
	// TTL 条目存活时间
	TTL time.Duration `koanf:"ttl" validate:"gt=0"`
	// EvictionPolicy 淘汰策略
	EvictionPolicy EvictionPolicy `koanf:"eviction_policy" validate:"oneof=lru lfu fifo ttl"`
	// StatsEnabled 是否统计命中/未命中/淘汰计数
	StatsEnabled bool `koanf:"stats_enabled"`
	// CleanupInterval 后台清扫间隔
	CleanupInterval time.Duration `koanf:"cleanup_interval" validate:"gt=0"`
}

// DefaultConfig 返回具有合理默认值的 Config。
func DefaultConfig() Config {
	return Config{
		MaxSizeBytes:    1 << 20, // 1 MiB
		TTL:             5 * time.Minute,
		EvictionPolicy:  PolicyLRU,
		StatsEnabled:    true,
		CleanupInterval: 30 * time.Second,
	}
}

var validate = validator.New()

// Validate 校验配置，非法的容量/TTL/策略立即失败而不是被悄悄修正。
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.WrapError(errors.ErrInvalidConfig, err.Error())
	}
	return nil
}

// Entry 缓存条目，由缓存独占持有，每次读写都会更新访问信息。
type Entry struct {
	Key            string      `json:"key"`
	Value          interface{} `json:"value"`
	CreatedAt      time.Time   `json:"created_at"`
	LastAccessedAt time.Time   `json:"last_accessed_at"`
	AccessCount    int64       `json:"access_count"`
	SizeBytes      int64       `json:"size_bytes"`
	ExpiresAt      time.Time   `json:"expires_at"`
}

// Expired 判断条目在给定时刻是否已过期。
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Stats 缓存统计信息
type Stats struct {
	// Hits 命中次数
	Hits uint64 `json:"hits"`
	// Misses 未命中次数
	Misses uint64 `json:"misses"`
	// Evictions 容量淘汰次数
	Evictions uint64 `json:"evictions"`
	// Expirations TTL 过期移除次数
	Expirations uint64 `json:"expirations"`
	// CurrentEntryCount 当前条目数量
	CurrentEntryCount int `json:"current_entry_count"`
	// CurrentSizeBytes 当前总字节数
	CurrentSizeBytes int64 `json:"current_size_bytes"`
}

// HitRate 返回命中率 [0, 1]，无访问时为 0。
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// EstimateSize 估算值的序列化字节数。
func EstimateSize(value interface{}) (int64, error) {
	data, err := sonic.Marshal(value)
	if err != nil {
		return 0, errors.WrapError(err, "failed to estimate entry size")
	}
	return int64(len(data)), nil
}
