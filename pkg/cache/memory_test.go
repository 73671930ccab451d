package cache_test

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/ericbfriday/clippyjs-sub002/pkg/cache"
	"github.com/ericbfriday/clippyjs-sub002/pkg/core/errors"
)

// testConfig 返回便于测试的小容量配置。
func testConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.MaxSizeBytes = 4096
	cfg.TTL = time.Minute
	cfg.CleanupInterval = time.Hour // 测试中不依赖后台清扫
	return cfg
}

func newTestCache(t *testing.T, cfg cache.Config) *cache.MemoryCache {
	t.Helper()
	c, err := cache.NewMemoryCache(cfg)
	if err != nil {
		t.Fatalf("NewMemoryCache() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Destroy() })
	return c
}

// payload 生成序列化后恰好为 n 字节的字符串值。
// 字符串经 JSON 序列化后带两个引号，因此实际内容为 n-2 字节。
func payload(n int) string {
	return strings.Repeat("x", n-2)
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := newTestCache(t, testConfig())

	if err := c.Set("k1", "hello"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := c.Get("k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	if value != "hello" {
		t.Errorf("Get() value = %v, want hello", value)
	}

	_, found, err = c.Get("absent")
	if err != nil {
		t.Fatalf("Get(absent) error = %v", err)
	}
	if found {
		t.Error("Get(absent) found = true, want false")
	}
}

func TestMemoryCacheEmptyKey(t *testing.T) {
	c := newTestCache(t, testConfig())

	err := c.Set("", "value")
	if !stderrors.Is(err, errors.ErrCacheKeyEmpty) {
		t.Errorf("Set(\"\") error = %v, want ErrCacheKeyEmpty", err)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = 30 * time.Millisecond
	c := newTestCache(t, cfg)

	if err := c.Set("k1", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, found, _ := c.Get("k1"); !found {
		t.Fatal("Get() before expiry found = false, want true")
	}

	time.Sleep(60 * time.Millisecond)

	// 过期条目表现为未命中并被惰性移除
	_, found, err := c.Get("k1")
	if err != nil {
		t.Fatalf("Get() after expiry error = %v", err)
	}
	if found {
		t.Error("Get() after expiry found = true, want false")
	}

	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Expirations != 1 {
		t.Errorf("stats.Expirations = %d, want 1", stats.Expirations)
	}
	if stats.CurrentEntryCount != 0 {
		t.Errorf("stats.CurrentEntryCount = %d, want 0", stats.CurrentEntryCount)
	}
}

func TestMemoryCacheHasDoesNotCountHit(t *testing.T) {
	c := newTestCache(t, testConfig())

	if err := c.Set("k1", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	ok, err := c.Has("k1")
	if err != nil {
		t.Fatalf("Has() error = %v", err)
	}
	if !ok {
		t.Error("Has(k1) = false, want true")
	}

	ok, err = c.Has("absent")
	if err != nil {
		t.Fatalf("Has(absent) error = %v", err)
	}
	if ok {
		t.Error("Has(absent) = true, want false")
	}

	stats, _ := c.GetStats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("stats = %d hits / %d misses after Has, want 0 / 0", stats.Hits, stats.Misses)
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSizeBytes = 3 * 1024
	c := newTestCache(t, cfg)

	// 三个各 1KB 的条目恰好填满容量
	if err := c.Set("e1", payload(1024)); err != nil {
		t.Fatalf("Set(e1) error = %v", err)
	}
	if err := c.Set("e2", payload(1024)); err != nil {
		t.Fatalf("Set(e2) error = %v", err)
	}
	if err := c.Set("e3", payload(1024)); err != nil {
		t.Fatalf("Set(e3) error = %v", err)
	}

	// 重新访问 e1，使 e2 成为最久未访问的条目
	time.Sleep(5 * time.Millisecond)
	if _, found, _ := c.Get("e1"); !found {
		t.Fatal("Get(e1) found = false, want true")
	}

	time.Sleep(5 * time.Millisecond)
	if err := c.Set("e4", payload(1024)); err != nil {
		t.Fatalf("Set(e4) error = %v", err)
	}

	if ok, _ := c.Has("e2"); ok {
		t.Error("e2 still present, want evicted as least recently accessed")
	}
	if ok, _ := c.Has("e1"); !ok {
		t.Error("e1 evicted, want retained after re-access")
	}
	if ok, _ := c.Has("e4"); !ok {
		t.Error("e4 missing, want present after insert")
	}

	stats, _ := c.GetStats()
	if stats.Evictions != 1 {
		t.Errorf("stats.Evictions = %d, want 1", stats.Evictions)
	}
}

func TestMemoryCacheLFUEviction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSizeBytes = 3 * 1024
	cfg.EvictionPolicy = cache.PolicyLFU
	c := newTestCache(t, cfg)

	for _, key := range []string{"e1", "e2", "e3"} {
		if err := c.Set(key, payload(1024)); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	// e2 访问三次，e1 访问一次，e3 从未被访问
	for i := 0; i < 3; i++ {
		if _, found, _ := c.Get("e2"); !found {
			t.Fatal("Get(e2) found = false, want true")
		}
	}
	if _, found, _ := c.Get("e1"); !found {
		t.Fatal("Get(e1) found = false, want true")
	}

	if err := c.Set("e4", payload(1024)); err != nil {
		t.Fatalf("Set(e4) error = %v", err)
	}

	// e3 访问次数最少，应当被淘汰
	if ok, _ := c.Has("e3"); ok {
		t.Error("e3 still present, want evicted as least frequently accessed")
	}
	if ok, _ := c.Has("e2"); !ok {
		t.Error("e2 evicted, want retained with highest access count")
	}
	if ok, _ := c.Has("e1"); !ok {
		t.Error("e1 evicted, want retained")
	}
}

func TestMemoryCacheFIFOEviction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSizeBytes = 2 * 1024
	cfg.EvictionPolicy = cache.PolicyFIFO
	c := newTestCache(t, cfg)

	if err := c.Set("first", payload(1024)); err != nil {
		t.Fatalf("Set(first) error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := c.Set("second", payload(1024)); err != nil {
		t.Fatalf("Set(second) error = %v", err)
	}

	// 访问 first 不应改变 FIFO 的淘汰顺序
	if _, found, _ := c.Get("first"); !found {
		t.Fatal("Get(first) found = false, want true")
	}

	time.Sleep(5 * time.Millisecond)
	if err := c.Set("third", payload(1024)); err != nil {
		t.Fatalf("Set(third) error = %v", err)
	}

	if ok, _ := c.Has("first"); ok {
		t.Error("first still present, want evicted as oldest insert")
	}
	if ok, _ := c.Has("second"); !ok {
		t.Error("second evicted, want retained")
	}
}

func TestMemoryCacheEntryTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSizeBytes = 64
	c := newTestCache(t, cfg)

	err := c.Set("big", payload(128))
	if !stderrors.Is(err, errors.ErrEntryTooLarge) {
		t.Errorf("Set(oversized) error = %v, want ErrEntryTooLarge", err)
	}
}

func TestMemoryCacheOverwriteAccounting(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSizeBytes = 2 * 1024
	c := newTestCache(t, cfg)

	if err := c.Set("k1", payload(1024)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	// 覆盖写不应触发对自身旧值的容量误判
	if err := c.Set("k1", payload(1500)); err != nil {
		t.Fatalf("overwrite Set() error = %v", err)
	}

	stats, _ := c.GetStats()
	if stats.CurrentEntryCount != 1 {
		t.Errorf("stats.CurrentEntryCount = %d, want 1", stats.CurrentEntryCount)
	}
	if stats.CurrentSizeBytes != 1500 {
		t.Errorf("stats.CurrentSizeBytes = %d, want 1500", stats.CurrentSizeBytes)
	}
	if stats.Evictions != 0 {
		t.Errorf("stats.Evictions = %d, want 0", stats.Evictions)
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	c := newTestCache(t, testConfig())

	var events []string
	unsubscribe, err := c.OnInvalidate(func(reason cache.InvalidationReason, key string) {
		events = append(events, string(reason)+":"+key)
	})
	if err != nil {
		t.Fatalf("OnInvalidate() error = %v", err)
	}

	if err := c.Set("k1", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Invalidate("k1"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if ok, _ := c.Has("k1"); ok {
		t.Error("k1 still present after Invalidate")
	}

	// 不存在的键不应触发事件
	if err := c.Invalidate("absent"); err != nil {
		t.Fatalf("Invalidate(absent) error = %v", err)
	}

	if len(events) != 1 || events[0] != "manual:k1" {
		t.Errorf("events = %v, want [manual:k1]", events)
	}

	unsubscribe()
	_ = c.Set("k2", "value")
	_ = c.Invalidate("k2")
	if len(events) != 1 {
		t.Errorf("events after unsubscribe = %v, want unchanged", events)
	}
}

func TestMemoryCacheClear(t *testing.T) {
	c := newTestCache(t, testConfig())

	var events []string
	_, err := c.OnInvalidate(func(reason cache.InvalidationReason, key string) {
		events = append(events, string(reason)+":"+key)
	})
	if err != nil {
		t.Fatalf("OnInvalidate() error = %v", err)
	}

	// 空缓存 Clear 不触发事件
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() on empty error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events after empty Clear = %v, want none", events)
	}

	_ = c.Set("k1", "a")
	_ = c.Set("k2", "b")
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	stats, _ := c.GetStats()
	if stats.CurrentEntryCount != 0 || stats.CurrentSizeBytes != 0 {
		t.Errorf("stats after Clear = %d entries / %d bytes, want 0 / 0",
			stats.CurrentEntryCount, stats.CurrentSizeBytes)
	}
	if len(events) != 1 || events[0] != "manual:" {
		t.Errorf("events = %v, want single manual event with empty key", events)
	}
}

func TestMemoryCacheEvictionEvents(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSizeBytes = 1024
	c := newTestCache(t, cfg)

	var reasons []cache.InvalidationReason
	_, err := c.OnInvalidate(func(reason cache.InvalidationReason, key string) {
		reasons = append(reasons, reason)
	})
	if err != nil {
		t.Fatalf("OnInvalidate() error = %v", err)
	}

	_ = c.Set("e1", payload(800))
	if err := c.Set("e2", payload(800)); err != nil {
		t.Fatalf("Set(e2) error = %v", err)
	}

	if len(reasons) != 1 || reasons[0] != cache.ReasonEvicted {
		t.Errorf("reasons = %v, want [evicted]", reasons)
	}
}

func TestMemoryCacheStats(t *testing.T) {
	c := newTestCache(t, testConfig())

	_ = c.Set("k1", "value")
	_, _, _ = c.Get("k1")
	_, _, _ = c.Get("k1")
	_, _, _ = c.Get("absent")

	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Hits != 2 {
		t.Errorf("stats.Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("stats.Misses = %d, want 1", stats.Misses)
	}
	if got := stats.HitRate(); got < 0.66 || got > 0.67 {
		t.Errorf("HitRate() = %v, want 2/3", got)
	}
}

func TestMemoryCacheStatsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.StatsEnabled = false
	c := newTestCache(t, cfg)

	_ = c.Set("k1", "value")
	_, _, _ = c.Get("k1")
	_, _, _ = c.Get("absent")

	stats, _ := c.GetStats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("stats = %d hits / %d misses with stats disabled, want 0 / 0", stats.Hits, stats.Misses)
	}
	// 条目数与字节数始终维护，与统计开关无关
	if stats.CurrentEntryCount != 1 {
		t.Errorf("stats.CurrentEntryCount = %d, want 1", stats.CurrentEntryCount)
	}
}

func TestMemoryCacheDestroyed(t *testing.T) {
	c := newTestCache(t, testConfig())

	if err := c.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	tests := []struct {
		name string
		op   func() error
	}{
		{"Get", func() error { _, _, err := c.Get("k"); return err }},
		{"Set", func() error { return c.Set("k", "v") }},
		{"Has", func() error { _, err := c.Has("k"); return err }},
		{"Invalidate", func() error { return c.Invalidate("k") }},
		{"Clear", func() error { return c.Clear() }},
		{"GetStats", func() error { _, err := c.GetStats(); return err }},
		{"OnInvalidate", func() error {
			_, err := c.OnInvalidate(func(cache.InvalidationReason, string) {})
			return err
		}},
		{"Destroy", func() error { return c.Destroy() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); !stderrors.Is(err, errors.ErrCacheDestroyed) {
				t.Errorf("%s after Destroy error = %v, want ErrCacheDestroyed", tt.name, err)
			}
		})
	}
}

func TestMemoryCacheConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*cache.Config)
	}{
		{"zero max size", func(c *cache.Config) { c.MaxSizeBytes = 0 }},
		{"negative max size", func(c *cache.Config) { c.MaxSizeBytes = -1 }},
		{"zero ttl", func(c *cache.Config) { c.TTL = 0 }},
		{"negative ttl", func(c *cache.Config) { c.TTL = -time.Second }},
		{"unknown policy", func(c *cache.Config) { c.EvictionPolicy = "random" }},
		{"zero cleanup interval", func(c *cache.Config) { c.CleanupInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cache.DefaultConfig()
			tt.mutate(&cfg)

			_, err := cache.NewMemoryCache(cfg)
			if !stderrors.Is(err, errors.ErrInvalidConfig) {
				t.Errorf("NewMemoryCache() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestMemoryCacheBackgroundSweep(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = 20 * time.Millisecond
	cfg.CleanupInterval = 10 * time.Millisecond
	c := newTestCache(t, cfg)

	events := make(chan string, 4)
	_, err := c.OnInvalidate(func(reason cache.InvalidationReason, key string) {
		events <- string(reason) + ":" + key
	})
	if err != nil {
		t.Fatalf("OnInvalidate() error = %v", err)
	}

	if err := c.Set("k1", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	select {
	case got := <-events:
		if got != "ttl-expired:k1" {
			t.Errorf("event = %q, want ttl-expired:k1", got)
		}
	case <-time.After(time.Second):
		t.Fatal("sweep did not emit expiration event within 1s")
	}
}
