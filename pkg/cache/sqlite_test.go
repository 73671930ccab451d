package cache_test

import (
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ericbfriday/clippyjs-sub002/pkg/cache"
	"github.com/ericbfriday/clippyjs-sub002/pkg/core/errors"
)

func newSQLiteCache(t *testing.T, cfg cache.Config) *cache.SQLiteCache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	c, err := cache.NewSQLiteCache(dbPath, cfg)
	if err != nil {
		t.Fatalf("NewSQLiteCache() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Destroy() })
	return c
}

func TestSQLiteCacheRoundTrip(t *testing.T) {
	c := newSQLiteCache(t, testConfig())

	original := map[string]interface{}{"url": "https://example.com", "depth": float64(3)}
	if err := c.Set("k1", original); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := c.Get("k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}

	// 值以 JSON 持久化，读回后为无类型结构
	decoded, ok := value.(map[string]interface{})
	if !ok {
		t.Fatalf("Get() value type = %T, want map[string]interface{}", value)
	}
	if decoded["url"] != "https://example.com" {
		t.Errorf("decoded url = %v, want https://example.com", decoded["url"])
	}

	_, found, err = c.Get("absent")
	if err != nil {
		t.Fatalf("Get(absent) error = %v", err)
	}
	if found {
		t.Error("Get(absent) found = true, want false")
	}
}

func TestSQLiteCacheTTLExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = 30 * time.Millisecond
	c := newSQLiteCache(t, cfg)

	if err := c.Set("k1", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	_, found, err := c.Get("k1")
	if err != nil {
		t.Fatalf("Get() after expiry error = %v", err)
	}
	if found {
		t.Error("Get() after expiry found = true, want false")
	}

	stats, _ := c.GetStats()
	if stats.Expirations != 1 {
		t.Errorf("stats.Expirations = %d, want 1", stats.Expirations)
	}
	if stats.CurrentEntryCount != 0 {
		t.Errorf("stats.CurrentEntryCount = %d, want 0", stats.CurrentEntryCount)
	}
}

func TestSQLiteCacheLRUEviction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSizeBytes = 2 * 1024
	c := newSQLiteCache(t, cfg)

	if err := c.Set("e1", payload(1024)); err != nil {
		t.Fatalf("Set(e1) error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := c.Set("e2", payload(1024)); err != nil {
		t.Fatalf("Set(e2) error = %v", err)
	}

	// 重新访问 e1 让 e2 成为淘汰目标
	time.Sleep(5 * time.Millisecond)
	if _, found, _ := c.Get("e1"); !found {
		t.Fatal("Get(e1) found = false, want true")
	}

	time.Sleep(5 * time.Millisecond)
	if err := c.Set("e3", payload(1024)); err != nil {
		t.Fatalf("Set(e3) error = %v", err)
	}

	if ok, _ := c.Has("e2"); ok {
		t.Error("e2 still present, want evicted as least recently accessed")
	}
	if ok, _ := c.Has("e1"); !ok {
		t.Error("e1 evicted, want retained after re-access")
	}

	stats, _ := c.GetStats()
	if stats.Evictions != 1 {
		t.Errorf("stats.Evictions = %d, want 1", stats.Evictions)
	}
}

func TestSQLiteCacheLFUEviction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSizeBytes = 2 * 1024
	cfg.EvictionPolicy = cache.PolicyLFU
	c := newSQLiteCache(t, cfg)

	_ = c.Set("e1", payload(1024))
	_ = c.Set("e2", payload(1024))

	// e1 访问两次，e2 从未被访问
	for i := 0; i < 2; i++ {
		if _, found, _ := c.Get("e1"); !found {
			t.Fatal("Get(e1) found = false, want true")
		}
	}

	if err := c.Set("e3", payload(1024)); err != nil {
		t.Fatalf("Set(e3) error = %v", err)
	}

	if ok, _ := c.Has("e2"); ok {
		t.Error("e2 still present, want evicted as least frequently accessed")
	}
	if ok, _ := c.Has("e1"); !ok {
		t.Error("e1 evicted, want retained")
	}
}

func TestSQLiteCacheInvalidateEvents(t *testing.T) {
	c := newSQLiteCache(t, testConfig())

	var events []string
	_, err := c.OnInvalidate(func(reason cache.InvalidationReason, key string) {
		events = append(events, string(reason)+":"+key)
	})
	if err != nil {
		t.Fatalf("OnInvalidate() error = %v", err)
	}

	_ = c.Set("k1", "value")
	if err := c.Invalidate("k1"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	// 不存在的键不应触发事件
	if err := c.Invalidate("absent"); err != nil {
		t.Fatalf("Invalidate(absent) error = %v", err)
	}

	if len(events) != 1 || events[0] != "manual:k1" {
		t.Errorf("events = %v, want [manual:k1]", events)
	}
}

func TestSQLiteCachePersistsAcrossReopen(t *testing.T) {
	cfg := testConfig()
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	c1, err := cache.NewSQLiteCache(dbPath, cfg)
	if err != nil {
		t.Fatalf("NewSQLiteCache() error = %v", err)
	}
	if err := c1.Set("k1", "survives"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c1.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	c2, err := cache.NewSQLiteCache(dbPath, cfg)
	if err != nil {
		t.Fatalf("reopen NewSQLiteCache() error = %v", err)
	}
	t.Cleanup(func() { _ = c2.Destroy() })

	value, found, err := c2.Get("k1")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if !found {
		t.Fatal("Get() after reopen found = false, want true")
	}
	if value != "survives" {
		t.Errorf("Get() after reopen value = %v, want survives", value)
	}
}

func TestSQLiteCacheDestroyed(t *testing.T) {
	c := newSQLiteCache(t, testConfig())

	if err := c.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	if _, _, err := c.Get("k"); !stderrors.Is(err, errors.ErrCacheDestroyed) {
		t.Errorf("Get after Destroy error = %v, want ErrCacheDestroyed", err)
	}
	if err := c.Set("k", "v"); !stderrors.Is(err, errors.ErrCacheDestroyed) {
		t.Errorf("Set after Destroy error = %v, want ErrCacheDestroyed", err)
	}
	if err := c.Destroy(); !stderrors.Is(err, errors.ErrCacheDestroyed) {
		t.Errorf("second Destroy error = %v, want ErrCacheDestroyed", err)
	}
}
