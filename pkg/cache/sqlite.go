package cache

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ericbfriday/clippyjs-sub002/pkg/core/errors"
	"github.com/ericbfriday/clippyjs-sub002/pkg/otel"
)

// SQLiteCache 基于 SQLite 的持久化缓存
//
// 实现与 MemoryCache 相同的 Cache 契约，供需要跨进程重启保留
// 已组装上下文的宿主使用。条目值以 JSON 存储，读回后是解码产物；
// 调用方（管理器）负责按需还原具体类型。
type SQLiteCache struct {
	config  Config
	logger  otel.Logger
	db      *sql.DB
	decoder func(data []byte) (interface{}, error)

	mu          sync.Mutex
	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
	subscribers map[string]InvalidateFunc
	destroyed   bool

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// SQLiteCacheOption 配置 SQLiteCache。
type SQLiteCacheOption func(*SQLiteCache)

// WithSQLiteLogger 设置日志器。
func WithSQLiteLogger(logger otel.Logger) SQLiteCacheOption {
	return func(c *SQLiteCache) {
		c.logger = logger
	}
}

// WithValueDecoder 设置条目值的解码函数。
// 默认解码为无类型的 JSON 结构。
func WithValueDecoder(decoder func(data []byte) (interface{}, error)) SQLiteCacheOption {
	return func(c *SQLiteCache) {
		c.decoder = decoder
	}
}

// NewSQLiteCache 打开（或创建）数据库文件并初始化表结构。
func NewSQLiteCache(dbPath string, config Config, opts ...SQLiteCacheOption) (*SQLiteCache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.WrapError(err, "failed to open cache database")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.WrapError(err, "failed to ping cache database")
	}

	c := &SQLiteCache{
		config: config,
		logger: otel.NewNoopLogger(),
		db:     db,
		decoder: func(data []byte) (interface{}, error) {
			var value interface{}
			if err := sonic.Unmarshal(data, &value); err != nil {
				return nil, err
			}
			return value, nil
		},
		subscribers: make(map[string]InvalidateFunc),
		stopSweep:   make(chan struct{}),
		sweepDone:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.initSchema(); err != nil {
		return nil, errors.WrapError(err, "failed to init cache schema")
	}

	go c.sweepLoop()

	return c, nil
}

// initSchema 初始化表结构。
func (c *SQLiteCache) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		last_accessed_at INTEGER NOT NULL,
		access_count INTEGER NOT NULL DEFAULT 0,
		size_bytes INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache_entries(expires_at);
	`

	_, err := c.db.Exec(query)
	return err
}

// Get 读取条目，过期条目表现为未命中并被惰性删除。
func (c *SQLiteCache) Get(key string) (interface{}, bool, error) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil, false, errors.ErrCacheDestroyed
	}
	c.mu.Unlock()

	now := time.Now().UnixMilli()

	var data string
	var expiresAt int64
	err := c.db.QueryRow(
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		c.countMiss()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WrapError(err, "cache read failed")
	}

	if now > expiresAt {
		_, _ = c.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
		c.mu.Lock()
		if c.config.StatsEnabled {
			c.expirations++
		}
		callbacks := c.snapshotSubscribersLocked()
		c.mu.Unlock()

		c.countMiss()
		notify(callbacks, ReasonTTLExpired, key)
		return nil, false, nil
	}

	_, _ = c.db.Exec(
		`UPDATE cache_entries SET last_accessed_at = ?, access_count = access_count + 1 WHERE key = ?`,
		now, key,
	)

	value, err := c.decoder([]byte(data))
	if err != nil {
		return nil, false, errors.WrapError(err, "failed to decode cache entry")
	}

	c.countHit()
	return value, true, nil
}

// Set 写入条目，空间不足时按策略删除旧行。
func (c *SQLiteCache) Set(key string, value interface{}) error {
	if key == "" {
		return errors.ErrCacheKeyEmpty
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return errors.ErrCacheDestroyed
	}
	c.mu.Unlock()

	data, err := sonic.Marshal(value)
	if err != nil {
		return errors.WrapError(err, "failed to encode cache entry")
	}
	size := int64(len(data))
	if size > c.config.MaxSizeBytes {
		return errors.ErrEntryTooLarge
	}

	now := time.Now()
	nowMs := now.UnixMilli()

	// 覆盖写不计入已用空间
	var used sql.NullInt64
	if err := c.db.QueryRow(
		`SELECT SUM(size_bytes) FROM cache_entries WHERE key != ?`, key,
	).Scan(&used); err != nil {
		return errors.WrapError(err, "cache size accounting failed")
	}

	var evicted []string
	for used.Valid && used.Int64+size > c.config.MaxSizeBytes {
		victim, victimSize, err := c.findVictim(key)
		if err != nil || victim == "" {
			break
		}
		if _, err := c.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, victim); err != nil {
			return errors.WrapError(err, "cache eviction failed")
		}
		used.Int64 -= victimSize
		evicted = append(evicted, victim)
	}

	query := `
	INSERT INTO cache_entries (key, value, created_at, last_accessed_at, access_count, size_bytes, expires_at)
	VALUES (?, ?, ?, ?, 0, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		created_at = excluded.created_at,
		last_accessed_at = excluded.last_accessed_at,
		access_count = 0,
		size_bytes = excluded.size_bytes,
		expires_at = excluded.expires_at
	`
	if _, err := c.db.Exec(query, key, string(data), nowMs, nowMs, size, now.Add(c.config.TTL).UnixMilli()); err != nil {
		return errors.WrapError(err, "cache write failed")
	}

	c.mu.Lock()
	if c.config.StatsEnabled {
		c.evictions += uint64(len(evicted))
	}
	callbacks := c.snapshotSubscribersLocked()
	c.mu.Unlock()

	for _, victim := range evicted {
		notify(callbacks, ReasonEvicted, victim)
	}
	return nil
}

// findVictim 按策略选出一条淘汰目标（跳过正在写入的键）。
func (c *SQLiteCache) findVictim(excludeKey string) (string, int64, error) {
	var orderBy string
	switch c.config.EvictionPolicy {
	case PolicyLFU:
		orderBy = "access_count ASC, last_accessed_at ASC"
	case PolicyFIFO:
		orderBy = "created_at ASC"
	case PolicyTTL:
		orderBy = "expires_at ASC"
	default: // PolicyLRU
		orderBy = "last_accessed_at ASC"
	}

	query := fmt.Sprintf(
		`SELECT key, size_bytes FROM cache_entries WHERE key != ? ORDER BY %s LIMIT 1`, orderBy,
	)

	var key string
	var size int64
	err := c.db.QueryRow(query, excludeKey).Scan(&key, &size)
	if err == sql.ErrNoRows {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	return key, size, nil
}

// Has 检查条目是否存在且未过期。
func (c *SQLiteCache) Has(key string) (bool, error) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return false, errors.ErrCacheDestroyed
	}
	c.mu.Unlock()

	var expiresAt int64
	err := c.db.QueryRow(
		`SELECT expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.WrapError(err, "cache read failed")
	}
	return time.Now().UnixMilli() <= expiresAt, nil
}

// Invalidate 显式移除条目。
func (c *SQLiteCache) Invalidate(key string) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return errors.ErrCacheDestroyed
	}
	callbacks := c.snapshotSubscribersLocked()
	c.mu.Unlock()

	result, err := c.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
	if err != nil {
		return errors.WrapError(err, "cache invalidate failed")
	}
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		notify(callbacks, ReasonManual, key)
	}
	return nil
}

// Clear 清空所有条目。
func (c *SQLiteCache) Clear() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return errors.ErrCacheDestroyed
	}
	callbacks := c.snapshotSubscribersLocked()
	c.mu.Unlock()

	if _, err := c.db.Exec(`DELETE FROM cache_entries`); err != nil {
		return errors.WrapError(err, "cache clear failed")
	}
	notify(callbacks, ReasonManual, "")
	return nil
}

// GetStats 返回统计信息。
func (c *SQLiteCache) GetStats() (Stats, error) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return Stats{}, errors.ErrCacheDestroyed
	}
	stats := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
	c.mu.Unlock()

	var count int
	var size sql.NullInt64
	if err := c.db.QueryRow(`SELECT COUNT(*), SUM(size_bytes) FROM cache_entries`).Scan(&count, &size); err != nil {
		return Stats{}, errors.WrapError(err, "cache stats failed")
	}
	stats.CurrentEntryCount = count
	if size.Valid {
		stats.CurrentSizeBytes = size.Int64
	}
	return stats, nil
}

// OnInvalidate 订阅失效事件。
func (c *SQLiteCache) OnInvalidate(fn InvalidateFunc) (func(), error) {
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

// Destroy 停止清扫协程并关闭数据库连接。
func (c *SQLiteCache) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return errors.ErrCacheDestroyed
	}
	c.destroyed = true
	c.subscribers = nil
	c.mu.Unlock()

	close(c.stopSweep)
	<-c.sweepDone

	return c.db.Close()
}

// sweepLoop 周期性清理过期行。
func (c *SQLiteCache) sweepLoop() {
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

// sweep 删除所有已过期的行并通知订阅者。
func (c *SQLiteCache) sweep() {
	now := time.Now().UnixMilli()

	rows, err := c.db.Query(`SELECT key FROM cache_entries WHERE expires_at < ?`, now)
	if err != nil {
		c.logger.Error("cache sweep query failed", "error", err)
		return
	}

	var expired []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err == nil {
			expired = append(expired, key)
		}
	}
	_ = rows.Close()

	if len(expired) == 0 {
		return
	}

	if _, err := c.db.Exec(`DELETE FROM cache_entries WHERE expires_at < ?`, now); err != nil {
		c.logger.Error("cache sweep delete failed", "error", err)
		return
	}

	c.mu.Lock()
	if c.config.StatsEnabled {
		c.expirations += uint64(len(expired))
	}
	callbacks := c.snapshotSubscribersLocked()
	c.mu.Unlock()

	for _, key := range expired {
		notify(callbacks, ReasonTTLExpired, key)
	}
}

func (c *SQLiteCache) snapshotSubscribersLocked() []InvalidateFunc {
	if len(c.subscribers) == 0 {
		return nil
	}
	callbacks := make([]InvalidateFunc, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		callbacks = append(callbacks, fn)
	}
	return callbacks
}

func (c *SQLiteCache) countHit() {
	c.mu.Lock()
	if c.config.StatsEnabled {
		c.hits++
	}
	c.mu.Unlock()
}

func (c *SQLiteCache) countMiss() {
	c.mu.Lock()
	if c.config.StatsEnabled {
		c.misses++
	}
	c.mu.Unlock()
}

// 编译时接口检查
var _ Cache = (*SQLiteCache)(nil)
