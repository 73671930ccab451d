// Package config 提供配置加载和管理功能
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/ericbfriday/clippyjs-sub002/pkg/cache"
	"github.com/ericbfriday/clippyjs-sub002/pkg/otel"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "ASSISTANT_"

// Config 全局配置结构
type Config struct {
	// Engine 上下文引擎配置
	Engine EngineConfig `koanf:"engine"`
	// Cache 缓存配置
	Cache cache.Config `koanf:"cache"`
	// Chat 对话配置
	Chat ChatConfig `koanf:"chat"`
	// Observability 可观测性配置
	Observability otel.Config `koanf:"observability"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Chat.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}

// Loader 配置加载器
type Loader struct {
	k *koanf.Koanf
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{
		k: koanf.New("."),
	}
}

// LoadEnv 从环境变量加载配置
func (l *Loader) LoadEnv(prefix string) error {
	return l.k.Load(env.Provider(prefix, ".", func(s string) string {
		// 转换环境变量名: ASSISTANT_CACHE_MAX_SIZE_BYTES -> cache.max_size_bytes
		s = strings.TrimPrefix(s, prefix)
		s = strings.ToLower(s)
		return strings.Replace(s, "_", ".", 1)
	}), nil)
}

// Unmarshal 解析配置到结构体
func (l *Loader) Unmarshal(cfg *Config) error {
	return l.k.Unmarshal("", cfg)
}

// Get 获取配置值
func (l *Loader) Get(key string) interface{} {
	return l.k.Get(key)
}

// GetString 获取字符串配置值
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// GetInt 获取整数配置值
func (l *Loader) GetInt(key string) int {
	return l.k.Int(key)
}

// GetBool 获取布尔配置值
func (l *Loader) GetBool(key string) bool {
	return l.k.Bool(key)
}

// GetDuration 获取时间间隔配置值
func (l *Loader) GetDuration(key string) time.Duration {
	return l.k.Duration(key)
}

// Load 从环境变量加载完整配置并验证
func Load() (*Config, error) {
	loader := NewLoader()

	if err := loader.LoadEnv(EnvPrefix); err != nil {
		return nil, err
	}

	cfg := &Config{
		Engine:        DefaultEngineConfig(),
		Cache:         cache.DefaultConfig(),
		Chat:          DefaultChatConfig(),
		Observability: otel.DefaultConfig(),
	}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, err
	}

	cfg.Engine = cfg.Engine.WithDefaults()
	cfg.Chat = cfg.Chat.WithDefaults()
	cfg.Observability = cfg.Observability.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
