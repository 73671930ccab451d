package config

import "time"

// EngineConfig 上下文引擎配置
type EngineConfig struct {
	// TokenBudget 组装结果的默认 Token 预算
	// 默认: 4000
	TokenBudget int `koanf:"token_budget"`
	// MinRelevance 最低相关度阈值 [0, 1]
	// 默认: 0（不过滤）
	MinRelevance float64 `koanf:"min_relevance"`
	// GatherTimeout 单次采集周期的超时时间
	// 默认: 0（不限制，由提供者自行约束耗时）
	GatherTimeout time.Duration `koanf:"gather_timeout"`
	// RecencyTau 新鲜度衰减时间常数
	// 默认: 60s
	RecencyTau time.Duration `koanf:"recency_tau"`
	// StatsEnabled 是否统计采集指标
	StatsEnabled bool `koanf:"stats_enabled"`
}

// DefaultEngineConfig 返回默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TokenBudget:   4000,
		MinRelevance:  0,
		GatherTimeout: 0,
		RecencyTau:    60 * time.Second,
		StatsEnabled:  true,
	}
}

// Validate 验证引擎配置
func (c *EngineConfig) Validate() error {
	if c.TokenBudget <= 0 {
		return ErrInvalidTokenBudget
	}
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		return ErrInvalidMinRelevance
	}
	if c.GatherTimeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// WithDefaults 返回带默认值的配置
func (c EngineConfig) WithDefaults() EngineConfig {
	defaults := DefaultEngineConfig()

	if c.TokenBudget == 0 {
		c.TokenBudget = defaults.TokenBudget
	}
	if c.RecencyTau == 0 {
		c.RecencyTau = defaults.RecencyTau
	}
	return c
}
