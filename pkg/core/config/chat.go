package config

import "time"

// ChatConfig 对话配置
type ChatConfig struct {
	// APIKey API 密钥
	APIKey string `koanf:"api_key"`
	// Model 模型名称
	Model string `koanf:"model"`
	// BaseURL 自定义 API 端点
	BaseURL string `koanf:"base_url"`
	// Timeout 请求超时时间
	// 默认: 30s, 最大: 5m
	Timeout time.Duration `koanf:"timeout"`
	// MaxRetries 最大重试次数
	// 默认: 3, 最大: 10
	MaxRetries int `koanf:"max_retries"`
}

// DefaultChatConfig 返回默认对话配置
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		Model:      "gpt-4o-mini",
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// Validate 验证对话配置。只校验不修改，越界值由 WithDefaults 收敛。
func (c *ChatConfig) Validate() error {
	if c.Model == "" {
		return ErrModelRequired
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	return nil
}

// WithDefaults 返回带默认值的配置，超过上限的值收敛到上限。
func (c ChatConfig) WithDefaults() ChatConfig {
	defaults := DefaultChatConfig()

	if c.Model == "" {
		c.Model = defaults.Model
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.Timeout > 5*time.Minute {
		c.Timeout = 5 * time.Minute
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.MaxRetries > 10 {
		c.MaxRetries = 10
	}
	return c
}
