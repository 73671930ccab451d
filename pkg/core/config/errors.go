package config

import "errors"

// 配置验证相关错误
var (
	// ErrModelRequired 模型名称必填
	ErrModelRequired = errors.New("model name is required")
	// ErrInvalidTimeout 超时时间无效
	ErrInvalidTimeout = errors.New("invalid timeout value")
	// ErrInvalidMaxRetries 重试次数无效
	ErrInvalidMaxRetries = errors.New("invalid max retries value")
	// ErrInvalidTokenBudget Token 预算无效
	ErrInvalidTokenBudget = errors.New("token budget must be positive")
	// ErrInvalidMinRelevance 相关度阈值无效
	ErrInvalidMinRelevance = errors.New("min relevance must be between 0 and 1")
)
