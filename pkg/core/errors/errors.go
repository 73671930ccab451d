// Package errors 定义助手上下文引擎的通用错误类型
package errors

import (
	"errors"
	"fmt"
)

// 通用错误
var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrContextCanceled 上下文被取消
	ErrContextCanceled = errors.New("context canceled")
)

// 缓存相关错误
var (
	// ErrCacheDestroyed 缓存已销毁，所有后续操作都必须失败
	ErrCacheDestroyed = errors.New("cache destroyed")
	// ErrCacheKeyEmpty 缓存键为空
	ErrCacheKeyEmpty = errors.New("cache key is empty")
	// ErrEntryTooLarge 单个条目超过缓存总容量，无法写入
	ErrEntryTooLarge = errors.New("entry exceeds cache size budget")
	// ErrInvalidEvictionPolicy 未知的淘汰策略
	ErrInvalidEvictionPolicy = errors.New("invalid eviction policy")
)

// 管理器相关错误
var (
	// ErrManagerDestroyed 管理器已销毁
	ErrManagerDestroyed = errors.New("context manager destroyed")
	// ErrProviderNotFound 信号提供者未注册
	ErrProviderNotFound = errors.New("provider not found")
)

// 对话层相关错误
var (
	// ErrInvalidAPIKey API 密钥无效
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrEmptyContext 没有可用的上下文内容
	ErrEmptyContext = errors.New("empty context")
)

// WrapError 包装错误并添加上下文信息
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// IsDestroyed 判断错误是否为销毁后误用
func IsDestroyed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCacheDestroyed) ||
		errors.Is(err, ErrManagerDestroyed)
}
