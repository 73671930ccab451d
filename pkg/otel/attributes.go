package otel

import "go.opentelemetry.io/otel/attribute"

// 预定义的语义属性键
// 遵循 OpenTelemetry 语义约定
const (
	// Provider 相关属性
	AttrProviderName     = "provider.name"
	AttrProviderDuration = "provider.duration_ms"
	AttrProviderBlobs    = "provider.blob_count"

	// 采集相关属性
	AttrGatherTrigger     = "gather.trigger"
	AttrGatherCacheKey    = "gather.cache_key"
	AttrGatherCacheHit    = "gather.cache_hit"
	AttrGatherBlobCount   = "gather.blob_count"
	AttrGatherTokenBudget = "gather.token_budget"

	// 信号块相关属性
	AttrBlobType      = "blob.type"
	AttrBlobScore     = "blob.score"
	AttrBlobEssential = "blob.essential"
	AttrBlobTokens    = "blob.tokens"

	// 缓存相关属性
	AttrCacheKey    = "cache.key"
	AttrCachePolicy = "cache.policy"
	AttrCacheReason = "cache.invalidation_reason"

	// 对话相关属性
	AttrChatModel        = "chat.model"
	AttrChatPromptTokens = "chat.prompt_tokens"
	AttrChatTotalTokens  = "chat.total_tokens"

	// Error 相关属性
	AttrErrorType      = "error.type"
	AttrErrorMessage   = "error.message"
	AttrErrorRetryable = "error.retryable"
)

// ProviderName 创建提供者名称属性
func ProviderName(name string) attribute.KeyValue {
	return attribute.String(AttrProviderName, name)
}

// ProviderDuration 创建提供者耗时属性（毫秒）
func ProviderDuration(ms int64) attribute.KeyValue {
	return attribute.Int64(AttrProviderDuration, ms)
}

// GatherTrigger 创建采集触发来源属性
func GatherTrigger(trigger string) attribute.KeyValue {
	return attribute.String(AttrGatherTrigger, trigger)
}

// GatherCacheHit 创建缓存命中属性
func GatherCacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrGatherCacheHit, hit)
}

// BlobType 创建信号块类型属性
func BlobType(typ string) attribute.KeyValue {
	return attribute.String(AttrBlobType, typ)
}

// BlobScore 创建信号块相关度属性
func BlobScore(score float64) attribute.KeyValue {
	return attribute.Float64(AttrBlobScore, score)
}

// CachePolicy 创建缓存淘汰策略属性
func CachePolicy(policy string) attribute.KeyValue {
	return attribute.String(AttrCachePolicy, policy)
}

// ChatModel 创建对话模型属性
func ChatModel(model string) attribute.KeyValue {
	return attribute.String(AttrChatModel, model)
}

// ErrorAttrs 创建错误属性
func ErrorAttrs(errType, message string, retryable bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, message),
		attribute.Bool(AttrErrorRetryable, retryable),
	}
}
