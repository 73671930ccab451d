package context

import (
	"time"

	"github.com/google/uuid"
)

// ContextBlob 表示一个提供者在单次采集周期中产出的信号块。
// 产出后不可变；由管理器在一个采集周期内持有，
// 之后要么丢弃，要么随组装结果写入缓存。
type ContextBlob struct {
	// Provider 是产出此信号块的提供者名称。
	Provider string `json:"provider"`

	// Timestamp 是信号采集时刻。
	Timestamp time.Time `json:"timestamp"`

	// Payload 是提供者定义的结构化数据。
	Payload interface{} `json:"payload"`
}

// NewContextBlob 创建带当前时间戳的信号块。
func NewContextBlob(provider string, payload interface{}) *ContextBlob {
	return &ContextBlob{
		Provider:  provider,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Age 返回信号块相对 now 的年龄。
func (b *ContextBlob) Age(now time.Time) time.Duration {
	return now.Sub(b.Timestamp)
}

// ScoredBlob 带相关度分数的信号块，仅存在于一个采集周期内。
type ScoredBlob struct {
	// Blob 是被评分的信号块。
	Blob *ContextBlob `json:"blob"`

	// Score 是相关度分数（0.0-1.0）。
	Score float64 `json:"score"`
}

// GatherResult 一个采集周期的组装结果。
//
// 不变式：Blobs 按分数降序排列；TotalTokenEstimate 不超过请求预算，
// 除非连单个要点投影后的信号块都放不下。
type GatherResult struct {
	// ID 是本次采集周期的唯一标识。
	ID string `json:"id"`

	// Blobs 是按分数降序排列的信号块。
	Blobs []*ScoredBlob `json:"blobs"`

	// TotalTokenEstimate 是所有信号块的 Token 估算总量。
	TotalTokenEstimate int `json:"total_token_estimate"`

	// Cached 标志结果是否来自缓存。
	Cached bool `json:"cached"`

	// Timestamp 是结果组装时刻。
	Timestamp time.Time `json:"timestamp"`

	// GatherDurationMs 是本次采集的耗时（毫秒）。
	GatherDurationMs int64 `json:"gather_duration_ms"`

	// ProviderErrorCount 是本周期内失败的提供者数量。
	ProviderErrorCount int `json:"provider_error_count"`
}

// newGatherResult 创建带唯一 ID 和当前时间戳的空结果。
func newGatherResult() *GatherResult {
	return &GatherResult{
		ID:        uuid.NewString(),
		Blobs:     []*ScoredBlob{},
		Timestamp: time.Now(),
	}
}

// ProviderNames 返回结果中信号块的提供者名称（按排列顺序）。
func (r *GatherResult) ProviderNames() []string {
	names := make([]string, 0, len(r.Blobs))
	for _, sb := range r.Blobs {
		names = append(names, sb.Blob.Provider)
	}
	return names
}
