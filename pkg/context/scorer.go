package context

import (
	"math"
	"time"
)

// Scorer 定义对单个信号块进行相关度评分的接口。
type Scorer interface {
	// Score 计算信号块在给定触发来源下的相关度分数（0.0-1.0）。
	// basePriority 是提供者声明的基础优先级。
	Score(blob *ContextBlob, trigger Trigger, basePriority float64) float64
}

// BasePrioritizer 由声明基础优先级的提供者实现。
// 未实现此接口的提供者使用 DefaultBasePriority。
type BasePrioritizer interface {
	// BasePriority 返回提供者的基础优先级（0.0-1.0）。
	BasePriority() float64
}

// DefaultBasePriority 是未声明优先级的提供者的基础优先级。
const DefaultBasePriority = 0.5

// DefaultScorer 默认评分实现。
//
// 分数 = 基础优先级 × (0.6 × 新鲜度 + 0.4) × 触发来源权重，
// 其中新鲜度 = exp(-age/tau)。同一提供者在同一触发来源下，
// 更新的信号块分数不低于更旧的。
type DefaultScorer struct {
	// Tau 是新鲜度指数衰减的时间常数。
	// 默认值为 60 秒。
	Tau time.Duration

	// Now 用于测试时注入当前时间；为 nil 时使用 time.Now。
	Now func() time.Time
}

// NewDefaultScorer 创建新的 DefaultScorer。
func NewDefaultScorer(tau time.Duration) *DefaultScorer {
	if tau <= 0 {
		tau = 60 * time.Second
	}
	return &DefaultScorer{Tau: tau}
}

// Score 计算信号块的相关度分数。
func (s *DefaultScorer) Score(blob *ContextBlob, trigger Trigger, basePriority float64) float64 {
	if basePriority <= 0 {
		basePriority = DefaultBasePriority
	}
	if basePriority > 1 {
		basePriority = 1
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	score := basePriority * (0.6*s.recency(blob, now) + 0.4) * trigger.Weight()
	return clampScore(score)
}

// recency 使用指数衰减计算新鲜度（0.0-1.0）。
func (s *DefaultScorer) recency(blob *ContextBlob, now time.Time) float64 {
	if blob.Timestamp.IsZero() {
		return 0.5 // 无时间戳的信号块取中间值
	}

	delta := now.Sub(blob.Timestamp).Seconds()
	if delta < 0 {
		delta = 0
	}

	return math.Exp(-delta / s.Tau.Seconds())
}

// clampScore 将分数限制在 [0, 1] 区间。
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// 编译时接口检查
var _ Scorer = (*DefaultScorer)(nil)
